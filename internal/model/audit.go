package model

import "time"

// AuditAction tags the lifecycle event recorded by an audit entry.
type AuditAction string

const (
	AuditVersionCreated     AuditAction = "VERSION_CREATED"
	AuditVersionDeleted     AuditAction = "VERSION_DELETED"
	AuditVersionDeletedByID AuditAction = "VERSION_DELETED_BY_ID"
	AuditSnippetDeleted     AuditAction = "SNIPPET_DELETED"
)

// AuditEntry is one append-only lifecycle record. Entries are written in
// the same transaction as the mutation they describe and are never
// updated or deleted afterwards.
type AuditEntry struct {
	ID         string      `json:"id"`
	Action     AuditAction `json:"action"`
	EntityName string      `json:"entityName"`
	EntityID   string      `json:"entityId"`
	Actor      string      `json:"actor"`
	CreatedAt  time.Time   `json:"createdAt"`
}
