// Package repository defines the storage contracts the service layer
// depends on. The sqlite subpackage provides the concrete implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/snippet-vault/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// SnippetRepository persists the mutable current projection of snippets.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

// VersionRepository is the append-only version store. Create enforces the
// uniqueness of (snippet id, version number) and returns a Conflict error
// when two writers race for the same number; stored versions are never
// mutated.
type VersionRepository interface {
	Create(ctx context.Context, version *model.Version) error
	GetByID(ctx context.Context, id string) (*model.Version, error)
	GetBySnippetAndNumber(ctx context.Context, snippetID string, number int) (*model.Version, error)
	ListBySnippetDesc(ctx context.Context, snippetID string) ([]model.Version, error)
	Delete(ctx context.Context, id string) error
	DeleteBySnippet(ctx context.Context, snippetID string) error
}

// MetricsRepository persists the one-to-one metrics row of each version.
// A version is never stored without its metrics and neither is deleted
// independently of the other outside the single-version delete path.
type MetricsRepository interface {
	Create(ctx context.Context, metrics *model.Metrics) error
	GetByVersion(ctx context.Context, versionID string) (*model.Metrics, error)
	DeleteByVersion(ctx context.Context, versionID string) error
	DeleteBySnippet(ctx context.Context, snippetID string) error
}

// AuditRepository is the append-only audit sink. The core only ever
// writes entries; it never reads them back.
type AuditRepository interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
}

// UserRepository resolves and persists principals.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertGitHub(ctx context.Context, user *model.User) error
}

// Store bundles the repositories over one storage backend and provides
// the transaction boundary for multi-step mutations.
type Store interface {
	Snippets() SnippetRepository
	Versions() VersionRepository
	Metrics() MetricsRepository
	Audit() AuditRepository
	Users() UserRepository

	// WithTx runs fn against a Store whose repositories share a single
	// transaction. If fn returns an error the transaction rolls back and
	// none of its writes become visible; otherwise it commits atomically.
	// Calling WithTx on an already transactional Store joins the open
	// transaction instead of nesting a new one.
	WithTx(ctx context.Context, fn func(Store) error) error
}
