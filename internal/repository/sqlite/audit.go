package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

type auditRepo struct {
	q querier
}

var _ repository.AuditRepository = (*auditRepo)(nil)

// Record appends one audit entry. There is no update or delete path —
// the table is insert-only by construction.
func (r *auditRepo) Record(ctx context.Context, entry *model.AuditEntry) error {
	entry.ID = xid.New().String()
	entry.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, entity_name, entity_id, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.Action),
		entry.EntityName,
		entry.EntityID,
		entry.Actor,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording audit entry: %w", err)
	}
	return nil
}
