package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

type snippetRepo struct {
	q querier
}

var _ repository.SnippetRepository = (*snippetRepo)(nil)

const snippetColumns = `id, title, description, current_content, language,
	owner_id, active_version, created_at, updated_at`

func (r *snippetRepo) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Title,
		snippet.Description,
		snippet.CurrentContent,
		snippet.Language,
		snippet.OwnerID,
		snippet.ActiveVersion,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

func (r *snippetRepo) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var s model.Snippet
	err := r.q.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id,
	).Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.CurrentContent,
		&s.Language,
		&s.OwnerID,
		&s.ActiveVersion,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return &s, nil
}

func (r *snippetRepo) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Snippet, error) {
	// Paging policy (defaults, caps) lives in the service layer; a
	// non-positive limit here means unlimited, which SQLite spells -1.
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets
		 WHERE owner_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := []model.Snippet{}
	for rows.Next() {
		var s model.Snippet
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.CurrentContent, &s.Language,
			&s.OwnerID, &s.ActiveVersion, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return snippets, nil
}

// Update persists the current projection. ID, owner, and created_at are
// immutable; everything else reflects the latest mutation.
func (r *snippetRepo) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	result, err := r.q.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, current_content = ?, language = ?,
		     active_version = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Description,
		snippet.CurrentContent,
		snippet.Language,
		snippet.ActiveVersion,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}
	return nil
}

func (r *snippetRepo) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}
	return nil
}
