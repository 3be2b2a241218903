package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

type versionRepo struct {
	q querier
}

var _ repository.VersionRepository = (*versionRepo)(nil)

const versionColumns = `id, snippet_id, version_number, content, commit_message, created_at`

// Create appends one immutable version. The UNIQUE(snippet_id,
// version_number) index is the backstop against two writers racing for
// the same number; a violation surfaces as a retryable Conflict.
func (r *versionRepo) Create(ctx context.Context, version *model.Version) error {
	version.ID = xid.New().String()
	version.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO versions (`+versionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		version.ID,
		version.SnippetID,
		version.VersionNumber,
		version.Content,
		version.CommitMessage,
		version.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("version", fmt.Sprintf("%s#%d",
				version.SnippetID, version.VersionNumber))
		}
		return fmt.Errorf("sqlite: creating version: %w", err)
	}
	return nil
}

func (r *versionRepo) GetByID(ctx context.Context, id string) (*model.Version, error) {
	return r.scanOne(r.q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ?`, id,
	), id)
}

func (r *versionRepo) GetBySnippetAndNumber(ctx context.Context, snippetID string, number int) (*model.Version, error) {
	return r.scanOne(r.q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE snippet_id = ? AND version_number = ?`,
		snippetID, number,
	), strconv.Itoa(number))
}

func (r *versionRepo) scanOne(row *sql.Row, key string) (*model.Version, error) {
	var v model.Version
	err := row.Scan(
		&v.ID,
		&v.SnippetID,
		&v.VersionNumber,
		&v.Content,
		&v.CommitMessage,
		&v.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("version", key)
		}
		return nil, fmt.Errorf("sqlite: getting version %s: %w", key, err)
	}
	return &v, nil
}

// ListBySnippetDesc returns all versions of a snippet, newest first.
func (r *versionRepo) ListBySnippetDesc(ctx context.Context, snippetID string) ([]model.Version, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE snippet_id = ?
		 ORDER BY version_number DESC`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing versions: %w", err)
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(
			&v.ID, &v.SnippetID, &v.VersionNumber, &v.Content,
			&v.CommitMessage, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning version row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating versions: %w", err)
	}
	return versions, nil
}

func (r *versionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM versions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting version %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("version", id)
	}
	return nil
}

// DeleteBySnippet removes every version of a snippet. Only the cascading
// snippet delete calls this, after the metrics rows are gone.
func (r *versionRepo) DeleteBySnippet(ctx context.Context, snippetID string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM versions WHERE snippet_id = ?`, snippetID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting versions of snippet %s: %w", snippetID, err)
	}
	return nil
}
