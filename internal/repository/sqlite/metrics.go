package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

type metricsRepo struct {
	q querier
}

var _ repository.MetricsRepository = (*metricsRepo)(nil)

func (r *metricsRepo) Create(ctx context.Context, metrics *model.Metrics) error {
	metrics.ID = xid.New().String()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO metrics (id, version_id, loc, keyword_count, cyclomatic_complexity)
		 VALUES (?, ?, ?, ?, ?)`,
		metrics.ID,
		metrics.VersionID,
		metrics.LOC,
		metrics.KeywordCount,
		metrics.CyclomaticComplexity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("metrics", metrics.VersionID)
		}
		return fmt.Errorf("sqlite: creating metrics: %w", err)
	}
	return nil
}

func (r *metricsRepo) GetByVersion(ctx context.Context, versionID string) (*model.Metrics, error) {
	var m model.Metrics
	err := r.q.QueryRowContext(ctx,
		`SELECT id, version_id, loc, keyword_count, cyclomatic_complexity
		 FROM metrics WHERE version_id = ?`,
		versionID,
	).Scan(&m.ID, &m.VersionID, &m.LOC, &m.KeywordCount, &m.CyclomaticComplexity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("metrics", versionID)
		}
		return nil, fmt.Errorf("sqlite: getting metrics for version %s: %w", versionID, err)
	}
	return &m, nil
}

func (r *metricsRepo) DeleteByVersion(ctx context.Context, versionID string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM metrics WHERE version_id = ?`, versionID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting metrics for version %s: %w", versionID, err)
	}
	return nil
}

// DeleteBySnippet removes the metrics of every version of a snippet in
// one statement, ahead of the version rows themselves.
func (r *metricsRepo) DeleteBySnippet(ctx context.Context, snippetID string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM metrics WHERE version_id IN
		   (SELECT id FROM versions WHERE snippet_id = ?)`,
		snippetID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting metrics of snippet %s: %w", snippetID, err)
	}
	return nil
}
