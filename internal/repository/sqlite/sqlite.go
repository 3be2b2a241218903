// Package sqlite implements the repository contracts on SQLite.
//
// modernc.org/sqlite is a pure Go translation of the SQLite C sources, so
// the binary builds without CGo and cross-compiles everywhere Go does.
// The database runs in WAL mode with foreign keys enabled; a UNIQUE index
// on (snippet_id, version_number) is what turns a concurrent
// version-number race into a reportable Conflict instead of a lost
// update.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/repository"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Every repository method runs through it, so the same code serves both
// auto-commit calls and calls inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB owns the SQLite connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

var _ repository.Store = (*DB)(nil)

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty
	// database, so the pool must collapse to a single connection.
	if strings.Contains(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the database.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	// Short write contention waits for the lock instead of failing
	// immediately; anything longer surfaces as a Conflict via WithTx.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer this wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Snippets() repository.SnippetRepository { return &snippetRepo{q: db.conn} }
func (db *DB) Versions() repository.VersionRepository { return &versionRepo{q: db.conn} }
func (db *DB) Metrics() repository.MetricsRepository  { return &metricsRepo{q: db.conn} }
func (db *DB) Audit() repository.AuditRepository      { return &auditRepo{q: db.conn} }
func (db *DB) Users() repository.UserRepository       { return &userRepo{q: db.conn} }

// WithTx runs fn inside a single SQLite transaction. A rollback discards
// the projection update, version insert, metrics insert, and audit entry
// together — a partially applied mutation is never visible. Lock
// contention between two writers racing for the same snippet surfaces as
// a retryable Conflict, the same category the UNIQUE index produces.
func (db *DB) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return busyConflict()
		}
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: rolling back after %w: %v", err, rbErr)
		}
		if isBusy(err) {
			return busyConflict()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isBusy(err) {
			return busyConflict()
		}
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// txStore is the Store view of one open transaction.
type txStore struct {
	tx *sql.Tx
}

var _ repository.Store = (*txStore)(nil)

func (s *txStore) Snippets() repository.SnippetRepository { return &snippetRepo{q: s.tx} }
func (s *txStore) Versions() repository.VersionRepository { return &versionRepo{q: s.tx} }
func (s *txStore) Metrics() repository.MetricsRepository  { return &metricsRepo{q: s.tx} }
func (s *txStore) Audit() repository.AuditRepository      { return &auditRepo{q: s.tx} }
func (s *txStore) Users() repository.UserRepository       { return &userRepo{q: s.tx} }

// WithTx on an open transaction joins it; SQLite has no nested
// transactions and the outer caller owns commit/rollback.
func (s *txStore) WithTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER NOT NULL DEFAULT 0,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';

		CREATE TABLE IF NOT EXISTS snippets (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			current_content TEXT NOT NULL,
			language        TEXT NOT NULL DEFAULT '',
			owner_id        TEXT NOT NULL REFERENCES users(id),
			active_version  INTEGER NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_owner_id ON snippets(owner_id);

		CREATE TABLE IF NOT EXISTS versions (
			id             TEXT PRIMARY KEY,
			snippet_id     TEXT NOT NULL REFERENCES snippets(id),
			version_number INTEGER NOT NULL,
			content        TEXT NOT NULL,
			commit_message TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL,
			UNIQUE (snippet_id, version_number)
		);
		CREATE INDEX IF NOT EXISTS idx_versions_snippet_id ON versions(snippet_id);

		CREATE TABLE IF NOT EXISTS metrics (
			id                    TEXT PRIMARY KEY,
			version_id            TEXT NOT NULL UNIQUE REFERENCES versions(id),
			loc                   INTEGER NOT NULL,
			keyword_count         INTEGER NOT NULL,
			cyclomatic_complexity INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			id          TEXT PRIMARY KEY,
			action      TEXT NOT NULL,
			entity_name TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			actor       TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite exposes the SQLite error text, not a typed error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusy reports whether err is SQLite lock contention: SQLITE_BUSY from
// a held write lock past the busy timeout, or a stale WAL snapshot when
// a deferred transaction upgrades to a write.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func busyConflict() error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "record is being modified concurrently, retry the operation",
	}
}
