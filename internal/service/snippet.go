// Package service contains the business logic layer: the snippet
// registry orchestrating versions, metrics, and audit records, and the
// authentication flows. Handlers call into here; nothing in this package
// knows about HTTP, and nothing below it knows about business rules.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-vault/internal/analyzer"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/diff"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/validator"
)

const (
	MaxTitleLength   = 100
	MaxContentLength = 100000 // ~100KB of code
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SnippetService owns the snippet lifecycle: every mutation advances the
// per-snippet version number by exactly one and commits the projection
// update, the version insert, its metrics, and the audit entry in a
// single transaction. Version numbers are never reused, even after a
// version is deleted; a rollback restores old content as a NEW version
// rather than moving the pointer backwards.
//
// A concurrent mutation racing for the same version number surfaces as a
// Conflict error and is not retried here — retrying is the caller's
// decision.
type SnippetService struct {
	store   repository.Store
	checker validator.Validator
	logger  *slog.Logger
}

// NewSnippetService creates a SnippetService. The checker is the opaque
// syntax-diagnostics collaborator; pass validator.NewSyntax() in
// production wiring.
func NewSnippetService(store repository.Store, checker validator.Validator, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		store:   store,
		checker: checker,
		logger:  logger,
	}
}

// CreateParams carries the caller-supplied fields for a new snippet.
type CreateParams struct {
	Title       string
	Description string
	Content     string
	Language    string
}

// UpdateParams carries a content replacement plus optional title and
// description overwrites. Nil pointers preserve the stored values; the
// content is always replaced, empty or not.
type UpdateParams struct {
	Title       *string
	Description *string
	Content     string
}

// Create makes a snippet owned by ownerID with version 1 already in
// place — a snippet without a version is never observable.
func (s *SnippetService) Create(ctx context.Context, ownerID string, p CreateParams) (*model.Snippet, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "snippet title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
	}
	if len(p.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}

	// The owner must resolve to a known principal.
	if _, err := s.store.Users().GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Title:          title,
		Description:    strings.TrimSpace(p.Description),
		CurrentContent: p.Content,
		Language:       p.Language,
		OwnerID:        ownerID,
		ActiveVersion:  1,
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Snippets().Create(ctx, snippet); err != nil {
			return err
		}
		return s.appendVersion(ctx, tx, snippet, p.Content, 1, "Initial version", ownerID)
	})
	if err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("owner", ownerID),
	)
	return snippet, nil
}

// Update replaces the live content (and optionally title/description),
// recording the new state as the next immutable version. The previous
// version stays stored, untouched.
func (s *SnippetService) Update(ctx context.Context, snippetID, callerID string, p UpdateParams) (*model.Snippet, error) {
	if len(p.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "snippet title must not be blank")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
		}
		p.Title = &title
	}

	var snippet *model.Snippet
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		snippet, err = s.ownedSnippet(ctx, tx, snippetID, callerID)
		if err != nil {
			return err
		}

		next := snippet.ActiveVersion + 1
		if p.Title != nil {
			snippet.Title = *p.Title
		}
		if p.Description != nil {
			snippet.Description = strings.TrimSpace(*p.Description)
		}
		snippet.CurrentContent = p.Content
		snippet.ActiveVersion = next

		if err := tx.Snippets().Update(ctx, snippet); err != nil {
			return err
		}
		return s.appendVersion(ctx, tx, snippet, p.Content, next,
			fmt.Sprintf("Updated version %d", next), callerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.Int("version", snippet.ActiveVersion),
	)
	return snippet, nil
}

// Rollback restores the content of targetVersion as a new version.
// History is never rewritten: the active number still advances by one
// and the target version stays in place.
func (s *SnippetService) Rollback(ctx context.Context, snippetID, callerID string, targetVersion int) (*model.Snippet, error) {
	var snippet *model.Snippet
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		snippet, err = s.ownedSnippet(ctx, tx, snippetID, callerID)
		if err != nil {
			return err
		}

		target, err := tx.Versions().GetBySnippetAndNumber(ctx, snippetID, targetVersion)
		if err != nil {
			return err
		}

		next := snippet.ActiveVersion + 1
		snippet.CurrentContent = target.Content
		snippet.ActiveVersion = next

		if err := tx.Snippets().Update(ctx, snippet); err != nil {
			return err
		}
		return s.appendVersion(ctx, tx, snippet, target.Content, next,
			fmt.Sprintf("Rolled back to version %d", targetVersion), callerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("snippet rolled back",
		slog.String("id", snippet.ID),
		slog.Int("target", targetVersion),
		slog.Int("newVersion", snippet.ActiveVersion),
	)
	return snippet, nil
}

// Get returns the current projection of a snippet owned by callerID.
func (s *SnippetService) Get(ctx context.Context, snippetID, callerID string) (*model.Snippet, error) {
	return s.ownedSnippet(ctx, s.store, snippetID, callerID)
}

// List returns the caller's snippets, newest first.
func (s *SnippetService) List(ctx context.Context, callerID string, limit, offset int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	snippets, err := s.store.Snippets().ListByOwner(ctx, callerID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// ListVersions returns all versions of the snippet, newest first.
func (s *SnippetService) ListVersions(ctx context.Context, snippetID, callerID string) ([]model.Version, error) {
	if _, err := s.ownedSnippet(ctx, s.store, snippetID, callerID); err != nil {
		return nil, err
	}
	return s.store.Versions().ListBySnippetDesc(ctx, snippetID)
}

// GetVersionContent returns the immutable content snapshot of one version.
func (s *SnippetService) GetVersionContent(ctx context.Context, snippetID, callerID string, number int) (string, error) {
	if _, err := s.ownedSnippet(ctx, s.store, snippetID, callerID); err != nil {
		return "", err
	}
	version, err := s.store.Versions().GetBySnippetAndNumber(ctx, snippetID, number)
	if err != nil {
		return "", err
	}
	return version.Content, nil
}

// GetVersionMetrics returns the metrics stored for one version.
func (s *SnippetService) GetVersionMetrics(ctx context.Context, snippetID, callerID string, number int) (*model.Metrics, error) {
	if _, err := s.ownedSnippet(ctx, s.store, snippetID, callerID); err != nil {
		return nil, err
	}
	version, err := s.store.Versions().GetBySnippetAndNumber(ctx, snippetID, number)
	if err != nil {
		return nil, err
	}
	return s.store.Metrics().GetByVersion(ctx, version.ID)
}

// Diff compares two versions of the same snippet, original v1 against
// revised v2.
func (s *SnippetService) Diff(ctx context.Context, snippetID, callerID string, v1, v2 int) (diff.Result, error) {
	if _, err := s.ownedSnippet(ctx, s.store, snippetID, callerID); err != nil {
		return diff.Result{}, err
	}

	original, err := s.store.Versions().GetBySnippetAndNumber(ctx, snippetID, v1)
	if err != nil {
		return diff.Result{}, err
	}
	revised, err := s.store.Versions().GetBySnippetAndNumber(ctx, snippetID, v2)
	if err != nil {
		return diff.Result{}, err
	}

	return diff.Compare(original.Content, revised.Content), nil
}

// DeleteVersion removes one non-active version and its metrics.
func (s *SnippetService) DeleteVersion(ctx context.Context, snippetID, callerID string, number int) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		snippet, err := s.ownedSnippet(ctx, tx, snippetID, callerID)
		if err != nil {
			return err
		}
		version, err := tx.Versions().GetBySnippetAndNumber(ctx, snippetID, number)
		if err != nil {
			return err
		}
		return s.removeVersion(ctx, tx, snippet, version, model.AuditVersionDeleted, callerID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("version deleted",
		slog.String("snippetID", snippetID),
		slog.Int("version", number),
	)
	return nil
}

// DeleteVersionByID removes one non-active version addressed by its
// opaque id rather than its number.
func (s *SnippetService) DeleteVersionByID(ctx context.Context, versionID, callerID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		version, err := tx.Versions().GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		snippet, err := s.ownedSnippet(ctx, tx, version.SnippetID, callerID)
		if err != nil {
			return err
		}
		return s.removeVersion(ctx, tx, snippet, version, model.AuditVersionDeletedByID, callerID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("version deleted by id", slog.String("versionID", versionID))
	return nil
}

// DeleteSnippet removes the snippet with all its versions and their
// metrics, emitting one SNIPPET_DELETED audit entry for the cascade.
func (s *SnippetService) DeleteSnippet(ctx context.Context, snippetID, callerID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		snippet, err := s.ownedSnippet(ctx, tx, snippetID, callerID)
		if err != nil {
			return err
		}
		// Metrics before versions before the snippet row.
		if err := tx.Metrics().DeleteBySnippet(ctx, snippetID); err != nil {
			return err
		}
		if err := tx.Versions().DeleteBySnippet(ctx, snippetID); err != nil {
			return err
		}
		if err := tx.Snippets().Delete(ctx, snippetID); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, &model.AuditEntry{
			Action:     model.AuditSnippetDeleted,
			EntityName: "Snippet",
			EntityID:   snippet.ID,
			Actor:      callerID,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", snippetID))
	return nil
}

// Validate runs the syntax checker over content. The diagnostics are
// informational only and no registry operation depends on them.
func (s *SnippetService) Validate(content string) []string {
	return s.checker.Validate(content)
}

// ownedSnippet fetches a snippet and enforces the single-owner
// visibility model. Callers are identified by their resolved principal
// id, never by a raw credential.
func (s *SnippetService) ownedSnippet(ctx context.Context, store repository.Store, snippetID, callerID string) (*model.Snippet, error) {
	snippet, err := store.Snippets().GetByID(ctx, snippetID)
	if err != nil {
		return nil, err
	}
	if snippet.OwnerID != callerID {
		return nil, apperror.Forbidden("you do not own this snippet")
	}
	return snippet, nil
}

// appendVersion writes the version row, its metrics, and the audit entry
// inside the caller's transaction. A version is never persisted without
// its metrics.
func (s *SnippetService) appendVersion(ctx context.Context, tx repository.Store, snippet *model.Snippet, content string, number int, message, actor string) error {
	version := &model.Version{
		SnippetID:     snippet.ID,
		VersionNumber: number,
		Content:       content,
		CommitMessage: message,
	}
	if err := tx.Versions().Create(ctx, version); err != nil {
		return err
	}

	counts := analyzer.Analyze(content)
	metrics := &model.Metrics{
		VersionID:            version.ID,
		LOC:                  counts.LOC,
		KeywordCount:         counts.KeywordCount,
		CyclomaticComplexity: counts.CyclomaticComplexity,
	}
	if err := tx.Metrics().Create(ctx, metrics); err != nil {
		return err
	}

	return tx.Audit().Record(ctx, &model.AuditEntry{
		Action:     model.AuditVersionCreated,
		EntityName: "Snippet",
		EntityID:   snippet.ID,
		Actor:      actor,
	})
}

// removeVersion deletes one version and its metrics after the
// active-version guard, then records the audit entry.
func (s *SnippetService) removeVersion(ctx context.Context, tx repository.Store, snippet *model.Snippet, version *model.Version, action model.AuditAction, actor string) error {
	if version.VersionNumber == snippet.ActiveVersion {
		return apperror.InvalidState("cannot delete the active version; rollback to another version first")
	}
	if err := tx.Metrics().DeleteByVersion(ctx, version.ID); err != nil {
		return err
	}
	if err := tx.Versions().Delete(ctx, version.ID); err != nil {
		return err
	}
	return tx.Audit().Record(ctx, &model.AuditEntry{
		Action:     action,
		EntityName: "Version",
		EntityID:   version.ID,
		Actor:      actor,
	})
}
