package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/diff"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/validator"
)

// memStore is an in-memory repository.Store. It keeps the service tests
// off the database; transactional behavior itself is covered by the
// sqlite package tests, so WithTx here just runs the function.
type memStore struct {
	snippets map[string]*model.Snippet
	versions map[string]*model.Version
	metrics  map[string]*model.Metrics
	users    map[string]*model.User
	audit    []model.AuditEntry
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		snippets: make(map[string]*model.Snippet),
		versions: make(map[string]*model.Version),
		metrics:  make(map[string]*model.Metrics),
		users:    make(map[string]*model.User),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) Snippets() repository.SnippetRepository { return memSnippets{m} }
func (m *memStore) Versions() repository.VersionRepository { return memVersions{m} }
func (m *memStore) Metrics() repository.MetricsRepository  { return memMetrics{m} }
func (m *memStore) Audit() repository.AuditRepository      { return memAudit{m} }
func (m *memStore) Users() repository.UserRepository       { return memUsers{m} }

func (m *memStore) WithTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

type memSnippets struct{ m *memStore }

func (r memSnippets) Create(_ context.Context, snippet *model.Snippet) error {
	snippet.ID = r.m.nextID("snip")
	stored := *snippet
	r.m.snippets[snippet.ID] = &stored
	return nil
}

func (r memSnippets) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	snippet, ok := r.m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	result := *snippet
	return &result, nil
}

func (r memSnippets) ListByOwner(_ context.Context, ownerID string, opts repository.ListOptions) ([]model.Snippet, error) {
	var result []model.Snippet
	for _, s := range r.m.snippets {
		if s.OwnerID == ownerID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if opts.Offset >= len(result) {
		return []model.Snippet{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (r memSnippets) Update(_ context.Context, snippet *model.Snippet) error {
	if _, ok := r.m.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	stored := *snippet
	r.m.snippets[snippet.ID] = &stored
	return nil
}

func (r memSnippets) Delete(_ context.Context, id string) error {
	if _, ok := r.m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(r.m.snippets, id)
	return nil
}

type memVersions struct{ m *memStore }

func (r memVersions) Create(_ context.Context, version *model.Version) error {
	for _, v := range r.m.versions {
		if v.SnippetID == version.SnippetID && v.VersionNumber == version.VersionNumber {
			return apperror.Conflict("version", fmt.Sprintf("%s#%d", version.SnippetID, version.VersionNumber))
		}
	}
	version.ID = r.m.nextID("ver")
	stored := *version
	r.m.versions[version.ID] = &stored
	return nil
}

func (r memVersions) GetByID(_ context.Context, id string) (*model.Version, error) {
	version, ok := r.m.versions[id]
	if !ok {
		return nil, apperror.NotFound("version", id)
	}
	result := *version
	return &result, nil
}

func (r memVersions) GetBySnippetAndNumber(_ context.Context, snippetID string, number int) (*model.Version, error) {
	for _, v := range r.m.versions {
		if v.SnippetID == snippetID && v.VersionNumber == number {
			result := *v
			return &result, nil
		}
	}
	return nil, apperror.NotFound("version", fmt.Sprintf("%s#%d", snippetID, number))
}

func (r memVersions) ListBySnippetDesc(_ context.Context, snippetID string) ([]model.Version, error) {
	var result []model.Version
	for _, v := range r.m.versions {
		if v.SnippetID == snippetID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VersionNumber > result[j].VersionNumber })
	return result, nil
}

func (r memVersions) Delete(_ context.Context, id string) error {
	if _, ok := r.m.versions[id]; !ok {
		return apperror.NotFound("version", id)
	}
	delete(r.m.versions, id)
	return nil
}

func (r memVersions) DeleteBySnippet(_ context.Context, snippetID string) error {
	for id, v := range r.m.versions {
		if v.SnippetID == snippetID {
			delete(r.m.versions, id)
		}
	}
	return nil
}

type memMetrics struct{ m *memStore }

func (r memMetrics) Create(_ context.Context, metrics *model.Metrics) error {
	metrics.ID = r.m.nextID("met")
	stored := *metrics
	r.m.metrics[metrics.VersionID] = &stored
	return nil
}

func (r memMetrics) GetByVersion(_ context.Context, versionID string) (*model.Metrics, error) {
	metrics, ok := r.m.metrics[versionID]
	if !ok {
		return nil, apperror.NotFound("metrics", versionID)
	}
	result := *metrics
	return &result, nil
}

func (r memMetrics) DeleteByVersion(_ context.Context, versionID string) error {
	delete(r.m.metrics, versionID)
	return nil
}

func (r memMetrics) DeleteBySnippet(_ context.Context, snippetID string) error {
	for versionID := range r.m.metrics {
		if v, ok := r.m.versions[versionID]; ok && v.SnippetID == snippetID {
			delete(r.m.metrics, versionID)
		}
	}
	return nil
}

type memAudit struct{ m *memStore }

func (r memAudit) Record(_ context.Context, entry *model.AuditEntry) error {
	entry.ID = r.m.nextID("aud")
	r.m.audit = append(r.m.audit, *entry)
	return nil
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, user *model.User) error {
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = r.m.nextID("user")
	stored := *user
	r.m.users[user.ID] = &stored
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := r.m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r memUsers) UpsertGitHub(_ context.Context, user *model.User) error {
	for _, u := range r.m.users {
		if u.GitHubID == user.GitHubID {
			user.ID = u.ID
			stored := *user
			r.m.users[u.ID] = &stored
			return nil
		}
	}
	user.ID = r.m.nextID("user")
	stored := *user
	r.m.users[user.ID] = &stored
	return nil
}

func newTestService(t *testing.T) (*SnippetService, *memStore, string) {
	t.Helper()
	store := newMemStore()
	owner := &model.User{Email: "owner@example.com", DisplayName: "Owner"}
	require.NoError(t, store.Users().Create(context.Background(), owner))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSnippetService(store, validator.NewSyntax(), logger)
	return svc, store, owner.ID
}

func auditActions(store *memStore) []model.AuditAction {
	actions := make([]model.AuditAction, 0, len(store.audit))
	for _, e := range store.audit {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestCreate_FirstVersionIsImplicit(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{
		Title:    "Hello",
		Content:  "a\nb",
		Language: "java",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, snippet.ActiveVersion)
	assert.Equal(t, "a\nb", snippet.CurrentContent)

	versions, err := svc.ListVersions(ctx, snippet.ID, owner)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, "Initial version", versions[0].CommitMessage)

	// metrics land in the same transaction as the version
	metrics, err := svc.GetVersionMetrics(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.LOC)

	assert.Equal(t, []model.AuditAction{model.AuditVersionCreated}, auditActions(store))
}

func TestCreate_Validation(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, CreateParams{Title: "   ", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	long := make([]byte, MaxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Create(ctx, owner, CreateParams{Title: string(long), Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreate_UnknownOwner(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "no-such-user", CreateParams{Title: "X", Content: "y"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdate_PreservesOldVersion(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a\nb"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "a\nb\nc"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ActiveVersion)
	assert.Equal(t, "a\nb\nc", updated.CurrentContent)

	// version 1 keeps its original content
	v1, err := svc.GetVersionContent(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", v1)

	versions, err := svc.ListVersions(ctx, snippet.ID, owner)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
	assert.Equal(t, "Updated version 2", versions[0].CommitMessage)
}

func TestUpdate_OptionalTitleAndDescription(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{
		Title:       "Old title",
		Description: "old desc",
		Content:     "a",
	})
	require.NoError(t, err)

	newTitle := "New title"
	updated, err := svc.Update(ctx, snippet.ID, owner, UpdateParams{Title: &newTitle, Content: "b"})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "old desc", updated.Description)

	blank := "  "
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Title: &blank, Content: "c"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDiff_SingleInsert(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a\nb"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "a\nb\nc"})
	require.NoError(t, err)

	result, err := svc.Diff(ctx, snippet.ID, owner, 1, 2)
	require.NoError(t, err)
	require.Len(t, result.Deltas, 1)
	assert.Equal(t, diff.Insert, result.Deltas[0].Kind)
	assert.Equal(t, []string{"c"}, result.Deltas[0].Revised.Lines)
}

func TestDiff_MissingVersion(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a"})
	require.NoError(t, err)

	_, err = svc.Diff(ctx, snippet.ID, owner, 1, 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRollback_MovesForward(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a\nb"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "a\nb\nc"})
	require.NoError(t, err)

	rolled, err := svc.Rollback(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)

	// rollback creates version 3 carrying version 1's content
	assert.Equal(t, 3, rolled.ActiveVersion)
	assert.Equal(t, "a\nb", rolled.CurrentContent)

	versions, err := svc.ListVersions(ctx, snippet.ID, owner)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "Rolled back to version 1", versions[0].CommitMessage)

	// the target version is untouched
	v1, err := svc.GetVersionContent(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", v1)
}

func TestRollback_MissingTarget(t *testing.T) {
	svc, _, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a"})
	require.NoError(t, err)

	_, err = svc.Rollback(ctx, snippet.ID, owner, 7)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteVersion_ActiveVersionIsProtected(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a\nb"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "a\nb\nc"})
	require.NoError(t, err)
	_, err = svc.Rollback(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)

	// version 3 is active now
	err = svc.DeleteVersion(ctx, snippet.ID, owner, 3)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	// a non-active version goes, along with its metrics
	err = svc.DeleteVersion(ctx, snippet.ID, owner, 1)
	require.NoError(t, err)

	_, err = svc.GetVersionContent(ctx, snippet.ID, owner, 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	versions, err := svc.ListVersions(ctx, snippet.ID, owner)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	actions := auditActions(store)
	assert.Equal(t, model.AuditVersionDeleted, actions[len(actions)-1])
}

func TestDeleteVersionByID(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "b"})
	require.NoError(t, err)

	versions, err := svc.ListVersions(ctx, snippet.ID, owner)
	require.NoError(t, err)

	var v1ID, v2ID string
	for _, v := range versions {
		switch v.VersionNumber {
		case 1:
			v1ID = v.ID
		case 2:
			v2ID = v.ID
		}
	}

	// active version stays protected through the by-id path too
	err = svc.DeleteVersionByID(ctx, v2ID, owner)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	err = svc.DeleteVersionByID(ctx, v1ID, owner)
	require.NoError(t, err)

	actions := auditActions(store)
	assert.Equal(t, model.AuditVersionDeletedByID, actions[len(actions)-1])
}

func TestDeleteSnippet_Cascades(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, snippet.ID, owner, UpdateParams{Content: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSnippet(ctx, snippet.ID, owner))

	_, err = svc.Get(ctx, snippet.ID, owner)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, store.versions)
	assert.Empty(t, store.metrics)

	actions := auditActions(store)
	assert.Equal(t, model.AuditSnippetDeleted, actions[len(actions)-1])
}

func TestOwnership_IsEnforced(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	other := &model.User{Email: "other@example.com", DisplayName: "Other"}
	require.NoError(t, store.Users().Create(ctx, other))

	snippet, err := svc.Create(ctx, owner, CreateParams{Title: "Hello", Content: "a"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, snippet.ID, other.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.Update(ctx, snippet.ID, other.ID, UpdateParams{Content: "b"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	err = svc.DeleteSnippet(ctx, snippet.ID, other.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestList_PaginatesPerOwner(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	other := &model.User{Email: "other@example.com", DisplayName: "Other"}
	require.NoError(t, store.Users().Create(ctx, other))

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, owner, CreateParams{Title: fmt.Sprintf("Mine %d", i), Content: "x"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, other.ID, CreateParams{Title: "Theirs", Content: "x"})
	require.NoError(t, err)

	all, err := svc.List(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := svc.List(ctx, owner, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestValidate_ReportsSyntaxProblems(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.Empty(t, svc.Validate("if (x) { return; }"))
	assert.NotEmpty(t, svc.Validate("if (x) { return;"))
}
