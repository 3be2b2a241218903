package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// newTestDB opens an in-memory database that lives for one test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, DisplayName: "Test User"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestSnippet(t *testing.T, db *DB, ownerID, title, content string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{
		Title:          title,
		CurrentContent: content,
		Language:       "java",
		OwnerID:        ownerID,
		ActiveVersion:  1,
	}
	if err := db.Snippets().Create(context.Background(), snippet); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return snippet
}

func TestSnippetCreate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")

	snippet := &model.Snippet{
		Title:          "Hello World",
		CurrentContent: "class Hello {}",
		Language:       "java",
		OwnerID:        owner.ID,
		ActiveVersion:  1,
	}
	if err := db.Snippets().Create(context.Background(), snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if snippet.CreatedAt.IsZero() || snippet.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestSnippetGetByID(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	created := createTestSnippet(t, db, owner.ID, "fetch me", "content")

	got, err := db.Snippets().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "fetch me" || got.CurrentContent != "content" {
		t.Errorf("GetByID() = %+v, want the created snippet", got)
	}
	if got.OwnerID != owner.ID {
		t.Errorf("OwnerID = %q, want %q", got.OwnerID, owner.ID)
	}
	if got.ActiveVersion != 1 {
		t.Errorf("ActiveVersion = %d, want 1", got.ActiveVersion)
	}
}

func TestSnippetGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Snippets().GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSnippetListByOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestSnippet(t, db, alice.ID, "a1", "x")
	createTestSnippet(t, db, alice.ID, "a2", "y")
	createTestSnippet(t, db, bob.ID, "b1", "z")

	got, err := db.Snippets().ListByOwner(context.Background(), alice.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByOwner() returned %d snippets, want 2", len(got))
	}
	for _, s := range got {
		if s.OwnerID != alice.ID {
			t.Errorf("listed snippet %q owned by %q, want %q", s.ID, s.OwnerID, alice.ID)
		}
	}
}

func TestSnippetListByOwnerPaging(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	for i := 0; i < 25; i++ {
		createTestSnippet(t, db, owner.ID, fmt.Sprintf("s%02d", i), "x")
	}

	// The store applies whatever limit it is given; default pages and
	// caps are the caller's policy. A zero limit means everything.
	got, err := db.Snippets().ListByOwner(context.Background(), owner.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(got) != 25 {
		t.Errorf("unlimited ListByOwner() returned %d snippets, want 25", len(got))
	}

	got, err = db.Snippets().ListByOwner(context.Background(), owner.ID, repository.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListByOwner() with limit 2 returned %d snippets", len(got))
	}
}

func TestSnippetUpdate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	snippet := createTestSnippet(t, db, owner.ID, "before", "v1")

	snippet.Title = "after"
	snippet.CurrentContent = "v2"
	snippet.ActiveVersion = 2
	if err := db.Snippets().Update(context.Background(), snippet); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Snippets().GetByID(context.Background(), snippet.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "after" || got.CurrentContent != "v2" || got.ActiveVersion != 2 {
		t.Errorf("Update() not persisted, got %+v", got)
	}
}

func TestSnippetUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Snippets().Update(context.Background(), &model.Snippet{ID: "missing"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSnippetDelete(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	snippet := createTestSnippet(t, db, owner.ID, "doomed", "x")

	if err := db.Snippets().Delete(context.Background(), snippet.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Snippets().GetByID(context.Background(), snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	if err := db.Snippets().Delete(context.Background(), snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
