package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/model"
)

func TestUpsert_InsertsNewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{GitHubID: 12345, Login: "octo", Email: "octo@example.com"}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if user.ID == "" {
		t.Fatal("Upsert() did not set ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set CreatedAt")
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.GitHubID != 12345 || got.Login != "octo" || got.Email != "octo@example.com" {
		t.Errorf("GetUserByID() = %+v", got)
	}
}

func TestUpsert_ExistingUserKeepsID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{GitHubID: 42, Login: "old-login"}
	if err := db.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	second := &model.User{GitHubID: 42, Login: "new-login", AvatarURL: "https://example.com/a.png"}
	if err := db.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second Upsert() ID = %q, want existing %q", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}

	got, err := db.GetUserByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Login != "new-login" || got.AvatarURL != "https://example.com/a.png" {
		t.Errorf("profile not refreshed: %+v", got)
	}
}

func TestUpsert_LocalAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := &model.User{GitHubID: model.LocalGitHubID, Login: "local"}
	b := &model.User{GitHubID: model.LocalGitHubID, Login: "local"}
	if err := db.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := db.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("local account IDs differ: %q vs %q", a.ID, b.ID)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
