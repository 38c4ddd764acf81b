// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite is the only implementation.
package repository

import (
	"context"

	"github.com/sakif/transpile-bench/internal/model"
)

// ListOptions pages and filters list queries. Zero values mean defaults:
// first page, 20 rows, all languages.
type ListOptions struct {
	Limit    int
	Offset   int
	Language string
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
	// CountByLanguage returns the number of snippets per language; the
	// example flag selects built-in examples or user snippets.
	CountByLanguage(ctx context.Context, example bool) (map[string]int, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type RunRepository interface {
	RecordRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, opts ListOptions) ([]model.Run, error)
	RunStats(ctx context.Context) ([]model.LanguageStats, error)
}
