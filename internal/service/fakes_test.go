package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// SNIPPETS
// =========================================================================

// fakeSnippetRepo is an in-memory repository.SnippetRepository.
type fakeSnippetRepo struct {
	mu        sync.Mutex
	snippets  map[string]*model.Snippet
	nextID    int
	createErr error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if s.Example {
		for _, existing := range f.snippets {
			if existing.Example && existing.Language == s.Language {
				return apperror.Conflict("example snippet", s.Language)
			}
		}
	}
	f.nextID++
	s.ID = fmt.Sprintf("snip-%d", f.nextID)
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	f.snippets[s.ID] = &stored
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	out := *s
	return &out, nil
}

func (f *fakeSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Snippet, 0, len(f.snippets))
	for _, s := range f.snippets {
		if opts.Language == "" || s.Language == opts.Language {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return []model.Snippet{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snippets[s.ID]; !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	s.UpdatedAt = time.Now()
	stored := *s
	f.snippets[s.ID] = &stored
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	return nil
}

func (f *fakeSnippetRepo) CountByLanguage(_ context.Context, example bool) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range f.snippets {
		if s.Example == example {
			counts[s.Language]++
		}
	}
	return counts, nil
}

// =========================================================================
// USERS
// =========================================================================

type fakeUserRepo struct {
	users     map[string]*model.User
	byGitHub  map[int64]string
	nextID    int
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*model.User),
		byGitHub: make(map[int64]string),
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if id, ok := f.byGitHub[u.GitHubID]; ok {
		existing := f.users[id]
		existing.Login, existing.Email, existing.AvatarURL = u.Login, u.Email, u.AvatarURL
		*u = *existing
		return nil
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	f.byGitHub[u.GitHubID] = u.ID
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

// =========================================================================
// RUNS
// =========================================================================

type fakeRunRepo struct {
	mu        sync.Mutex
	runs      []model.Run
	recordErr error
}

func (f *fakeRunRepo) RecordRun(ctx context.Context, r *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	// Like database/sql, refuse to write on a finished context.
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ID = fmt.Sprintf("run-%d", len(f.runs)+1)
	r.CreatedAt = time.Now()
	f.runs = append(f.runs, *r)
	return nil
}

func (f *fakeRunRepo) ListRuns(_ context.Context, opts repository.ListOptions) ([]model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Run
	for i := len(f.runs) - 1; i >= 0; i-- {
		if opts.Language == "" || f.runs[i].Language == opts.Language {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

func (f *fakeRunRepo) RunStats(_ context.Context) ([]model.LanguageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byLang := map[string]*model.LanguageStats{}
	for _, r := range f.runs {
		s, ok := byLang[r.Language]
		if !ok {
			s = &model.LanguageStats{Language: r.Language}
			byLang[r.Language] = s
		}
		s.Runs++
		if r.Succeeded {
			s.Succeeded++
		}
	}
	out := make([]model.LanguageStats, 0, len(byLang))
	for _, s := range byLang {
		out = append(out, *s)
	}
	return out, nil
}
