// Package service holds the business rules between the HTTP handlers and
// storage. Services take plain values, return apperror values for caller
// mistakes, and know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

const (
	MaxSnippetNameLength = 100
	MaxDescriptionLength = 1000
	MaxCodeLength        = 100000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// builtinExamples are the starter programs, one per language. Each prints
// the same three lines so a conversion can be checked by comparing output.
var builtinExamples = map[executor.Language]string{
	executor.Python: "for i in range(3):\n    print('i=', i)",
	executor.CPP:    "#include <iostream>\nusing namespace std;\nint main(){\n  for(int i=0;i<3;++i){ cout << \"i=\" << i << endl; }\n}",
	executor.Java:   "public class Main{ public static void main(String[]a){ for(int i=0;i<3;++i){ System.out.println(\"i=\" + i); } } }",
}

// Examples returns the built-in example for every language in display
// order. The returned snippets are not persisted.
func Examples() []model.Snippet {
	out := make([]model.Snippet, 0, len(executor.Languages))
	for _, lang := range executor.Languages {
		out = append(out, model.Snippet{
			Name:        fmt.Sprintf("Counting loop (%s)", lang),
			Language:    string(lang),
			Code:        builtinExamples[lang],
			Description: "Prints i= 0 through i= 2.",
			Example:     true,
		})
	}
	return out
}

// SnippetInput carries the user-editable fields of a snippet.
type SnippetInput struct {
	Name        string
	Language    string
	Code        string
	Description string
}

// SnippetService manages saved programs.
// SnippetService manages saved programs.
//
//	SnippetHandler → SnippetService → SnippetRepository
//
// OWNERSHIP RULES:
//   - built-in examples (Example=true) are seeded at start and read-only
//   - a snippet saved by a signed-in user can only be changed by that user
//   - anonymous snippets (UserID "") can be changed by anyone
//
// Reads are never restricted.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// SeedExamples stores the built-in example for every language that has
// none yet. It is safe to call on every start.
func (s *SnippetService) SeedExamples(ctx context.Context) error {
	have, err := s.repo.CountByLanguage(ctx, true)
	if err != nil {
		return fmt.Errorf("seeding examples: %w", err)
	}

	for _, ex := range Examples() {
		if have[ex.Language] > 0 {
			continue
		}
		if err := s.repo.Create(ctx, &ex); err != nil {
			// Another instance seeded it first.
			if errors.Is(err, apperror.ErrConflict) {
				continue
			}
			return fmt.Errorf("seeding %s example: %w", ex.Language, err)
		}
		s.logger.Info("example seeded", slog.String("language", ex.Language), slog.String("id", ex.ID))
	}
	return nil
}

// Create validates and saves a new snippet owned by userID ("" for
// anonymous).
//
// VALIDATION (see applyInput):
//   - name: required, at most MaxSnippetNameLength characters
//   - language: one of Python, C++, Java (aliases such as "py" accepted)
//   - code: at most MaxCodeLength bytes
//   - description: at most MaxDescriptionLength characters
//
// A userID with no stored account fails with apperror.ErrUnauthorized.
func (s *SnippetService) Create(ctx context.Context, in SnippetInput, userID string) (*model.Snippet, error) {
	snippet := &model.Snippet{UserID: userID}
	if err := applyInput(snippet, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("name", snippet.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("language", snippet.Language),
	)
	return snippet, nil
}

// GetByID returns apperror.ErrNotFound for unknown ids.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List pages through snippets, optionally for a single language.
func (s *SnippetService) List(ctx context.Context, language string, limit, offset int) ([]model.Snippet, error) {
	opts, err := listOptions(language, limit, offset)
	if err != nil {
		return nil, err
	}

	snippets, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update replaces the editable fields. Empty name or language keep the
// stored value; code and description are always replaced.
func (s *SnippetService) Update(ctx context.Context, id string, in SnippetInput, userID string) (*model.Snippet, error) {
	snippet, err := s.editable(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		in.Name = snippet.Name
	}
	if strings.TrimSpace(in.Language) == "" {
		in.Language = snippet.Language
	}
	if err := applyInput(snippet, in); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", slog.String("id", snippet.ID))
	return snippet, nil
}

// Delete removes a snippet under the same rules as Update.
func (s *SnippetService) Delete(ctx context.Context, id, userID string) error {
	snippet, err := s.editable(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, snippet.ID); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", snippet.ID))
	return nil
}

// editable loads a snippet the caller may change. Examples are read-only
// and an owned snippet can only be changed by its owner; anonymous
// snippets are open to everyone.
func (s *SnippetService) editable(ctx context.Context, id, userID string) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.Example {
		return nil, apperror.Forbidden("built-in examples are read-only")
	}
	if snippet.UserID != "" && snippet.UserID != userID {
		return nil, apperror.Forbidden("snippet belongs to another user")
	}
	return snippet, nil
}

func applyInput(snippet *model.Snippet, in SnippetInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperror.ValidationFailed("name", "snippet name is required")
	}
	if len(name) > MaxSnippetNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}

	lang, err := executor.ParseLanguage(in.Language)
	if err != nil {
		return err
	}

	if len(in.Code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}

	desc := strings.TrimSpace(in.Description)
	if len(desc) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	snippet.Name = name
	snippet.Language = string(lang)
	snippet.Code = in.Code
	snippet.Description = desc
	return nil
}
