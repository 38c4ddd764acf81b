package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, name, language, code, description, example, user_id, created_at, updated_at`

// Create inserts snippet, assigning its ID and timestamps. A second example
// for the same language violates idx_snippets_example_language and is
// reported as a conflict.
//
// An owner with no users row (a token signed before the database was reset,
// or by a previous ":memory:" process) fails the user_id foreign key. That is
// a stale session, not a server fault, so it comes back as Unauthorized and
// the client is asked to sign in again.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.Example,
		nullString(snippet.UserID),
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("example snippet", snippet.Language)
		}
		if isForeignKeyViolation(err) {
			return staleOwner(snippet.UserID)
		}
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// GetByID returns apperror.ErrNotFound when no snippet has the given id.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`,
		id,
	)

	s, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return s, nil
}

// List returns snippets newest first. Built-in examples sort ahead of
// user snippets so the page always leads with them.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := pageBounds(opts)

	var (
		where strings.Builder
		args  []any
	)
	if opts.Language != "" {
		where.WriteString(` WHERE language = ?`)
		args = append(args, opts.Language)
	}
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets`+where.String()+`
		 ORDER BY example DESC, created_at DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Update rewrites the mutable fields. ID, owner, example flag and
// created_at never change.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET name = ?, language = ?, code = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("example snippet", snippet.Language)
		}
		if isForeignKeyViolation(err) {
			return staleOwner(snippet.UserID)
		}
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	return requireAffected(result, "snippet", snippet.ID)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	return requireAffected(result, "snippet", id)
}

func (db *DB) CountByLanguage(ctx context.Context, example bool) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT language, COUNT(*) FROM snippets WHERE example = ? GROUP BY language`,
		example,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			lang string
			n    int
		)
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet count: %w", err)
		}
		counts[lang] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippet counts: %w", err)
	}

	return counts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(r rowScanner) (*model.Snippet, error) {
	var (
		s      model.Snippet
		userID sql.NullString
	)
	if err := r.Scan(
		&s.ID, &s.Name, &s.Language, &s.Code, &s.Description,
		&s.Example, &userID, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.UserID = userID.String
	return &s, nil
}

// requireAffected turns a zero-row UPDATE or DELETE into NotFound.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *driver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended result codes disabled.
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se *driver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}

func staleOwner(userID string) error {
	return apperror.Unauthorized(fmt.Sprintf("user %s no longer exists; sign in again", userID))
}
