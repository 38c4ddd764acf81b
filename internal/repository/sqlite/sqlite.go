// Package sqlite implements the repository interfaces on SQLite through the
// pure-Go modernc.org/sqlite driver, so the server builds without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sakif/transpile-bench/internal/repository"
)

// Default and maximum page sizes for list queries.
const (
	defaultLimit = 20
	maxLimit     = 100
)

// DB wraps a sql.DB pool and implements SnippetRepository, UserRepository
// and RunRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations. ":memory:" gives a
// private in-memory database, which the tests use.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a distinct, empty
	// database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext reports whether the database is reachable; used by /healthz.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every step is idempotent, so it runs on each
// start against new and existing databases alike.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			login      TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			language    TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_language ON snippets(language);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// Columns added after the first schema.
	if err := db.addColumnIfNotExists("snippets", "user_id",
		"TEXT REFERENCES users(id) ON DELETE SET NULL"); err != nil {
		return fmt.Errorf("adding user_id to snippets: %w", err)
	}
	if err := db.addColumnIfNotExists("snippets", "example",
		"INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("adding example to snippets: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_snippets_example_language
			ON snippets(language) WHERE example = 1;
	`)
	if err != nil {
		return fmt.Errorf("creating snippets indexes: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			language   TEXT NOT NULL,
			succeeded  INTEGER NOT NULL,
			compile_ns INTEGER NOT NULL DEFAULT 0,
			run_ns     INTEGER NOT NULL DEFAULT 0,
			code_size  INTEGER NOT NULL DEFAULT 0,
			user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_language ON runs(language);
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// pageBounds clamps list options to sane values.
func pageBounds(opts repository.ListOptions) (limit, offset int) {
	limit, offset = opts.Limit, opts.Offset
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// nullString maps "" to SQL NULL for optional foreign keys.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
