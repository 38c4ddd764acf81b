package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

var _ repository.RunRepository = (*DB)(nil)

// RecordRun appends run to the history. Durations are stored as integer
// nanoseconds so aggregates stay exact.
//
// The owner is looked up rather than inserted as given: a user ID with no
// users row (stale session) is stored as NULL, so the run still counts
// toward the stats instead of failing the foreign key.
func (db *DB) RecordRun(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now()

	var owner sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO runs (id, language, succeeded, compile_ns, run_ns, code_size, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT id FROM users WHERE id = ?), ?)
		 RETURNING user_id`,
		run.ID,
		run.Language,
		run.Succeeded,
		int64(run.CompileDuration),
		int64(run.RunDuration),
		run.CodeSize,
		nullString(run.UserID),
		run.CreatedAt,
	).Scan(&owner)
	if err != nil {
		return fmt.Errorf("sqlite: recording run: %w", err)
	}
	run.UserID = owner.String
	return nil
}

// ListRuns returns the most recent runs first, optionally for one language.
func (db *DB) ListRuns(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
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
		`SELECT id, language, succeeded, compile_ns, run_ns, code_size, user_id, created_at
		 FROM runs`+where.String()+`
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		var (
			r                model.Run
			compileNS, runNS int64
			userID           sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Language, &r.Succeeded, &compileNS, &runNS, &r.CodeSize, &userID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		r.CompileDuration = time.Duration(compileNS)
		r.RunDuration = time.Duration(runNS)
		r.UserID = userID.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}

	return runs, nil
}

// RunStats aggregates the history per language. Averages and the fastest
// run only count successful runs; a language with no successes reports
// zero durations.
func (db *DB) RunStats(ctx context.Context) ([]model.LanguageStats, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT language,
		        COUNT(*),
		        COALESCE(SUM(succeeded), 0),
		        COALESCE(CAST(AVG(CASE WHEN succeeded = 1 THEN compile_ns END) AS INTEGER), 0),
		        COALESCE(CAST(AVG(CASE WHEN succeeded = 1 THEN run_ns END) AS INTEGER), 0),
		        COALESCE(MIN(CASE WHEN succeeded = 1 THEN run_ns END), 0)
		 FROM runs
		 GROUP BY language
		 ORDER BY language`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating runs: %w", err)
	}
	defer rows.Close()

	var stats []model.LanguageStats
	for rows.Next() {
		var (
			s                           model.LanguageStats
			avgCompile, avgRun, fastest int64
		)
		if err := rows.Scan(&s.Language, &s.Runs, &s.Succeeded, &avgCompile, &avgRun, &fastest); err != nil {
			return nil, fmt.Errorf("sqlite: scanning run stats: %w", err)
		}
		s.AvgCompile = time.Duration(avgCompile)
		s.AvgRun = time.Duration(avgRun)
		s.FastestRun = time.Duration(fastest)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating run stats: %w", err)
	}

	return stats, nil
}
