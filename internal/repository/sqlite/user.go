package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts the user or refreshes the profile of the row with the same
// GitHub ID. On return user carries the stored ID and created_at; an
// existing account keeps its original ID.
//
// created_at is read back with a plain SELECT: RETURNING columns carry no
// declared type, so the driver would hand back a string.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.UpdatedAt = now

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(github_id) DO UPDATE SET
			login      = excluded.login,
			email      = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
		 RETURNING id`,
		xid.New().String(),
		user.GitHubID,
		user.Login,
		user.Email,
		user.AvatarURL,
		now,
		now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user (githubID=%d): %w", user.GitHubID, err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE id = ?`, user.ID,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %s: %w", user.ID, err)
	}

	return nil
}

// GetUserByID returns apperror.ErrNotFound when no user has the given id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, email, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.GitHubID, &u.Login, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}
