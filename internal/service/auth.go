package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
)

// LocalLogin is the login name of the passphrase account.
const LocalLogin = "local"

// AuthService signs users in and issues session tokens.
//
//	AuthHandler → AuthService → UserRepository
//	                          ↘ TokenService, PasswordService
type AuthService struct {
	users          repository.UserRepository
	tokens         *auth.TokenService
	passwords      *auth.PasswordService
	passphraseHash string
	logger         *slog.Logger
}

// NewAuthService wires the service. tokens is nil when JWT_SECRET is unset;
// every login then fails with apperror.ErrUnavailable. An empty
// passphraseHash disables passphrase login only.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	passphraseHash string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:          users,
		tokens:         tokens,
		passwords:      passwords,
		passphraseHash: passphraseHash,
		logger:         logger,
	}
}

// AuthResult bundles the account with its freshly issued token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Enabled reports whether sign-in is possible at all.
func (s *AuthService) Enabled() bool { return s.tokens != nil }

// PassphraseEnabled reports whether passphrase login is configured.
func (s *AuthService) PassphraseEnabled() bool {
	return s.tokens != nil && s.passphraseHash != ""
}

// LoginOrRegisterGitHub upserts the GitHub account and issues a token.
//
// The account is keyed by GitHub's numeric ID, so a renamed GitHub login
// updates the existing row instead of creating a second one. Login, email
// and avatar are refreshed on every sign-in.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, apperror.Unavailable("authentication is not configured")
	}
	if ghUser == nil || ghUser.ID <= 0 {
		return nil, errors.New("service/auth: invalid GitHub user")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	return s.issue(ctx, user, "github")
}

// LoginWithPassphrase checks the shared access passphrase and signs in the
// local account.
//
// PASSPHRASE ACCOUNT:
// Everyone who knows the passphrase shares one user, stored with
// GitHubID = model.LocalGitHubID and login "local". It is upserted on each
// login, so it exists again after the database is reset. The hash comes
// from ACCESS_PASSPHRASE_HASH (see `server -hash-passphrase`).
func (s *AuthService) LoginWithPassphrase(ctx context.Context, passphrase string) (*AuthResult, error) {
	if !s.PassphraseEnabled() {
		return nil, apperror.Unavailable("passphrase login is not configured")
	}

	if err := s.passwords.Verify(s.passphraseHash, passphrase); err != nil {
		if errors.Is(err, auth.ErrInvalidPassphrase) {
			s.logger.Warn("passphrase login rejected")
			return nil, apperror.Unauthorized("invalid passphrase")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	return s.issue(ctx, &model.User{GitHubID: model.LocalGitHubID, Login: LocalLogin}, "passphrase")
}

func (s *AuthService) issue(ctx context.Context, user *model.User, method string) (*AuthResult, error) {
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user %q: %w", user.Login, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
		slog.String("method", method),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the account behind a validated token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("not signed in")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
