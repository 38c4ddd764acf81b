// Package auth issues and checks the session tokens that gate execution and
// snippet writes.
//
// Flow: the user signs in through GitHub OAuth or with the shared access
// passphrase, the server upserts the account and sets an HttpOnly "token"
// cookie holding an HS256 JWT whose subject is the internal user ID.
// Middleware validates the cookie (or an Authorization: Bearer header for
// API clients) and puts the user ID in the request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is stamped into every token and required on validation.
	Issuer = "transpile-bench"

	// TokenTTL is the lifetime of a session token.
	TokenTTL = 15 * time.Minute

	minSecretLen = 16
)

// TokenService signs and validates session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService rejects secrets shorter than 16 bytes.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a token for userID valid for TokenTTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, TokenTTL)
}

// GenerateWithDuration issues a token with a custom lifetime. A negative
// duration yields an already expired token, which the tests rely on.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// Validate checks signature, algorithm, issuer and expiry, and returns the
// user ID from the subject claim.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
