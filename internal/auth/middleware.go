package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie carrying the session token.
const CookieName = "token"

type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth rejects requests without a valid token with 401 and a JSON
// body matching the API error shape.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth records the user when a valid token is present and lets
// anonymous requests through unchanged.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard is RequireAuth when tokens is configured and a pass-through
// otherwise. Without JWT_SECRET the server runs in single-user local mode.
func Guard(tokens *TokenService) func(http.Handler) http.Handler {
	if tokens == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return RequireAuth(tokens)
}

// Identify is OptionalAuth when tokens is configured and a pass-through
// otherwise.
func Identify(tokens *TokenService) func(http.Handler) http.Handler {
	if tokens == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return OptionalAuth(tokens)
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

var errNoToken = errors.New("auth: no token")

// extractUserID prefers the cookie and falls back to a bearer header.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return tokens.Validate(c.Value)
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok && tok != "" {
			return tokens.Validate(tok)
		}
	}
	return "", errNoToken
}
