package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages sign-in and session cookies.
//
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code for a user, issue the session cookie
//   - HandleLogin          → passphrase login for the local account
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → the signed-in user's profile
type AuthHandler struct {
	github *auth.GitHubProvider // nil when GitHub login is not configured
	svc    *service.AuthService
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies marks cookies
// Secure and should be set when the server is reached over HTTPS.
func NewAuthHandler(
	github *auth.GitHubProvider,
	svc *service.AuthService,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github: github,
		svc:    svc,
		secure: secureCookies,
		logger: logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF STATE:
// A fresh xid is sent to GitHub as the OAuth state and also kept in the
// oauth_state cookie. HandleGitHubCallback only accepts a callback whose
// state query parameter equals that cookie, so a callback this browser did
// not start is rejected.
//
// The state cookie is:
//   - HttpOnly: page scripts cannot read it
//   - SameSite=Lax: it still rides along on GitHub's top-level redirect back
//   - 10 minutes long: enough to approve the app, then it lapses
//
// Returns 503 when GitHub login or sessions are not configured.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil || !h.svc.Enabled() {
		writeError(w, apperror.Unavailable("GitHub login is not configured"))
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Compare the state parameter with the oauth_state cookie (400 on mismatch)
//  2. Drop the state cookie; it is single use
//  3. If GitHub reports an error (user pressed Cancel), go back to /?auth=denied
//  4. Exchange the code for the GitHub profile
//  5. Upsert the user and issue a session token (AuthService)
//  6. Store the token in the session cookie and redirect to /
//
// Failures after the state check are logged with detail but reported to the
// browser as a bare "authentication failed".
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.Unavailable("GitHub login is not configured"))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	res, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

// HandleLogin signs in the local account with the shared passphrase.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"passphrase":"..."}
//
// RESPONSES:
//   - 200 + session cookie + the local user's profile
//   - 401 wrong passphrase
//   - 503 no ACCESS_PASSPHRASE_HASH (or no JWT_SECRET) configured
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.LoginWithPassphrase(r.Context(), req.Passphrase)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user's profile, or 401.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
