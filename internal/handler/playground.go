// Package handler contains the HTTP handlers: the playground page and the
// JSON API behind it. Handlers parse requests, call a service and write
// the response; they hold no business rules.
package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/service"
	"github.com/sakif/transpile-bench/internal/translate"
)

// PlaygroundHandler serves the main page. Templates are parsed once.
type PlaygroundHandler struct {
	templates *template.Template
	svc       *service.PlaygroundService
	auth      *service.AuthService
	logger    *slog.Logger
}

// NewPlaygroundHandler parses base.html and playground.html from
// templateDir. playground.html fills the "content" block of base.html.
func NewPlaygroundHandler(
	templateDir string,
	svc *service.PlaygroundService,
	authSvc *service.AuthService,
	logger *slog.Logger,
) (*PlaygroundHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "playground.html"),
	)
	if err != nil {
		return nil, err
	}

	return &PlaygroundHandler{
		templates: tmpl,
		svc:       svc,
		auth:      authSvc,
		logger:    logger,
	}, nil
}

// pageData feeds the playground template.
type pageData struct {
	Title             string
	Languages         []service.LanguageInfo
	Engines           []translate.Engine
	Examples          map[executor.Language]string
	ExecEnabled       bool
	AuthEnabled       bool
	PassphraseEnabled bool
	MinTimeout        int
	MaxTimeout        int
	DefaultTimeout    int
}

// HandlePlayground serves the main page.
//
// HTTP: GET /
func (h *PlaygroundHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	examples := make(map[executor.Language]string)
	for _, ex := range service.Examples() {
		examples[executor.Language(ex.Language)] = ex.Code
	}

	data := pageData{
		Title:             "Transpile Bench",
		Languages:         h.svc.Languages(),
		Engines:           translate.Engines,
		Examples:          examples,
		ExecEnabled:       h.svc.ExecEnabled(),
		AuthEnabled:       h.auth.Enabled(),
		PassphraseEnabled: h.auth.PassphraseEnabled(),
		MinTimeout:        service.MinTimeoutSeconds,
		MaxTimeout:        service.MaxTimeoutSeconds,
		DefaultTimeout:    service.DefaultTimeoutSeconds,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness checks.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealth pings the database.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
