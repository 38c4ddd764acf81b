// Package server wires storage, services, handlers and routes together and
// runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/handler"
	"github.com/sakif/transpile-bench/internal/middleware"
	sqliteRepo "github.com/sakif/transpile-bench/internal/repository/sqlite"
	"github.com/sakif/transpile-bench/internal/service"
)

// writeTimeout covers a compare of two maximal runs plus compilation, and
// a slow LLM reply.
const writeTimeout = 2*service.MaxTimeoutSeconds*time.Second + 5*time.Minute

// Config holds server configuration.
type Config struct {
	Port        int
	TemplateDir string
	StaticDir   string
	DBPath      string

	// AllowExec enables /api/execute and /api/compare.
	AllowExec bool

	// JWTSecret enables sign-in. Without it the server runs in single-user
	// local mode and every route is open.
	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	PassphraseHash     string // bcrypt hash; empty disables passphrase login
	SecureCookies      bool
}

// Server owns the router and the database connection.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, seeds the examples and builds every route.
// exec runs programs; translator converts them.
func New(cfg Config, logger *slog.Logger, exec executor.Executor, translator service.Translator) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(exec, translator); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and handlers.
//
// GET    /                        → playground page
// GET    /static/*                → CSS and JS
// GET    /healthz                 → liveness
// GET    /auth/github/login       → GitHub OAuth redirect
// GET    /auth/github/callback    → GitHub OAuth callback
// POST   /auth/login              → passphrase login
// POST   /auth/logout             → clear session
// GET    /api/me                  → current user
// GET    /api/languages           → languages and toolchain availability
// GET    /api/examples            → built-in example per language
// GET    /api/runs                → run history
// GET    /api/runs/stats          → per-language timing summary
// POST   /api/translate           → convert code        [auth]
// POST   /api/execute             → run one program     [auth]
// POST   /api/compare             → run source + target [auth]
// GET    /api/snippets            → list snippets
// GET    /api/snippets/{id}       → get snippet
// POST   /api/snippets            → create snippet      [auth]
// PUT    /api/snippets/{id}       → update snippet      [auth]
// DELETE /api/snippets/{id}       → delete snippet      [auth]
//
// [auth] routes need a session only when JWT_SECRET is configured.
func (s *Server) setupRoutes(exec executor.Executor, translator service.Translator) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth ===
	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return err
		}
	}

	var github *auth.GitHubProvider
	if tokens != nil && s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	// === Services ===
	playgroundService := service.NewPlaygroundService(exec, translator, s.db, s.config.AllowExec, s.logger)
	snippetService := service.NewSnippetService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.config.PassphraseHash, s.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := snippetService.SeedExamples(ctx); err != nil {
		return err
	}

	// === Handlers ===
	playgroundHandler, err := handler.NewPlaygroundHandler(s.config.TemplateDir, playgroundService, authService, s.logger)
	if err != nil {
		return fmt.Errorf("creating playground handler: %w", err)
	}
	executeHandler := handler.NewExecuteHandler(playgroundService, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	authHandler := handler.NewAuthHandler(github, authService, s.config.SecureCookies, s.logger)
	healthHandler := handler.NewHealthHandler(s.db)

	// === Routes ===
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	s.router.Get("/", playgroundHandler.HandlePlayground)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Identify(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Get("/languages", executeHandler.HandleLanguages)
			r.Get("/examples", executeHandler.HandleExamples)
			r.Get("/runs", executeHandler.HandleHistory)
			r.Get("/runs/stats", executeHandler.HandleStats)
			r.Get("/snippets", snippetHandler.HandleList)
			r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Guard(tokens))

			r.Post("/translate", executeHandler.HandleTranslate)
			r.Post("/execute", executeHandler.HandleExecute)
			r.Post("/compare", executeHandler.HandleCompare)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
		})
	})

	s.logger.Info("routes configured",
		slog.Bool("execEnabled", s.config.AllowExec),
		slog.Bool("authEnabled", tokens != nil),
		slog.Bool("githubLogin", github != nil),
		slog.Bool("passphraseLogin", authService.PassphraseEnabled()),
	)
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
