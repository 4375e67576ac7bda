// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "load config, start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it to New, which creates:
//
//	app.App (stores + services) → handlers → routes
//
// app.App is shared with the ghdash terminal client, so both front-ends see
// the same sessions and the same snapshot cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ghdash/internal/app"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/config"
	"github.com/sakif/ghdash/internal/handler"
	"github.com/sakif/ghdash/internal/middleware"
	"github.com/sakif/ghdash/web"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns an app.App: the database, the optional redis connection and
// every live session's refresh goroutine. Close releases all three; Start calls
// it during graceful shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	app *app.App

	// handlers, built in New and mounted in setupRoutes
	authH    *handler.AuthHandler
	dashH    *handler.DashboardHandler
	commitsH *handler.CommitsHandler
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. app.New opens the stores and creates the services
//  2. The page templates are parsed from the embedded web.FS
//  3. The handlers are created and wired to routes
//
// Each layer only receives what it needs:
// - Handlers get services, never the repository or the GitHub client
// - The middleware gets the TokenService, nothing else
func New(cfg config.Config, logger *slog.Logger, opts ...app.Option) (*Server, error) {
	a, err := app.New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		app:    a,
	}
	if err := s.wire(); err != nil {
		s.Close() // Clean up whatever was opened before the failure
		return nil, err
	}
	return s, nil
}

func (s *Server) wire() error {
	cfg := s.config

	pages, err := handler.NewPages(web.FS, s.logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	var oauth *auth.GitHubProvider
	if cfg.OAuthEnabled() {
		oauth = auth.NewGitHubProvider(cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubCallbackURL)
	}

	s.authH = handler.NewAuthHandler(s.app.Sessions, oauth, pages, handler.CookieConfig{
		Lifetime: s.app.Tokens.Lifetime(),
		Secure:   cfg.CookieSecure,
	}, s.logger)
	s.dashH = handler.NewDashboardHandler(s.app.Sessions, pages, s.logger)
	s.commitsH = handler.NewCommitsHandler(s.app.Sessions, s.app.Commits, pages, cfg.SearchDebounce, s.logger)

	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                       → redirect to /dashboard
// GET    /static/*               → Static files (CSS, images)
// GET    /login                  → token form                     (optional session)
// POST   /login                  → sign in with a token           (optional session)
// POST   /logout                 → sign out                       (optional session)
// GET    /auth/github/login      → OAuth redirect                 (optional session)
// GET    /auth/github/callback   → OAuth callback                 (optional session)
// GET    /dashboard              → dashboard page                 (session → else /login)
// POST   /dashboard/refresh      → manual refresh                 (session → else /login)
// GET    /commits[/{repo}]       → commit history page            (session → else /login)
// GET    /api/me                 → signed-in user (JSON)          (session → else 401)
// GET    /api/dashboard          → dashboard state (JSON)         (session → else 401)
// POST   /api/dashboard/refresh  → manual refresh (JSON)          (session → else 401)
// GET    /api/commits            → one page of commits (JSON)     (session → else 401)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	// The assets are compiled into the binary (web.FS), so the server runs
	// from any working directory.
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	// === Public Routes ===
	// OptionalSession lets /login recognise a visitor who is already signed
	// in, and lets a new token replace the token of the same profile.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalSession(s.app.Tokens))
		r.Get("/login", s.authH.HandleLoginPage)
		r.Post("/login", s.authH.HandleLogin)
		r.Post("/logout", s.authH.HandleLogout)
		r.Get("/auth/github/login", s.authH.HandleGitHubLogin)
		r.Get("/auth/github/callback", s.authH.HandleGitHubCallback)
	})

	// === Pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(s.app.Tokens, handler.RedirectToLogin))
		r.Get("/dashboard", s.dashH.HandleDashboard)
		r.Post("/dashboard/refresh", s.dashH.HandleRefresh)
		r.Get("/commits", s.commitsH.HandleCommits)
		r.Get("/commits/{repo}", s.commitsH.HandleCommits)
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireSession(s.app.Tokens, handler.Unauthorized))
		r.Get("/me", s.authH.HandleMe)
		r.Get("/dashboard", s.dashH.HandleAPIDashboard)
		r.Post("/dashboard/refresh", s.dashH.HandleAPIRefresh)
		r.Get("/commits", s.commitsH.HandleAPICommits)
	})

	return nil
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops every live session's refresh cycle and closes the stores.
func (s *Server) Close() error {
	return s.app.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (ShutdownGrace)
// 3. Stop the refresh cycles and close the database (Close)
//
// If we skip step 3, the database file might be left in an inconsistent state
// and refresh goroutines would keep calling GitHub until the process exits.
func (s *Server) Start() error {
	// Runs AFTER everything else in this function finishes.
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("shutdown cleanup failed", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// A cold dashboard load fetches every repository's commits.
		WriteTimeout: s.config.HTTPClientTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("cache", s.config.CacheBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
