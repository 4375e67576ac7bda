// Package app assembles the stores and services shared by the web server and
// the terminal client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/cache"
	"github.com/sakif/ghdash/internal/cache/memory"
	"github.com/sakif/ghdash/internal/cache/redisstore"
	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/config"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/github"
	sqliteRepo "github.com/sakif/ghdash/internal/repository/sqlite"
	"github.com/sakif/ghdash/internal/service"
	"github.com/sakif/ghdash/internal/session"
)

// App is everything behind the front-ends. Close releases it.
type App struct {
	Config   config.Config
	Clock    clockwork.Clock
	Location *time.Location

	DB        *sqliteRepo.DB
	Snapshots *cache.Cache

	Tokens     *auth.TokenService
	Manager    *session.Manager
	Sessions   *service.AuthService
	Dashboards *dashboard.Service
	Commits    *commits.Service

	redis  *redisstore.Store // nil unless CacheBackend is "redis"
	logger *slog.Logger
}

// Option adjusts an App before it is wired.
type Option func(*App)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) { a.Clock = clock }
}

// New opens the stores named by cfg and wires the services over them.
//
//	sqlite.DB ─┬→ TokenDB ─────────────────────────────────┐
//	           └→ SnapshotDB (or memory / redis) → cache.Cache ─┬→ session.Manager → service.AuthService
//	                                                            ├→ dashboard.Service ┘
//	                                                            └→ commits.Service
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{
		Config: cfg,
		Clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	a.Location = loc

	// === STORAGE ===
	a.DB, err = sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	store, err := a.openSnapshotStore()
	if err != nil {
		return fmt.Errorf("opening %s snapshot store: %w", cfg.CacheBackend, err)
	}
	a.Snapshots = cache.New(store, cfg.CacheTTL, a.Clock, a.logger)

	// === SESSIONS ===
	secret, err := cfg.Secret()
	if err != nil {
		return err
	}
	sealer, err := auth.NewSealer(secret)
	if err != nil {
		return fmt.Errorf("creating token sealer: %w", err)
	}
	a.Tokens, err = auth.NewTokenService(secret, cfg.SessionLifetime)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	a.Tokens.WithClock(a.Clock)

	a.Manager = session.NewManager(a.DB.Tokens(), sealer, a.Snapshots, a.NewClient, a.logger)

	// === SERVICES ===
	a.Dashboards = dashboard.NewService(a.Snapshots, a.Clock, a.logger)
	a.Commits = commits.NewService(a.Snapshots, cfg.CommitPageSize, loc, a.Clock, a.logger)
	a.Sessions = service.NewAuthService(a.Manager, a.Tokens, a.Dashboards, service.Options{
		CacheSize:       cfg.SessionCacheSize,
		IdleTimeout:     cfg.SessionIdleTimeout,
		RefreshInterval: cfg.CacheTTL,
		Clock:           a.Clock,
	}, a.logger)

	return nil
}

// Logger returns the logger the services were built with.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// NewClient builds a GitHub client from the configured limits. It is the
// session.ClientFactory of the App.
func (a *App) NewClient() (*github.Client, error) {
	return github.NewClient(github.Config{
		BaseURL:     a.Config.GithubBaseURL,
		RateLimit:   a.Config.GithubRateLimit,
		Concurrency: a.Config.GithubConcurrency,
		Timeout:     a.Config.HTTPClientTimeout,
		Clock:       a.Clock,
	}, a.logger)
}

// openSnapshotStore picks the cache.Store behind the snapshot cache.
//
//	sqlite → the snapshots table of the main database (survives restarts)
//	memory → a bounded in-process LRU (lost on restart)
//	redis  → shared between server instances
func (a *App) openSnapshotStore() (cache.Store, error) {
	switch a.Config.CacheBackend {
	case "memory":
		return memory.New(a.Config.CacheSize)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Entries outlive the TTL so an expired one is still read, and
		// cleared, by the cache rather than vanishing underneath it.
		store, err := redisstore.Connect(ctx, a.Config.RedisURL, 2*a.Config.CacheTTL)
		if err != nil {
			return nil, err
		}
		a.redis = store
		return store, nil
	default:
		return a.DB.Snapshots(), nil
	}
}

// Close stops every live session's refresh cycle and closes the stores.
// It is safe to call on a partially wired App.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}

	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
