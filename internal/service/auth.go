// Package service — session orchestration.
//
// AuthService is the business logic layer for signing in and out. It sits
// between the front-ends (HTTP handlers, the terminal client) and the
// session/dashboard packages:
//
//	AuthHandler (HTTP) ┐
//	ghdash (CLI/TUI)   ┴→ AuthService → session.Manager (token store + GitHub validation)
//	                                  ↘ dashboard.Cycle (one per live session)
//	                                  ↘ auth.TokenService (session cookie JWT)
//
// KEY RESPONSIBILITIES:
//   - Keep at most one live session (and so one refresh cycle) per profile
//   - Restore a session on first use after a restart, from the stored token
//   - Stop a session's refresh cycle when it logs out or goes idle
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/cache"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/session"
)

const (
	// DefaultSessionCacheSize is how many sessions stay live when Options
	// leaves CacheSize at zero.
	DefaultSessionCacheSize = 1000
	// DefaultSessionIdleTimeout is how long an untouched session stays live
	// when Options leaves IdleTimeout at zero.
	DefaultSessionIdleTimeout = time.Hour
)

// Active is a live session together with its dashboard refresh cycle.
type Active struct {
	Session *session.Session
	Cycle   *dashboard.Cycle
}

// Options tunes an AuthService. Zero values take the defaults.
type Options struct {
	// CacheSize bounds how many sessions stay live at once. The least
	// recently used one is dropped (and its cycle stopped) beyond that.
	CacheSize int
	// IdleTimeout drops a session nobody has touched for this long.
	IdleTimeout time.Duration
	// RefreshInterval is the dashboard refresh period, normally the cache TTL.
	RefreshInterval time.Duration
	Clock           clockwork.Clock
}

// AuthService handles the session lifecycle.
//
// DEPENDENCIES (injected via NewAuthService):
//   - sessions   *session.Manager     → token store, validation against GitHub
//   - tokens     *auth.TokenService   → session cookie JWTs (nil for the CLI)
//   - dashboards dashboard.Loader     → feeds each session's refresh cycle
//   - logger     *slog.Logger         → structured logging
type AuthService struct {
	sessions   *session.Manager
	tokens     *auth.TokenService
	dashboards dashboard.Loader
	interval   time.Duration
	clock      clockwork.Clock
	// mu serialises every change to live. expirable.LRU.Add overwrites an
	// existing key without the evict callback, so a replaced entry must be
	// removed under mu first or its cycle would keep running.
	mu        sync.Mutex
	live      *expirable.LRU[string, *Active]
	restoring singleflight.Group
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. tokens may be nil when no session
// cookies are issued.
func NewAuthService(
	sessions *session.Manager,
	tokens *auth.TokenService,
	dashboards dashboard.Loader,
	opts Options,
	logger *slog.Logger,
) *AuthService {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultSessionCacheSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultSessionIdleTimeout
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = cache.DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	s := &AuthService{
		sessions:   sessions,
		tokens:     tokens,
		dashboards: dashboards,
		interval:   opts.RefreshInterval,
		clock:      opts.Clock,
		logger:     logger,
	}

	// EVICTION STOPS THE CYCLE:
	// The callback fires on Remove, on Purge, when the LRU overflows and when
	// the idle timeout expires an entry. Each path must end the session's
	// ticker goroutine, so the stop lives here and nowhere else.
	s.live = expirable.NewLRU(opts.CacheSize, func(profile string, a *Active) {
		a.Cycle.Stop()
		s.logger.Debug("session released", slog.String("profile", profile))
	}, opts.IdleTimeout)

	return s
}

// AuthResult is returned by Login.
// It bundles the live session and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and render in one step.
type AuthResult struct {
	Active *Active
	// Token is the session cookie JWT. Empty when the service issues none.
	Token string
}

// Login validates pat and makes it the token of profile.
//
// An empty profile mints a new one. A rejected token returns
// apperror.ErrAuth and leaves any live session of profile running; an
// accepted one replaces it.
func (s *AuthService) Login(ctx context.Context, profile, pat string) (*AuthResult, error) {
	if profile == "" {
		profile = session.NewProfileID()
	}

	sess, err := s.sessions.Login(ctx, profile, pat)
	if err != nil {
		return nil, err
	}

	active := s.register(sess, true)
	s.start(ctx, active)

	result := &AuthResult{Active: active}
	if s.tokens != nil {
		token, err := s.tokens.Generate(profile)
		if err != nil {
			return nil, fmt.Errorf("service/auth: generating token for %s: %w", profile, err)
		}
		result.Token = token
	}
	return result, nil
}

// Session returns the live session of profile, restoring it from the token
// store on first use. It fails with apperror.ErrAuth when the profile is not
// signed in or its token was rejected (which signs it out).
func (s *AuthService) Session(ctx context.Context, profile string) (*Active, error) {
	if a, ok := s.lookup(profile); ok {
		return a, nil
	}

	// Concurrent requests for a cold profile share one restore.
	v, err, _ := s.restoring.Do(profile, func() (any, error) {
		if a, ok := s.lookup(profile); ok {
			return a, nil
		}

		sess, err := s.sessions.Restore(ctx, profile)
		if err != nil {
			return nil, err
		}
		// A Login that finished while we were restoring wins.
		a := s.register(sess, false)
		s.start(ctx, a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Active), nil
}

// Logout stops the live session of profile and clears its token and cached
// snapshots.
func (s *AuthService) Logout(ctx context.Context, profile string) error {
	s.mu.Lock()
	s.live.Remove(profile)
	s.mu.Unlock()
	return s.sessions.Logout(ctx, profile)
}

// ValidateToken validates a session cookie JWT and returns the profile it
// encodes.
//
// This is a thin delegation to TokenService.Validate. Having it on
// AuthService means callers only need to import the service package, not
// the auth package directly.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	if s.tokens == nil {
		return "", fmt.Errorf("service/auth: session tokens are not enabled")
	}
	profile, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return profile, nil
}

// Live returns the number of live sessions.
func (s *AuthService) Live() int {
	return s.live.Len()
}

// Close stops every live session. Stored tokens are kept.
func (s *AuthService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.Purge()
}

// lookup returns the live session of profile and renews its idle timeout.
func (s *AuthService) lookup(profile string) (*Active, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.live.Get(profile)
	if ok {
		s.live.Add(profile, a)
	}
	return a, ok
}

// register makes sess the live session of its profile and returns it. With
// replace false an already live session is kept and returned instead.
//
// The previous entry, live or expired, is removed before the new one is
// added, so its cycle is stopped by the evict callback.
func (s *AuthService) register(sess *session.Session, replace bool) *Active {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !replace {
		if a, ok := s.live.Get(sess.Profile); ok {
			return a
		}
	}
	s.live.Remove(sess.Profile)

	a := &Active{
		Session: sess,
		Cycle:   dashboard.NewCycle(s.dashboards, sess, s.interval, s.clock, s.logger),
	}
	s.live.Add(sess.Profile, a)
	return a
}

// start runs the mount load of a's cycle outside mu. A cycle replaced in
// the meantime is already stopped and Start does nothing.
//
// A failed mount load is not an error here: the cycle is Failed, keeps
// retrying on its timer, and the dashboard shows the message.
func (s *AuthService) start(ctx context.Context, a *Active) {
	if err := a.Cycle.Start(ctx); err != nil {
		s.logger.Warn("initial dashboard load failed",
			slog.String("profile", a.Session.Profile),
			slog.String("error", err.Error()),
		)
	}
}
