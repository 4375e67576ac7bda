// Package dashboard assembles the dashboard snapshot and keeps it fresh.
//
// Service produces snapshots (from cache or from GitHub); Cycle is the
// per-session state machine that decides when to ask for one.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/ghdash/internal/cache"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/session"
)

// Result is a snapshot plus where it came from.
type Result struct {
	Snapshot *model.DashboardSnapshot
	// Timestamp is when the snapshot was produced: the cache entry's time
	// for cached results, the fetch time otherwise.
	Timestamp time.Time
	FromCache bool
}

// Service loads dashboard snapshots for sessions.
type Service struct {
	cache  *cache.Cache
	clock  clockwork.Clock
	group  singleflight.Group
	logger *slog.Logger
}

// NewService returns a Service that reads and writes dashboard snapshots in
// snapshots. A nil clock means the real one.
func NewService(snapshots *cache.Cache, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{cache: snapshots, clock: clock, logger: logger}
}

// Load returns the cached snapshot while it is fresh, otherwise Fetch.
func (s *Service) Load(ctx context.Context, sess *session.Session) (*Result, error) {
	var snap model.DashboardSnapshot
	ts, ok, err := s.cache.Load(ctx, cache.Key(sess.Profile, cache.KindDashboard), &snap)
	if err != nil {
		// A broken cache must not block the dashboard.
		s.logger.Warn("dashboard cache unavailable",
			slog.String("profile", sess.Profile),
			slog.String("error", err.Error()),
		)
	}
	if ok {
		return &Result{Snapshot: &snap, Timestamp: ts, FromCache: true}, nil
	}
	return s.Fetch(ctx, sess)
}

// Fetch builds a fresh snapshot from GitHub, ignoring the cache, and
// stores it. Concurrent fetches for the same profile share one result.
func (s *Service) Fetch(ctx context.Context, sess *session.Session) (*Result, error) {
	v, err, shared := s.group.Do(sess.Profile, func() (any, error) {
		return s.fetch(ctx, sess, nil)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight dashboard fetch", slog.String("profile", sess.Profile))
	}
	return v.(*Result), nil
}

// Progress observes a fetch as it walks the repositories.
type Progress interface {
	// Start is called once the number of repositories is known.
	Start(repos int)
	// Repo is called as each repository finishes, with its fetch error.
	Repo(name string, err error)
}

// FetchWithProgress is Fetch reporting to p. It does not join or share
// in-flight fetches.
func (s *Service) FetchWithProgress(ctx context.Context, sess *session.Session, p Progress) (*Result, error) {
	return s.fetch(ctx, sess, p)
}

func (s *Service) fetch(ctx context.Context, sess *session.Session, p Progress) (*Result, error) {
	start := s.clock.Now()
	client := sess.Client

	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetching user: %w", err)
	}

	repos, err := client.GetUserRepositories(ctx, user.Login)
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetching repositories: %w", err)
	}

	var onRepo func(string, error)
	if p != nil {
		p.Start(len(repos))
		onRepo = p.Repo
	}
	summary, err := client.GetCommitStatsWithProgress(ctx, user.Login, repos, onRepo)
	if err != nil {
		return nil, fmt.Errorf("dashboard: aggregating commits: %w", err)
	}

	snap := &model.DashboardSnapshot{
		Profile:   *user,
		Summary:   summary,
		Languages: client.CalculateLanguageStats(repos),
	}

	ts, err := s.cache.Save(ctx, cache.Key(sess.Profile, cache.KindDashboard), snap)
	if err != nil {
		s.logger.Warn("failed to cache dashboard snapshot",
			slog.String("profile", sess.Profile),
			slog.String("error", err.Error()),
		)
		ts = s.clock.Now()
	}

	s.logger.Info("dashboard refreshed",
		slog.String("profile", sess.Profile),
		slog.String("login", user.Login),
		slog.Int("repos", len(repos)),
		slog.Int("commits", summary.TotalCommits),
		slog.Duration("took", s.clock.Since(start)),
	)

	return &Result{Snapshot: snap, Timestamp: ts}, nil
}
