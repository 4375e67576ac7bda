package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/handler"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/service"
	"github.com/sakif/ghdash/internal/session"
	"github.com/sakif/ghdash/web"
)

const testProfile = "p1"

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPages(t *testing.T) *handler.Pages {
	t.Helper()
	pages, err := handler.NewPages(web.FS, discardLogger())
	require.NoError(t, err)
	return pages
}

// fakeSessions implements handler.SessionService.
type fakeSessions struct {
	mu sync.Mutex

	active   *service.Active
	token    string
	loginErr error
	sessErr  error

	logins    []string // profile|pat
	loggedOut []string
}

func (f *fakeSessions) Login(_ context.Context, profile, pat string) (*service.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, profile+"|"+pat)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.AuthResult{Active: f.active, Token: f.token}, nil
}

func (f *fakeSessions) Session(_ context.Context, _ string) (*service.Active, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessErr != nil {
		return nil, f.sessErr
	}
	if f.active == nil {
		return nil, apperror.Auth("Not signed in")
	}
	return f.active, nil
}

func (f *fakeSessions) Logout(_ context.Context, profile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, profile)
	f.active = nil
	return nil
}

// stubLoader feeds a dashboard.Cycle without GitHub.
type stubLoader struct {
	mu      sync.Mutex
	snap    *model.DashboardSnapshot
	err     error
	fetches int
}

func (l *stubLoader) Load(ctx context.Context, sess *session.Session) (*dashboard.Result, error) {
	return l.Fetch(ctx, sess)
}

func (l *stubLoader) Fetch(_ context.Context, _ *session.Session) (*dashboard.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if l.err != nil {
		return nil, l.err
	}
	return &dashboard.Result{Snapshot: l.snap, Timestamp: testNow}, nil
}

func (l *stubLoader) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *stubLoader) fetchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches
}

func testSnapshot() *model.DashboardSnapshot {
	var months model.MonthlyCounts
	months.Add(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC))
	months.Add(time.Date(2026, time.October, 2, 0, 0, 0, 0, time.UTC))
	months.Add(time.Date(2026, time.September, 14, 0, 0, 0, 0, time.UTC))

	return &model.DashboardSnapshot{
		Profile: model.UserProfile{
			ID:          1,
			Login:       "octocat",
			Name:        "The Octocat",
			PublicRepos: 25,
			Followers:   100,
			Following:   50,
		},
		Summary:   model.CommitSummary{TotalCommits: 1234, MonthlyCommits: months},
		Languages: model.LanguageStats{"Go": 67, "TypeScript": 33},
	}
}

// newActive starts a real cycle over a stub loader.
func newActive(t *testing.T) (*service.Active, *stubLoader) {
	t.Helper()
	snap := testSnapshot()
	user := snap.Profile
	sess := &session.Session{Profile: testProfile, Token: "ghp_test", User: &user}
	loader := &stubLoader{snap: snap}

	cycle := dashboard.NewCycle(loader, sess, 15*time.Minute, clockwork.NewFakeClockAt(testNow), discardLogger())
	require.NoError(t, cycle.Start(context.Background()))
	t.Cleanup(cycle.Stop)

	return &service.Active{Session: sess, Cycle: cycle}, loader
}

// signedIn attaches the test profile the way RequireSession would.
func signedIn(r *http.Request) *http.Request {
	return r.WithContext(auth.WithProfile(r.Context(), testProfile))
}

// withRepo sets the {repo} route parameter chi would extract.
func withRepo(r *http.Request, repo string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("repo", repo)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func cookieNamed(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
