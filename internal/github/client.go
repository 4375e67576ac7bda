// Package github is the dashboard's client for the GitHub REST API.
//
// It is a thin layer over go-github: every call goes through one
// *http.Client whose transport stack looks like this:
//
//	oauth2.Transport        → Authorization: token <PAT>
//	  └─ transport          → rate limit, commit-search Accept header
//	       └─ base          → http.DefaultTransport (or a test transport)
//
// ERROR CONTRACT:
//   - No token set          → apperror.ErrAuth, without touching the network
//   - GitHub answers non-2xx → apperror.ErrAPI carrying the status
//   - Network/decode failure → returned unchanged
//
// The client keeps no state besides the token. Caching, retries and
// refresh timing belong to the callers.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v74/github"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/stats"
)

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com/"

// Config holds the settings for a Client. Zero values fall back to the
// defaults noted on each field.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// RateLimit caps outbound requests per minute. 0 disables limiting.
	RateLimit int

	// Concurrency bounds the parallel per-repository commit fetches in
	// GetCommitStats. Defaults to 4.
	Concurrency int

	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration

	// Transport is the innermost RoundTripper. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper

	// Clock anchors the commit-stats window. Defaults to the real clock.
	Clock clockwork.Clock
}

// Client wraps go-github with PAT authentication.
// It is safe for concurrent use.
type Client struct {
	mu    sync.RWMutex
	token string

	api         *gh.Client
	clock       clockwork.Clock
	concurrency int
	logger      *slog.Logger
}

// NewClient builds a Client with no token set.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("github: parsing base URL %q: %w", cfg.BaseURL, err)
	}

	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		clock:       clk,
		concurrency: concurrency,
		logger:      logger,
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: tokenSource{c: c},
			Base:   &transport{base: rt, limiter: newLimiter(cfg.RateLimit)},
		},
	}
	c.api = gh.NewClient(httpClient)
	c.api.BaseURL = baseURL

	return c, nil
}

// SetToken replaces the token used for every subsequent request.
// An empty token clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current token, or "" when none is set.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) requireToken() error {
	if c.Token() == "" {
		return apperror.Auth("No GitHub token set")
	}
	return nil
}

// GetCurrentUser fetches the profile the token belongs to (GET /user).
// It doubles as token validation.
func (c *Client) GetCurrentUser(ctx context.Context) (*model.UserProfile, error) {
	if err := c.requireToken(); err != nil {
		return nil, err
	}

	u, _, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return nil, mapError(err)
	}

	return &model.UserProfile{
		ID:          u.GetID(),
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		AvatarURL:   u.GetAvatarURL(),
		Company:     u.GetCompany(),
		PublicRepos: u.GetPublicRepos(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
	}, nil
}

// GetUserRepositories lists username's repositories (GET /users/{u}/repos).
//
// Only the first page of 100 is fetched. Users with more repositories get
// stats computed over those 100.
func (c *Client) GetUserRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	if err := c.requireToken(); err != nil {
		return nil, err
	}

	opts := &gh.RepositoryListByUserOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	repos, _, err := c.api.Repositories.ListByUser(ctx, username, opts)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if r == nil {
			continue
		}
		out = append(out, model.Repository{
			Name:     r.GetName(),
			Language: r.GetLanguage(),
			Fork:     r.GetFork(),
		})
	}
	return out, nil
}

// GetRepositoryCommits lists up to 100 commits of owner/repo, optionally
// bounded by since and until.
func (c *Client) GetRepositoryCommits(ctx context.Context, owner, repo string, since, until *time.Time) ([]model.Commit, error) {
	if err := c.requireToken(); err != nil {
		return nil, err
	}

	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if since != nil {
		opts.Since = *since
	}
	if until != nil {
		opts.Until = *until
	}

	commits, _, err := c.api.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]model.Commit, 0, len(commits))
	for _, rc := range commits {
		if rc == nil {
			continue
		}
		author := rc.GetCommit().GetAuthor()
		out = append(out, model.Commit{
			SHA:        rc.GetSHA(),
			Message:    rc.GetCommit().GetMessage(),
			AuthorName: author.GetName(),
			AuthorDate: author.GetDate().Time,
		})
	}
	return out, nil
}

// CalculateLanguageStats is stats.Languages, exposed here so views only
// need the client.
func (c *Client) CalculateLanguageStats(repos []model.Repository) model.LanguageStats {
	return stats.Languages(repos)
}

// mapError turns go-github's typed HTTP errors into apperror.ErrAPI.
// Anything else (transport failures, cancelled contexts, bad JSON) is
// passed through.
func mapError(err error) error {
	if status, ok := responseStatus(err); ok {
		return apperror.API(status, "")
	}
	return err
}

func responseStatus(err error) (int, bool) {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode, true
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response.StatusCode, true
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return abuseErr.Response.StatusCode, true
	}
	return 0, false
}
