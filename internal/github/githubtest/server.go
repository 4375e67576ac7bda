// Package githubtest provides an in-process fake of the slice of the GitHub
// REST API the dashboard uses, for tests in any package.
//
// It speaks the real wire format (snake_case JSON, RFC 3339 dates) and
// rejects requests whose Authorization header is not "token <Token>".
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// User is the fake /user payload.
type User struct {
	ID          int64
	Login       string
	Name        string
	AvatarURL   string
	Company     string
	PublicRepos int
	Followers   int
	Following   int
}

// Repo is one entry of the fake /users/{u}/repos list.
type Repo struct {
	Name     string
	Language string
	Fork     bool
}

// SearchItem is one fake /search/commits hit.
type SearchItem struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
	Repo    string
}

// Request is what the server recorded about one incoming call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Server is a fake GitHub API. The zero configuration answers every call
// with empty data; use the setters to shape responses.
type Server struct {
	*httptest.Server

	// Token is the PAT the server accepts.
	Token string

	mu           sync.Mutex
	user         User
	userStatus   int
	repos        []Repo
	reposStatus  int
	commits      map[string][]time.Time
	failing      map[string]int
	searchTotal  int
	searchItems  []SearchItem
	searchStatus int
	requests     []Request
}

// New starts a fake server accepting token and closes it when t ends.
func New(t testing.TB, token string) *Server {
	t.Helper()

	s := &Server{
		Token:   token,
		commits: make(map[string][]time.Time),
		failing: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", s.handleUser)
	mux.HandleFunc("GET /users/{user}/repos", s.handleRepos)
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits", s.handleCommits)
	mux.HandleFunc("GET /search/commits", s.handleSearch)

	s.Server = httptest.NewServer(s.authenticate(mux))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) SetUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// FailUser makes GET /user answer with status. 0 restores normal answers.
func (s *Server) FailUser(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userStatus = status
}

func (s *Server) SetRepos(repos ...Repo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos = repos
}

// FailRepos makes the repository list answer with status.
func (s *Server) FailRepos(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reposStatus = status
}

// SetCommits sets the author dates of repo's commits.
func (s *Server) SetCommits(repo string, dates ...time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[repo] = dates
}

// FailCommits makes repo's commit list answer with status.
func (s *Server) FailCommits(repo string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[repo] = status
}

// SetSearch sets the total_count and the items returned for every page.
func (s *Server) SetSearch(total int, items ...SearchItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTotal = total
	s.searchItems = items
}

func (s *Server) FailSearch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchStatus = status
}

// Requests returns every authenticated or rejected call seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many calls hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// LastQuery returns the query string of the most recent call to path.
func (s *Server) LastQuery(path string) url.Values {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i].Query
		}
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "token "+s.Token {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUser(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	u, status := s.user, s.userStatus
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}

	body := map[string]any{
		"id":           u.ID,
		"login":        u.Login,
		"avatar_url":   u.AvatarURL,
		"public_repos": u.PublicRepos,
		"followers":    u.Followers,
		"following":    u.Following,
		"name":         nullable(u.Name),
		"company":      nullable(u.Company),
	}
	writeJSON(w, body)
}

func (s *Server) handleRepos(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	repos, status := s.repos, s.reposStatus
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}

	body := make([]map[string]any, 0, len(repos))
	for _, r := range repos {
		body = append(body, map[string]any{
			"name":     r.Name,
			"language": nullable(r.Language),
			"fork":     r.Fork,
		})
	}
	writeJSON(w, body)
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("repo")

	s.mu.Lock()
	dates, status := s.commits[repo], s.failing[repo]
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}

	since, _ := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	until, _ := time.Parse(time.RFC3339, r.URL.Query().Get("until"))

	body := make([]map[string]any, 0, len(dates))
	for i, d := range dates {
		if !since.IsZero() && d.Before(since) {
			continue
		}
		if !until.IsZero() && d.After(until) {
			continue
		}
		body = append(body, map[string]any{
			"sha": fmt.Sprintf("%s-%d", repo, i),
			"commit": map[string]any{
				"message": fmt.Sprintf("commit %d", i),
				"author": map[string]any{
					"name": "Octo Cat",
					"date": d.UTC().Format(time.RFC3339),
				},
			},
		})
	}
	writeJSON(w, body)
}

func (s *Server) handleSearch(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	total, items, status := s.searchTotal, s.searchItems, s.searchStatus
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"sha":      it.SHA,
			"html_url": "https://github.com/" + it.Repo + "/commit/" + it.SHA,
			"commit": map[string]any{
				"message": it.Message,
				"author": map[string]any{
					"name": it.Author,
					"date": it.Date.UTC().Format(time.RFC3339),
				},
			},
			"author": map[string]any{
				"login":      it.Author,
				"avatar_url": "https://avatars.example/" + it.Author,
			},
			"repository": map[string]any{"name": it.Repo},
		})
	}

	writeJSON(w, map[string]any{
		"total_count":        total,
		"incomplete_results": false,
		"items":              out,
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message":           message,
		"documentation_url": "https://docs.github.com/rest",
	})
}
