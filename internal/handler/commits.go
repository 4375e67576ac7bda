package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/session"
)

// CommitSearcher is the part of commits.Service the handler uses.
type CommitSearcher interface {
	Search(ctx context.Context, sess *session.Session, f commits.Filter, force bool) (*commits.Page, error)
}

// CommitsHandler serves the commit history page and its JSON twin.
type CommitsHandler struct {
	sessions SessionService
	commits  CommitSearcher
	pages    *Pages
	// debounce is handed to the page script that submits the search box.
	debounce time.Duration
	logger   *slog.Logger
}

// NewCommitsHandler creates a CommitsHandler.
func NewCommitsHandler(
	sessions SessionService,
	searcher CommitSearcher,
	pages *Pages,
	debounce time.Duration,
	logger *slog.Logger,
) *CommitsHandler {
	return &CommitsHandler{
		sessions: sessions,
		commits:  searcher,
		pages:    pages,
		debounce: debounce,
		logger:   logger,
	}
}

// query is the raw form of a search, echoed back into the form and the
// page links.
type query struct {
	Term  string
	Since string
	Until string
	Repo  string
}

// parseFilter reads a commit search from the request.
//
// QUERY PARAMETERS:
//
//	q        free-text term
//	since    first author date, YYYY-MM-DD
//	until    last author date, YYYY-MM-DD
//	page     1-based page number
//	refresh  any true value bypasses the commit cache
//
// Dates are calendar days in UTC, which is how they reach the search query.
func parseFilter(r *http.Request, repo string) (query, commits.Filter, bool, error) {
	v := r.URL.Query()
	q := query{
		Term:  v.Get("q"),
		Since: strings.TrimSpace(v.Get("since")),
		Until: strings.TrimSpace(v.Get("until")),
		Repo:  repo,
	}
	f := commits.Filter{Term: q.Term, Repo: repo, Page: 1}

	var err error
	if f.Start, err = parseDate("since", q.Since); err != nil {
		return q, f, false, err
	}
	if f.End, err = parseDate("until", q.Until); err != nil {
		return q, f, false, err
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return q, f, false, apperror.ValidationFailed("since", "The start date must not be after the end date.")
	}

	if raw := v.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, f, false, apperror.ValidationFailed("page", "page must be a number")
		}
		f.Page = max(page, 1)
	}

	force, _ := strconv.ParseBool(v.Get("refresh"))
	return q, f, force, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return nil, apperror.ValidationFailed(field, field+" must be a date like 2024-01-31")
	}
	return &t, nil
}

// pageLink is one entry of the rendered page strip.
type pageLink struct {
	Number   int
	Ellipsis bool
	Current  bool
	URL      string
}

// commitsView is the data of commits.html.
type commitsView struct {
	layout
	Action         string
	Term           string
	Since          string
	Until          string
	Repo           string
	DebounceMillis int64
	Page           *commits.Page
	Error          string
	Links          []pageLink
	PrevURL        string
	NextURL        string
}

func (h *CommitsHandler) newView(user *model.UserProfile, q query) commitsView {
	return commitsView{
		layout:         layout{Title: "My commits · ghdash", User: user},
		Action:         basePath(q.Repo),
		Term:           q.Term,
		Since:          q.Since,
		Until:          q.Until,
		Repo:           q.Repo,
		DebounceMillis: h.debounce.Milliseconds(),
	}
}

func basePath(repo string) string {
	if repo == "" {
		return "/commits"
	}
	return "/commits/" + url.PathEscape(repo)
}

// pageURL links to page n of the same search.
func pageURL(q query, n int) string {
	v := url.Values{}
	if q.Term != "" {
		v.Set("q", q.Term)
	}
	if q.Since != "" {
		v.Set("since", q.Since)
	}
	if q.Until != "" {
		v.Set("until", q.Until)
	}
	if n > 1 {
		v.Set("page", strconv.Itoa(n))
	}
	if len(v) == 0 {
		return basePath(q.Repo)
	}
	return basePath(q.Repo) + "?" + v.Encode()
}

func pageLinks(q query, p *commits.Page) (links []pageLink, prev, next string) {
	for _, item := range p.Pages {
		link := pageLink{Number: item.Number, Ellipsis: item.Ellipsis}
		if !item.Ellipsis {
			link.Current = item.Number == p.Filter.Page
			link.URL = pageURL(q, item.Number)
		}
		links = append(links, link)
	}
	if len(links) == 0 {
		return nil, "", ""
	}
	if p.HasPrev() {
		prev = pageURL(q, p.Filter.Page-1)
	}
	if p.HasNext() {
		next = pageURL(q, p.Filter.Page+1)
	}
	return links, prev, next
}

// HandleCommits renders one page of the signed-in user's commits.
//
// HTTP: GET /commits, GET /commits/{repo}
//
// Errors stay on the page: the search form is shown again with the values
// the user typed and the message above the (empty) list.
func (h *CommitsHandler) HandleCommits(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, false, h.logger)
	if active == nil {
		return
	}

	q, f, force, err := parseFilter(r, chi.URLParam(r, "repo"))
	view := h.newView(active.Session.User, q)
	if err != nil {
		status, _, message := classify(err)
		view.Error = message
		h.pages.render(w, status, "commits", view)
		return
	}

	page, err := h.commits.Search(r.Context(), active.Session, f, force)
	if err != nil {
		if h.revoked(w, r, err) {
			return
		}
		h.logger.Warn("commit search failed",
			slog.String("profile", active.Session.Profile),
			slog.String("error", err.Error()),
		)
		status, _, message := classify(err)
		view.Error = message
		h.pages.render(w, status, "commits", view)
		return
	}

	view.Page = page
	view.Links, view.PrevURL, view.NextURL = pageLinks(q, page)
	h.pages.render(w, http.StatusOK, "commits", view)
}

// HandleAPICommits returns one page of commits as JSON.
//
// HTTP: GET /api/commits?q=&since=&until=&repo=&page=&refresh=
func (h *CommitsHandler) HandleAPICommits(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, true, h.logger)
	if active == nil {
		return
	}

	_, f, force, err := parseFilter(r, strings.TrimSpace(r.URL.Query().Get("repo")))
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.commits.Search(r.Context(), active.Session, f, force)
	if err != nil {
		h.logger.Warn("commit search failed",
			slog.String("profile", active.Session.Profile),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// revoked handles a token GitHub stopped accepting mid-session: the page
// would only keep failing, so the visitor is sent back to /login. GitHub
// signals it with a 401, which the client reports as an API error.
func (h *CommitsHandler) revoked(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, apperror.ErrAuth) && apperror.StatusOf(err) != http.StatusUnauthorized {
		return false
	}
	if profile, ok := auth.ProfileFromContext(r.Context()); ok {
		if err := h.sessions.Logout(r.Context(), profile); err != nil {
			h.logger.Error("logout after rejected token failed",
				slog.String("profile", profile),
				slog.String("error", err.Error()),
			)
		}
	}
	signOut(w, r, false)
	return true
}
