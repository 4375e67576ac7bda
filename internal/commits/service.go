package commits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/cache"
	"github.com/sakif/ghdash/internal/github"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/session"
)

// Page is one rendered page of commit history.
type Page struct {
	Filter     Filter             `json:"filter"`
	PageSize   int                `json:"pageSize"`
	Total      int                `json:"totalCount"`
	TotalPages int                `json:"totalPages"`
	Items      []model.CommitItem `json:"items"`
	Groups     []DateGroup        `json:"groups"`
	Pages      []PageItem         `json:"pages"`
	FromCache  bool               `json:"fromCache"`
	Timestamp  time.Time          `json:"timestamp"`
}

// HasPrev reports whether there is a page before this one.
func (p *Page) HasPrev() bool { return p.Filter.Page > 1 }

// HasNext reports whether there is a page after this one.
func (p *Page) HasNext() bool { return p.Filter.Page < p.TotalPages }

// Service runs commit searches for sessions.
type Service struct {
	cache    *cache.Cache
	pageSize int
	loc      *time.Location
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewService returns a Service. pageSize <= 0 means DefaultPageSize and a
// nil loc groups dates in time.Local.
func NewService(snapshots *cache.Cache, pageSize int, loc *time.Location, clock clockwork.Clock, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		cache:    snapshots,
		pageSize: pageSize,
		loc:      loc,
		clock:    clock,
		logger:   logger,
	}
}

// PageSize returns the number of commits per page.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Search returns one page of the session user's commits matching f.
//
// The unfiltered first page is served from the commit cache while it is
// fresh, unless force is set. Every other filter goes to GitHub. A
// successful unfiltered first page is written back to the cache.
func (s *Service) Search(ctx context.Context, sess *session.Session, f Filter, force bool) (*Page, error) {
	if sess == nil || sess.User == nil || sess.Client == nil {
		return nil, apperror.Auth("Not signed in")
	}
	if f.Page < 1 {
		f.Page = 1
	}

	key := cache.Key(sess.Profile, cache.KindCommits)
	if f.IsDefault() && !force {
		var cached model.CommitListPage
		ts, ok, err := s.cache.Load(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("commit cache unavailable",
				slog.String("profile", sess.Profile),
				slog.String("error", err.Error()),
			)
		}
		if ok {
			return s.build(f, &cached, true, ts), nil
		}
	}

	res, err := sess.Client.SearchUserCommits(ctx, github.SearchParams{
		Username: sess.User.Login,
		Term:     f.Term,
		Start:    f.Start,
		End:      f.End,
		Repo:     f.Repo,
		Page:     f.Page,
		PerPage:  s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("commits: searching: %w", err)
	}

	ts := s.clock.Now()
	if f.IsDefault() {
		saved, err := s.cache.Save(ctx, key, res)
		if err != nil {
			s.logger.Warn("failed to cache commit list",
				slog.String("profile", sess.Profile),
				slog.String("error", err.Error()),
			)
		} else {
			ts = saved
		}
	}

	s.logger.Debug("commit search",
		slog.String("profile", sess.Profile),
		slog.String("term", f.Term),
		slog.Int("page", f.Page),
		slog.Int("total", res.TotalCount),
	)

	return s.build(f, res, false, ts), nil
}

func (s *Service) build(f Filter, res *model.CommitListPage, fromCache bool, ts time.Time) *Page {
	items := res.Items
	if items == nil {
		items = []model.CommitItem{}
	}
	totalPages := TotalPages(res.TotalCount, s.pageSize)
	return &Page{
		Filter:     f,
		PageSize:   s.pageSize,
		Total:      res.TotalCount,
		TotalPages: totalPages,
		Items:      items,
		Groups:     GroupByDate(items, s.loc),
		Pages:      PageList(f.Page, totalPages),
		FromCache:  fromCache,
		Timestamp:  ts,
	}
}
