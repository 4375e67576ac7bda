package github

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v74/github"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/stats"
)

// statsWindowMonths is how far back GetCommitStats looks.
const statsWindowMonths = 6

// SearchParams narrows a commit search. Zero values mean "no filter";
// Page and PerPage default to 1 and 30.
type SearchParams struct {
	Username string
	Term     string
	Start    *time.Time
	End      *time.Time
	Repo     string
	Page     int
	PerPage  int
}

// SearchQuery builds the q parameter for /search/commits:
//
//	author:<user> [<term>|"<multi word term>"] [committer-date:>=YYYY-MM-DD] [committer-date:<=YYYY-MM-DD] [repo:<user>/<repo>]
//
// Dates are rendered as UTC calendar dates.
func SearchQuery(p SearchParams) string {
	parts := []string{"author:" + p.Username}

	if term := strings.TrimSpace(p.Term); term != "" {
		if strings.ContainsAny(term, " \t\n\r") {
			term = `"` + term + `"`
		}
		parts = append(parts, term)
	}
	if p.Start != nil {
		parts = append(parts, "committer-date:>="+p.Start.UTC().Format(time.DateOnly))
	}
	if p.End != nil {
		parts = append(parts, "committer-date:<="+p.End.UTC().Format(time.DateOnly))
	}
	if p.Repo != "" {
		parts = append(parts, "repo:"+p.Username+"/"+p.Repo)
	}

	return strings.Join(parts, " ")
}

// SearchUserCommits runs one page of a commit search, newest author date
// first.
func (c *Client) SearchUserCommits(ctx context.Context, p SearchParams) (*model.CommitListPage, error) {
	if err := c.requireToken(); err != nil {
		return nil, err
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	perPage := p.PerPage
	if perPage < 1 {
		perPage = 30
	}

	opts := &gh.SearchOptions{
		Sort:        "author-date",
		Order:       "desc",
		ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
	}
	res, _, err := c.api.Search.Commits(ctx, SearchQuery(p), opts)
	if err != nil {
		return nil, mapError(err)
	}

	out := &model.CommitListPage{
		TotalCount: res.GetTotal(),
		Items:      make([]model.CommitItem, 0, len(res.Commits)),
	}
	for _, r := range res.Commits {
		if r == nil {
			continue
		}
		author := r.GetCommit().GetAuthor()
		out.Items = append(out.Items, model.CommitItem{
			SHA:             r.GetSHA(),
			Message:         r.GetCommit().GetMessage(),
			AuthorName:      author.GetName(),
			AuthorDate:      author.GetDate().Time,
			AuthorAvatarURL: r.GetAuthor().GetAvatarURL(),
			HTMLURL:         r.GetHTMLURL(),
			RepoName:        r.GetRepository().GetName(),
		})
	}
	return out, nil
}

// GetCommitStats aggregates the last six months of commits across repos.
// See GetCommitStatsWithProgress.
func (c *Client) GetCommitStats(ctx context.Context, username string, repos []model.Repository) (model.CommitSummary, error) {
	return c.GetCommitStatsWithProgress(ctx, username, repos, nil)
}

// GetCommitStatsWithProgress fetches each repository's commits in the
// window [now-6 months, now] and folds them into monthly counts.
//
// FAILURE POLICY:
// A repository whose fetch fails is logged and skipped; the remaining
// repositories still count. Only context cancellation aborts the whole
// aggregation. The result always carries all twelve months.
//
// progress, when non-nil, is called once per repository as it finishes,
// with the fetch error (nil on success). Calls may come from several
// goroutines but never concurrently.
func (c *Client) GetCommitStatsWithProgress(
	ctx context.Context,
	username string,
	repos []model.Repository,
	progress func(repo string, err error),
) (model.CommitSummary, error) {
	var summary model.CommitSummary
	if err := c.requireToken(); err != nil {
		return summary, err
	}

	until := c.clock.Now()
	since := until.AddDate(0, -statsWindowMonths, 0)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)

	for _, repo := range repos {
		name := repo.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			commits, err := c.GetRepositoryCommits(ctx, username, name, &since, &until)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				partial := apperror.PartialFetch(name, err)
				c.logger.Warn("skipping repository in commit stats",
					slog.String("repo", name),
					slog.String("error", partial.Error()),
				)
			} else {
				stats.FoldCommits(&summary, commits, time.UTC)
			}
			if progress != nil {
				progress(name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.CommitSummary{}, err
	}
	return summary, nil
}
