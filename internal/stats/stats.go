// Package stats folds raw repositories and commits into the summaries the
// dashboard renders. Everything here is pure: no I/O, no clock.
package stats

import (
	"math"
	"time"

	"github.com/sakif/ghdash/internal/model"
)

// Languages counts repositories per non-empty language and converts each
// count into a rounded percentage of the repositories that have one.
//
// A list with no languages yields an empty map.
func Languages(repos []model.Repository) model.LanguageStats {
	counts := make(map[string]int)
	total := 0
	for _, r := range repos {
		if r.Language == "" {
			continue
		}
		counts[r.Language]++
		total++
	}

	out := make(model.LanguageStats, len(counts))
	if total == 0 {
		return out
	}
	for lang, n := range counts {
		out[lang] = int(math.Round(float64(n) * 100 / float64(total)))
	}
	return out
}

// FoldCommits adds each commit to the month of its author date, evaluated
// in loc. A nil loc means UTC.
func FoldCommits(summary *model.CommitSummary, commits []model.Commit, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	for _, c := range commits {
		summary.MonthlyCommits.Add(c.AuthorDate.In(loc))
		summary.TotalCommits++
	}
}

// Summarize is FoldCommits over several commit lists into a fresh summary.
func Summarize(loc *time.Location, lists ...[]model.Commit) model.CommitSummary {
	var summary model.CommitSummary
	for _, commits := range lists {
		FoldCommits(&summary, commits, loc)
	}
	return summary
}
