// Package commits implements the commit history view: filtered, paginated
// commit search with date grouping and a compact page strip.
package commits

import (
	"strings"
	"time"

	"github.com/sakif/ghdash/internal/model"
)

// DefaultPageSize is how many commits one page holds.
const DefaultPageSize = 30

// dateLabelLayout renders "January 2". There is no year, so the same day in
// different years shares a group.
const dateLabelLayout = "January 2"

// Filter selects which commits to show.
type Filter struct {
	Term  string     `json:"term,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Repo  string     `json:"repo,omitempty"`
	Page  int        `json:"page"`
}

// IsDefault reports whether f is the unfiltered first page, the only view
// that is cached.
func (f Filter) IsDefault() bool {
	return strings.TrimSpace(f.Term) == "" &&
		f.Start == nil &&
		f.End == nil &&
		f.Repo == "" &&
		f.Page <= 1
}

// DateGroup is a run of commits sharing a calendar date label.
type DateGroup struct {
	Label string             `json:"label"`
	Items []model.CommitItem `json:"items"`
}

// GroupByDate buckets items by the "January 2" label of their author date in
// loc. Groups appear in order of their first item and items keep their
// incoming order, so a newest-first list stays newest-first.
func GroupByDate(items []model.CommitItem, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}

	var groups []DateGroup
	index := make(map[string]int)
	for _, it := range items {
		label := it.AuthorDate.In(loc).Format(dateLabelLayout)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// PageItem is one entry of the page strip: a page number or a gap.
type PageItem struct {
	Number   int  `json:"number,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// maxPlainPages is the largest page count shown without gaps.
const maxPlainPages = 5

// PageList returns the page strip for current out of total pages.
//
// Up to five pages are listed in full. Beyond that the strip always shows
// the first and last page, the pages around current, and an ellipsis for
// each hidden run:
//
//	PageList(1, 10)  = 1 2 3 4 … 10
//	PageList(5, 10)  = 1 … 4 5 6 … 10
//	PageList(10, 10) = 1 … 7 8 9 10
//
// A single page (or none) needs no strip and yields nil.
func PageList(current, total int) []PageItem {
	if total <= 1 {
		return nil
	}

	pages := make([]PageItem, 0, 7)
	if total <= maxPlainPages {
		for i := 1; i <= total; i++ {
			pages = append(pages, PageItem{Number: i})
		}
		return pages
	}

	current = ClampPage(current, total)

	start := max(2, current-1)
	end := min(total-1, current+1)
	if current <= 3 {
		end = 4
	}
	if current >= total-2 {
		start = total - 3
	}

	pages = append(pages, PageItem{Number: 1})
	if start > 2 {
		pages = append(pages, PageItem{Ellipsis: true})
	}
	for i := start; i <= end; i++ {
		pages = append(pages, PageItem{Number: i})
	}
	if end < total-1 {
		pages = append(pages, PageItem{Ellipsis: true})
	}
	pages = append(pages, PageItem{Number: total})

	return pages
}

// ClampPage keeps page within [1, total]. A total below 1 is treated as 1.
func ClampPage(page, total int) int {
	if total < 1 {
		total = 1
	}
	return min(max(page, 1), total)
}

// TotalPages is ceil(total/pageSize).
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
