package model

import "sort"

// LanguageStats maps a language name to its integer share (0-100) of the
// repositories that have a language. Shares are rounded independently and
// need not sum to exactly 100.
type LanguageStats map[string]int

// LanguageShare is one LanguageStats entry.
type LanguageShare struct {
	Language string `json:"language"`
	Percent  int    `json:"percent"`
}

// Sorted returns the entries by share descending, then by name.
func (s LanguageStats) Sorted() []LanguageShare {
	out := make([]LanguageShare, 0, len(s))
	for lang, pct := range s {
		out = append(out, LanguageShare{Language: lang, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// DashboardSnapshot is everything the dashboard view renders. It is the
// payload of the dashboard cache entry.
type DashboardSnapshot struct {
	Profile   UserProfile   `json:"profile"`
	Summary   CommitSummary `json:"summary"`
	Languages LanguageStats `json:"languages"`
}
