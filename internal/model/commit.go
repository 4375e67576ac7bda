package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MonthLabels are the canonical month keys, in calendar order.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthlyCounts holds one commit count per calendar month, indexed by
// time.Month-1. Every label is always present, so there is no "missing
// month" state to handle.
//
// It marshals to a JSON object keyed by MonthLabels in calendar order:
//
//	{"Jan":0,"Feb":3,...,"Dec":1}
type MonthlyCounts [12]int

// Add increments the count for the month of t.
func (m *MonthlyCounts) Add(t time.Time) {
	m[t.Month()-1]++
}

// Get returns the count for a label such as "Mar". Unknown labels yield 0.
func (m MonthlyCounts) Get(label string) int {
	for i, l := range MonthLabels {
		if l == label {
			return m[i]
		}
	}
	return 0
}

// Max returns the largest monthly count.
func (m MonthlyCounts) Max() int {
	highest := 0
	for _, c := range m {
		if c > highest {
			highest = c
		}
	}
	return highest
}

func (m MonthlyCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range MonthLabels {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%d", label, m[i])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *MonthlyCounts) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MonthlyCounts{}
	for i, label := range MonthLabels {
		m[i] = raw[label]
	}
	return nil
}

// CommitSummary is derived from raw commit lists and never mutated in
// place; it is recomputed wholesale.
type CommitSummary struct {
	TotalCommits   int           `json:"totalCommits"`
	MonthlyCommits MonthlyCounts `json:"monthlyCommits"`
}

// Commit is one entry from a repository's commit list.
type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	AuthorName string    `json:"authorName"`
	AuthorDate time.Time `json:"authorDate"`
}

// CommitItem is one commit-search hit.
type CommitItem struct {
	SHA             string    `json:"sha"`
	Message         string    `json:"message"`
	AuthorName      string    `json:"authorName"`
	AuthorDate      time.Time `json:"authorDate"`
	AuthorAvatarURL string    `json:"authorAvatarUrl,omitempty"`
	HTMLURL         string    `json:"htmlUrl"`
	RepoName        string    `json:"repoName,omitempty"`
}

// CommitListPage is a single page of commit-search results, in the order
// the server returned them (newest first).
type CommitListPage struct {
	TotalCount int          `json:"totalCount"`
	Items      []CommitItem `json:"items"`
}
