package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/ghdash/internal/model"
)

func TestLanguages(t *testing.T) {
	tests := []struct {
		name  string
		repos []model.Repository
		want  model.LanguageStats
	}{
		{
			name:  "no repositories",
			repos: nil,
			want:  model.LanguageStats{},
		},
		{
			name:  "no languages at all",
			repos: []model.Repository{{Name: "a"}, {Name: "b"}},
			want:  model.LanguageStats{},
		},
		{
			name: "three languages round independently",
			repos: []model.Repository{
				{Name: "repo1", Language: "JavaScript"},
				{Name: "repo2", Language: "TypeScript"},
				{Name: "repo3", Language: "Python"},
			},
			want: model.LanguageStats{"JavaScript": 33, "TypeScript": 33, "Python": 33},
		},
		{
			name: "repositories without a language are ignored",
			repos: []model.Repository{
				{Name: "a", Language: "Go"},
				{Name: "b", Language: "Go"},
				{Name: "c", Language: "Go"},
				{Name: "d", Language: "HTML"},
				{Name: "e"},
			},
			want: model.LanguageStats{"Go": 75, "HTML": 25},
		},
		{
			name: "half rounds up",
			repos: []model.Repository{
				{Name: "a", Language: "Go"},
				{Name: "b", Language: "Rust"},
				{Name: "c", Language: "Rust"},
				{Name: "d", Language: "Rust"},
				{Name: "e", Language: "Rust"},
				{Name: "f", Language: "Rust"},
				{Name: "g", Language: "Rust"},
				{Name: "h", Language: "Rust"},
			},
			// 1/8 = 12.5 -> 13, 7/8 = 87.5 -> 88
			want: model.LanguageStats{"Go": 13, "Rust": 88},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Languages(tt.repos))
		})
	}
}

func TestLanguages_PercentagesInRange(t *testing.T) {
	languages := []string{"Go", "C", "", "Zig", "Go", "Lua", ""}
	for n := 0; n < 40; n++ {
		var repos []model.Repository
		for i := 0; i < n; i++ {
			repos = append(repos, model.Repository{
				Name:     fmt.Sprintf("r%d", i),
				Language: languages[(i*7+n)%len(languages)],
			})
		}
		for lang, pct := range Languages(repos) {
			assert.GreaterOrEqual(t, pct, 0, lang)
			assert.LessOrEqual(t, pct, 100, lang)
		}
	}
}

func TestSummarize_AlwaysHasTwelveMonths(t *testing.T) {
	summary := Summarize(time.UTC)

	assert.Equal(t, 0, summary.TotalCommits)
	assert.Len(t, summary.MonthlyCommits, 12)
	for _, label := range model.MonthLabels {
		assert.Equal(t, 0, summary.MonthlyCommits.Get(label))
	}
}

func TestSummarize_FoldsByAuthorMonth(t *testing.T) {
	day := func(m time.Month, d int) model.Commit {
		return model.Commit{AuthorDate: time.Date(2026, m, d, 12, 0, 0, 0, time.UTC)}
	}
	repoA := []model.Commit{day(time.May, 1), day(time.May, 20), day(time.June, 2)}
	repoB := []model.Commit{day(time.October, 1)}

	summary := Summarize(time.UTC, repoA, repoB)

	assert.Equal(t, 4, summary.TotalCommits)
	assert.Equal(t, 2, summary.MonthlyCommits.Get("May"))
	assert.Equal(t, 1, summary.MonthlyCommits.Get("Jun"))
	assert.Equal(t, 1, summary.MonthlyCommits.Get("Oct"))
	assert.Equal(t, 0, summary.MonthlyCommits.Get("Jan"))
}

func TestFoldCommits_UsesLocation(t *testing.T) {
	// 23:30 UTC on 31 January is already February in UTC+2.
	commit := model.Commit{AuthorDate: time.Date(2026, time.January, 31, 23, 30, 0, 0, time.UTC)}
	plusTwo := time.FixedZone("UTC+2", 2*60*60)

	var utc, shifted model.CommitSummary
	FoldCommits(&utc, []model.Commit{commit}, nil)
	FoldCommits(&shifted, []model.Commit{commit}, plusTwo)

	assert.Equal(t, 1, utc.MonthlyCommits.Get("Jan"))
	assert.Equal(t, 1, shifted.MonthlyCommits.Get("Feb"))
}
