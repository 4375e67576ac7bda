package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ghdash/internal/model"
)

func TestReadToken_FromPipe(t *testing.T) {
	var prompt bytes.Buffer

	token, err := readToken(strings.NewReader("  ghp_piped \nignored\n"), &prompt)

	require.NoError(t, err)
	assert.Equal(t, "ghp_piped", token)
	assert.Empty(t, prompt.String(), "no prompt without a terminal")
}

func TestReadToken_NoTrailingNewline(t *testing.T) {
	token, err := readToken(strings.NewReader("ghp_eof"), &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, "ghp_eof", token)
}

func TestPrintSnapshot(t *testing.T) {
	snap := &model.DashboardSnapshot{
		Profile:   model.UserProfile{Login: "octocat", Name: "The Octocat", PublicRepos: 25, Followers: 1500, Following: 50},
		Summary:   model.CommitSummary{TotalCommits: 1234},
		Languages: model.LanguageStats{"Go": 67, "TypeScript": 33},
	}
	snap.Summary.MonthlyCommits.Add(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC))

	var out bytes.Buffer
	printSnapshot(&out, snap, []string{"broken", "gone"})

	text := out.String()
	assert.Contains(t, text, "The Octocat (@octocat)")
	assert.Contains(t, text, "1,234")
	assert.Contains(t, text, "1,500")
	assert.Contains(t, text, "Oct  1")
	assert.NotContains(t, text, "Jan", "empty months are left out")
	assert.Regexp(t, `Go\s+67%`, text)
	assert.Contains(t, text, "Skipped 2 repositories: broken, gone")
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 repository", plural(1, "repository", "repositories"))
	assert.Equal(t, "3 repositories", plural(3, "repository", "repositories"))
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"login", "logout", "tui", "stats"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
