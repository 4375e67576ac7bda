package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/model"
)

var (
	accentColor = lipgloss.Color("6")
	mutedColor  = lipgloss.Color("8")
	errorColor  = lipgloss.Color("9")

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	tabStyle         = lipgloss.NewStyle().Foreground(mutedColor)
	labelStyle       = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle       = lipgloss.NewStyle().Bold(true)
	cardStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor).Padding(0, 1)
	sectionStyle     = lipgloss.NewStyle().Bold(true).MarginTop(1)
	barStyle         = lipgloss.NewStyle().Foreground(accentColor)
	mutedStyle       = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle       = lipgloss.NewStyle().Foreground(errorColor)
	dateHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginTop(1)
	currentPageStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
)

// barWidth is the length of the busiest month's bar.
const barWidth = 30

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.tab == dashboardTab {
		b.WriteString(m.renderDashboard())
	} else {
		b.WriteString(m.renderCommits())
	}

	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) renderHeader() string {
	name := "ghdash"
	if m.user != nil {
		name += " · " + m.user.DisplayName()
	}

	tabs := []string{"Dashboard", "Commits"}
	for i, t := range tabs {
		if tab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(t)
		} else {
			tabs[i] = tabStyle.Render(t)
		}
	}
	return titleStyle.Render(name) + "   " + strings.Join(tabs, "  ")
}

func (m Model) renderDashboard() string {
	st := m.status
	var b strings.Builder

	if st.Snapshot == nil {
		switch st.State {
		case dashboard.Failed:
			b.WriteString(errorStyle.Render(st.Err))
		default:
			b.WriteString("Loading dashboard...")
		}
		return b.String()
	}

	b.WriteString(freshness(st))
	if st.State == dashboard.Failed && st.Err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(st.Err))
	}
	b.WriteString("\n")

	snap := st.Snapshot
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Projects", snap.Profile.PublicRepos),
		card("Commits (6 months)", snap.Summary.TotalCommits),
		card("Followers", snap.Profile.Followers),
		card("Following", snap.Profile.Following),
	))

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Commits per month"))
	b.WriteString("\n")
	b.WriteString(monthChart(snap.Summary.MonthlyCommits))

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Languages"))
	b.WriteString("\n")
	b.WriteString(languageList(snap.Languages))

	return b.String()
}

func freshness(st dashboard.Status) string {
	var line string
	if st.State == dashboard.Loading {
		line = "Refreshing... "
	}
	line += "Updated " + humanize.Time(st.LastRefresh)
	if st.FromCache {
		line += " (cached)"
	}
	line += fmt.Sprintf(". Next refresh in %d min.", int(st.NextRefreshIn/time.Minute))
	return mutedStyle.Render(line)
}

func card(label string, value int) string {
	return cardStyle.Render(labelStyle.Render(label) + "\n" + valueStyle.Render(humanize.Comma(int64(value))))
}

func monthChart(counts model.MonthlyCounts) string {
	highest := counts.Max()
	lines := make([]string, len(model.MonthLabels))
	for i, label := range model.MonthLabels {
		n := 0
		if highest > 0 {
			n = counts[i] * barWidth / highest
		}
		bar := strings.Repeat("█", n)
		lines[i] = fmt.Sprintf("%s %s %d", label, barStyle.Render(fmt.Sprintf("%-*s", barWidth, bar)), counts[i])
	}
	return strings.Join(lines, "\n")
}

func languageList(stats model.LanguageStats) string {
	shares := stats.Sorted()
	if len(shares) == 0 {
		return mutedStyle.Render("No languages yet")
	}
	lines := make([]string, len(shares))
	for i, s := range shares {
		lines[i] = fmt.Sprintf("%-16s %3d%%", s.Language, s.Percent)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCommits() string {
	var b strings.Builder
	f := m.commits.Filter()

	title := "MY COMMITS"
	if f.Repo != "" {
		title += " in " + f.Repo
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(filterLine(f))
	b.WriteString("\n")

	if m.editing != noField {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.inputErr != "" {
			b.WriteString(errorStyle.Render(m.inputErr))
			b.WriteString("\n")
		}
	}

	if m.pageErr != nil {
		b.WriteString(errorStyle.Render(m.pageErr.Error()))
		b.WriteString("\n")
	}

	switch {
	case m.page == nil:
		b.WriteString("Loading commits...")
		return b.String()
	case m.commits.Busy():
		b.WriteString(mutedStyle.Render("Searching..."))
		b.WriteString("\n")
	}

	if len(m.page.Items) == 0 {
		b.WriteString("No commits found")
		return b.String()
	}

	for _, g := range m.page.Groups {
		b.WriteString(dateHeaderStyle.Render(g.Label))
		b.WriteString("\n")
		for _, item := range g.Items {
			b.WriteString("  ")
			b.WriteString(firstLine(item.Message))
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render(fmt.Sprintf("    %s authored %s · %s",
				item.AuthorName, humanize.Time(item.AuthorDate), item.RepoName)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Page %d of %d · %s commits",
		m.page.Filter.Page, max(m.page.TotalPages, 1), humanize.Comma(int64(m.page.Total))))
	if strip := pageStrip(m.page); strip != "" {
		b.WriteString("   ")
		b.WriteString(strip)
	}
	return b.String()
}

func filterLine(f commits.Filter) string {
	parts := []string{
		"search: " + orDash(f.Term),
		"since: " + orDash(formatDate(f.Start)),
		"until: " + orDash(formatDate(f.End)),
	}
	return mutedStyle.Render(strings.Join(parts, "   "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// pageStrip renders the page navigation of p with the current page in
// brackets. A single page has no strip.
func pageStrip(p *commits.Page) string {
	items := commits.PageList(p.Filter.Page, p.TotalPages)
	parts := make([]string, len(items))
	for i, item := range items {
		switch {
		case item.Ellipsis:
			parts[i] = "…"
		case item.Number == p.Filter.Page:
			parts[i] = currentPageStyle.Render("[" + strconv.Itoa(item.Number) + "]")
		default:
			parts[i] = strconv.Itoa(item.Number)
		}
	}
	return strings.Join(parts, " ")
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	return line
}

func (m Model) helpLine() string {
	switch {
	case m.editing == termField:
		return "type to search · enter/esc: done"
	case m.editing != noField:
		return "enter: apply (empty clears) · esc: cancel"
	case m.tab == dashboardTab:
		return "r: refresh · tab: commits · q: quit"
	default:
		return "/: search · s/u: since/until · n/p: page · r: refresh · tab: dashboard · q: quit"
	}
}
