package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/model"
)

type fakeDashboard struct {
	mu        sync.Mutex
	status    dashboard.Status
	refreshes int
}

func (f *fakeDashboard) Status() dashboard.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeDashboard) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *fakeDashboard) OnChange(func(dashboard.Status)) {}

// fakeCommits records what the model asked the controller to do.
type fakeCommits struct {
	filter    commits.Filter
	loads     int
	refreshes int
	terms     []string
	nexts     int
	prevs     int
}

func (f *fakeCommits) Load()                         { f.loads++ }
func (f *fakeCommits) Refresh()                      { f.refreshes++ }
func (f *fakeCommits) SetTerm(term string)           { f.terms = append(f.terms, term) }
func (f *fakeCommits) SetStart(t *time.Time)         { f.filter.Start = t }
func (f *fakeCommits) SetEnd(t *time.Time)           { f.filter.End = t }
func (f *fakeCommits) Next()                         { f.nexts++ }
func (f *fakeCommits) Prev()                         { f.prevs++ }
func (f *fakeCommits) Busy() bool                    { return false }
func (f *fakeCommits) Filter() commits.Filter        { return f.filter }
func (f *fakeCommits) OnResult(func(commits.Result)) {}

func testSnapshot() *model.DashboardSnapshot {
	snap := &model.DashboardSnapshot{
		Profile:   model.UserProfile{Login: "octocat", Name: "The Octocat", PublicRepos: 25, Followers: 100, Following: 50},
		Summary:   model.CommitSummary{TotalCommits: 1234},
		Languages: model.LanguageStats{"Go": 67, "TypeScript": 33},
	}
	snap.Summary.MonthlyCommits[time.October-1] = 2
	snap.Summary.MonthlyCommits[time.September-1] = 1
	return snap
}

func readyStatus() dashboard.Status {
	return dashboard.Status{
		State:         dashboard.Ready,
		Snapshot:      testSnapshot(),
		LastRefresh:   time.Now().Add(-5 * time.Minute),
		FromCache:     true,
		NextRefreshIn: 10 * time.Minute,
	}
}

func newTestModel(status dashboard.Status) (Model, *fakeDashboard, *fakeCommits) {
	dash := &fakeDashboard{status: status}
	c := &fakeCommits{filter: commits.Filter{Page: 1}}
	user := &model.UserProfile{Login: "octocat", Name: "The Octocat"}
	m := NewModel(context.Background(), dash, c, user, time.UTC)
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, dash, c
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func keys(m Model, s string) Model {
	for _, r := range s {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func testPage(page, totalPages int) *commits.Page {
	items := []model.CommitItem{
		{SHA: "a1", Message: "Fix login redirect\n\nlonger body", AuthorName: "octocat", AuthorDate: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), RepoName: "hello-world"},
		{SHA: "b2", Message: "Add page strip", AuthorName: "octocat", AuthorDate: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC), RepoName: "ghdash"},
	}
	return &commits.Page{
		Filter:     commits.Filter{Page: page},
		PageSize:   30,
		Total:      totalPages * 30,
		TotalPages: totalPages,
		Items:      items,
		Groups:     commits.GroupByDate(items, time.UTC),
		Pages:      commits.PageList(page, totalPages),
	}
}

// ===== DASHBOARD =====

func TestModelDashboardView(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())

	view := m.View()

	for _, want := range []string{
		"The Octocat",
		"Projects", "25",
		"Commits (6 months)", "1,234",
		"Followers", "100",
		"Following", "50",
		"Go", "67%",
		"TypeScript", "33%",
		"(cached)",
		"Next refresh in 10 min.",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("dashboard view should contain %q", want)
		}
	}
}

func TestModelDashboardLoading(t *testing.T) {
	m, _, _ := newTestModel(dashboard.Status{State: dashboard.Loading})

	if !strings.Contains(m.View(), "Loading dashboard...") {
		t.Error("a dashboard without a snapshot should show the loading line")
	}
}

func TestModelDashboardFailureKeepsSnapshot(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())

	failed := readyStatus()
	failed.State = dashboard.Failed
	failed.Err = "GitHub API error: 500 Internal Server Error"
	m = update(m, statusMsg(failed))

	view := m.View()
	if !strings.Contains(view, "GitHub API error: 500 Internal Server Error") {
		t.Error("the failure message should be shown")
	}
	if !strings.Contains(view, "1,234") {
		t.Error("the previous snapshot should stay on screen")
	}
}

func TestModelRefreshKey(t *testing.T) {
	m, dash, _ := newTestModel(readyStatus())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("r should start a refresh")
	}
	msg := cmd()
	if _, ok := msg.(refreshDoneMsg); !ok {
		t.Fatalf("expected refreshDoneMsg, got %T", msg)
	}
	if dash.refreshes != 1 {
		t.Errorf("expected 1 refresh, got %d", dash.refreshes)
	}
}

func TestModelRefreshIgnoredWhileLoading(t *testing.T) {
	st := readyStatus()
	st.State = dashboard.Loading
	m, _, _ := newTestModel(st)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Error("r should do nothing while a load is running")
	}
}

func TestModelTickRereadsStatus(t *testing.T) {
	m, dash, _ := newTestModel(readyStatus())

	dash.mu.Lock()
	dash.status.NextRefreshIn = 3 * time.Minute
	dash.mu.Unlock()
	m = update(m, tickMsg(time.Now()))

	if !strings.Contains(m.View(), "Next refresh in 3 min.") {
		t.Error("a tick should pick up the new countdown")
	}
}

// ===== TABS =====

func TestModelTabSwitchLoadsCommitsOnce(t *testing.T) {
	m, _, c := newTestModel(readyStatus())

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != commitsTab {
		t.Fatal("tab should switch to the commits tab")
	}
	if !strings.Contains(m.View(), "MY COMMITS") {
		t.Error("commits tab should show its title")
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})

	if c.loads != 1 {
		t.Errorf("commits should load once, got %d loads", c.loads)
	}
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

// ===== COMMITS =====

func TestModelCommitsView(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, resultMsg(commits.Result{Page: testPage(5, 10)}))

	view := m.View()
	for _, want := range []string{
		"October 18", "October 17",
		"Fix login redirect", "Add page strip",
		"hello-world", "ghdash",
		"Page 5 of 10", "300 commits",
		"[5]", "…",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("commits view should contain %q", want)
		}
	}
	if strings.Contains(view, "longer body") {
		t.Error("only the first line of a message is shown")
	}
}

func TestModelCommitsEmpty(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, resultMsg(commits.Result{Page: &commits.Page{Filter: commits.Filter{Page: 1}}}))

	if !strings.Contains(m.View(), "No commits found") {
		t.Error("an empty result should say so")
	}
}

func TestModelSearchFailureKeepsPage(t *testing.T) {
	m, _, _ := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, resultMsg(commits.Result{Page: testPage(1, 1)}))
	m = update(m, resultMsg(commits.Result{Err: errors.New("GitHub API error: 422")}))

	view := m.View()
	if !strings.Contains(view, "GitHub API error: 422") {
		t.Error("the search error should be shown")
	}
	if !strings.Contains(view, "Fix login redirect") {
		t.Error("the previous page should stay on screen")
	}
}

func TestModelSearchInput(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})

	m = keys(m, "/")
	if m.editing != termField {
		t.Fatal("/ should open the search input")
	}
	m = keys(m, "fix")

	want := []string{"f", "fi", "fix"}
	if strings.Join(c.terms, ",") != strings.Join(want, ",") {
		t.Errorf("every keystroke should reach the controller, got %q", c.terms)
	}

	// Keys typed into the input are not commands.
	m = keys(m, "q")
	if m.editing != termField {
		t.Error("q inside the input should be typed, not quit")
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.editing != noField {
		t.Error("esc should close the input")
	}
}

func TestModelPaging(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, resultMsg(commits.Result{Page: testPage(2, 5)}))

	m = keys(m, "n")
	m = update(m, tea.KeyMsg{Type: tea.KeyRight})
	m = keys(m, "p")

	if c.nexts != 2 {
		t.Errorf("expected 2 next calls, got %d", c.nexts)
	}
	if c.prevs != 1 {
		t.Errorf("expected 1 prev call, got %d", c.prevs)
	}
}

func TestModelPagingStopsAtEdges(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(m, resultMsg(commits.Result{Page: testPage(1, 1)}))

	m = keys(m, "np")

	if c.nexts != 0 || c.prevs != 0 {
		t.Errorf("a single page should not move, got next=%d prev=%d", c.nexts, c.prevs)
	}
}

func TestModelCommitsRefreshKey(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})

	keys(m, "r")

	if c.refreshes != 1 {
		t.Errorf("r should refresh the commit list, got %d", c.refreshes)
	}
}

func TestModelDateFilter(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})

	m = keys(m, "s")
	m = keys(m, "2024-01-31")
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.editing != noField {
		t.Fatal("enter should close the input")
	}
	want := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	if c.filter.Start == nil || !c.filter.Start.Equal(want) {
		t.Fatalf("since should be %v, got %v", want, c.filter.Start)
	}
}

func TestModelDateFilterRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		input string
		want  string
	}{
		{"not a date", "s", "2024-13-01", "use a date like 2024-01-31"},
		{"until before since", "u", "2023-12-31", "the start date must not be after the end date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, c := newTestModel(readyStatus())
			start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
			c.filter.Start = &start
			m = update(m, tea.KeyMsg{Type: tea.KeyTab})

			m = keys(m, tt.key)
			m.input.SetValue("")
			m = keys(m, tt.input)
			m = update(m, tea.KeyMsg{Type: tea.KeyEnter})

			if m.editing == noField {
				t.Error("a rejected date should keep the input open")
			}
			if !strings.Contains(m.View(), tt.want) {
				t.Errorf("view should explain %q", tt.want)
			}
			if c.filter.End != nil {
				t.Error("a rejected date should not be applied")
			}
		})
	}
}

func TestModelDateFilterClears(t *testing.T) {
	m, _, c := newTestModel(readyStatus())
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	c.filter.Start = &start
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})

	m = keys(m, "s")
	m.input.SetValue("")
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})

	if c.filter.Start != nil {
		t.Error("an empty date should clear the filter")
	}
}
