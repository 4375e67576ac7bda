package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sakif/ghdash/internal/dashboard"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		// Only the countdown moves between status changes.
		m.status = m.dash.Status()
		return m, tick()

	case statusMsg:
		m.status = dashboard.Status(msg)
		return m, nil

	case refreshDoneMsg:
		m.status = m.dash.Status()
		return m, nil

	case resultMsg:
		// A failed search keeps the previous page on screen.
		if msg.Err != nil {
			m.pageErr = msg.Err
		} else {
			m.page, m.pageErr = msg.Page, nil
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.editing != noField {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "shift+tab":
		return m.switchTab(), nil
	case "1":
		m.tab = dashboardTab
		return m, nil
	case "2":
		if m.tab != commitsTab {
			return m.switchTab(), nil
		}
		return m, nil
	}

	if m.tab == dashboardTab {
		if msg.String() == "r" && m.status.State != dashboard.Loading {
			return m, m.refreshDashboard()
		}
		return m, nil
	}

	switch msg.String() {
	case "/":
		return m.startEditing(termField, m.commits.Filter().Term)
	case "s":
		return m.startEditing(sinceField, formatDate(m.commits.Filter().Start))
	case "u":
		return m.startEditing(untilField, formatDate(m.commits.Filter().End))
	case "n", "right":
		if m.page != nil && m.page.HasNext() {
			m.commits.Next()
		}
	case "p", "left":
		if m.page != nil && m.page.HasPrev() {
			m.commits.Prev()
		}
	case "r":
		m.commits.Refresh()
	}
	return m, nil
}

func (m Model) switchTab() Model {
	if m.tab == dashboardTab {
		m.tab = commitsTab
		if !m.commitsLoaded {
			m.commitsLoaded = true
			m.commits.Load()
		}
	} else {
		m.tab = dashboardTab
	}
	return m
}

func (m Model) startEditing(f field, value string) (tea.Model, tea.Cmd) {
	m.editing = f
	m.inputErr = ""
	switch f {
	case termField:
		m.input.Prompt = "search: "
		m.input.Placeholder = "message text"
	case sinceField:
		m.input.Prompt = "since: "
		m.input.Placeholder = time.DateOnly
	case untilField:
		m.input.Prompt = "until: "
		m.input.Placeholder = time.DateOnly
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

// updateInput feeds keys to the input line. The search term is applied on
// every change (the controller debounces it); dates are applied on enter.
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = noField
		m.inputErr = ""
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.editing == sinceField || m.editing == untilField {
			if !m.applyDate() {
				return m, nil
			}
		}
		m.editing = noField
		m.input.Blur()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.editing == termField && m.input.Value() != before {
		m.commits.SetTerm(m.input.Value())
	}
	return m, cmd
}

// applyDate sets the edited date filter from the input. An empty input
// clears it. It reports false, leaving the input open, on a bad date.
func (m *Model) applyDate() bool {
	raw := strings.TrimSpace(m.input.Value())

	var date *time.Time
	if raw != "" {
		t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
		if err != nil {
			m.inputErr = "use a date like 2024-01-31"
			return false
		}
		date = &t
	}

	f := m.commits.Filter()
	start, end := f.Start, f.End
	if m.editing == sinceField {
		start = date
	} else {
		end = date
	}
	if start != nil && end != nil && start.After(*end) {
		m.inputErr = "the start date must not be after the end date"
		return false
	}

	if m.editing == sinceField {
		m.commits.SetStart(date)
	} else {
		m.commits.SetEnd(date)
	}
	m.inputErr = ""
	return true
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
