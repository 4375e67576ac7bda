package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshDashboard runs a manual refresh off the event loop. The new status
// arrives separately as a statusMsg.
func (m Model) refreshDashboard() tea.Cmd {
	dash, ctx := m.dash, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: dash.Refresh(ctx)}
	}
}
