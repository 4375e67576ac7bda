// Package tui is the terminal front-end: the dashboard and the commit
// history of the signed-in user, in two tabs.
//
// The model never calls GitHub itself. It drives a dashboard refresh cycle
// and a commit search controller, and both report back asynchronously
// through messages sent to the running program.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/model"
)

// Dashboard is the part of dashboard.Cycle the model uses.
type Dashboard interface {
	Status() dashboard.Status
	Refresh(ctx context.Context) error
	OnChange(fn func(dashboard.Status))
}

// Commits is the part of commits.Controller the model uses.
type Commits interface {
	Load()
	Refresh()
	SetTerm(term string)
	SetStart(t *time.Time)
	SetEnd(t *time.Time)
	Next()
	Prev()
	Busy() bool
	Filter() commits.Filter
	OnResult(fn func(commits.Result))
}

type tab int

const (
	dashboardTab tab = iota
	commitsTab
)

// field is the filter being edited in the input line.
type field int

const (
	noField field = iota
	termField
	sinceField
	untilField
)

// Model is the bubbletea model of the whole client.
type Model struct {
	ctx     context.Context
	dash    Dashboard
	commits Commits
	user    *model.UserProfile
	loc     *time.Location

	tab    tab
	width  int
	height int

	status dashboard.Status

	commitsLoaded bool
	page          *commits.Page
	pageErr       error

	input    textinput.Model
	editing  field
	inputErr string
}

// NewModel returns a model showing the dashboard tab. Dates are shown in
// loc; nil means the local zone.
func NewModel(ctx context.Context, dash Dashboard, c Commits, user *model.UserProfile, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}

	input := textinput.New()
	input.CharLimit = 100
	input.Width = 40
	input.PromptStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)

	return Model{
		ctx:     ctx,
		dash:    dash,
		commits: c,
		user:    user,
		loc:     loc,
		status:  dash.Status(),
		input:   input,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	m.dash.OnChange(func(st dashboard.Status) { p.Send(statusMsg(st)) })
	m.commits.OnResult(func(r commits.Result) { p.Send(resultMsg(r)) })
	defer func() {
		m.dash.OnChange(nil)
		m.commits.OnResult(nil)
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
