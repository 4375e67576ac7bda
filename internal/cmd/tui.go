package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/service"
	"github.com/sakif/ghdash/internal/session"
	"github.com/sakif/ghdash/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive dashboard",
	Long: `Opens the dashboard and the commit history of the signed-in account in
the terminal. The dashboard refreshes itself when its data is older than the
cache TTL (15 minutes by default); press r to refresh now.

Logs are written to ghdash/tui.log under the XDG state directory.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	logPath, err := xdg.StateFile("ghdash/tui.log")
	if err != nil {
		return fmt.Errorf("locating log file: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "ghdash")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	a, err := openApp(logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	fmt.Fprintln(cmd.ErrOrStderr(), "Loading dashboard...")
	active, err := restore(ctx, a.Sessions)
	if err != nil {
		return err
	}

	controller := commits.NewController(ctx, a.Commits, active.Session, a.Config.SearchDebounce, a.Clock, a.Logger())
	defer controller.Close()

	m := tui.NewModel(ctx, active.Cycle, controller, active.Session.User, a.Location)
	return tui.Run(ctx, m)
}

// restore returns the live session of the local profile, starting its
// dashboard cycle.
func restore(ctx context.Context, sessions *service.AuthService) (*service.Active, error) {
	active, err := sessions.Session(ctx, session.LocalProfile)
	if errors.Is(err, apperror.ErrAuth) {
		return nil, fmt.Errorf("%w; run \"ghdash login\" first", err)
	}
	return active, err
}
