// Package cmd implements the ghdash command line: sign in with a personal
// access token, look at the dashboard in the terminal, and print stats.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/ghdash/internal/app"
	"github.com/sakif/ghdash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ghdash",
	Short: "Your GitHub activity in the terminal",
	Long: `ghdash shows the profile, commit activity and languages of the GitHub
account behind a personal access token, and lets you search its commit
history.

Start with "ghdash login", then run "ghdash tui".

Settings come from GHDASH_* environment variables and an optional .env file,
the same ones the ghdash web server reads.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// openApp loads the configuration and wires the shared services. Logs go
// to w at the configured level.
func openApp(w io.Writer) (*app.App, error) {
	cfg, err := config.NewLoader(config.Prefix).Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))
	return app.New(cfg, logger)
}
