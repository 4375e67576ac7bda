package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/session"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch fresh dashboard data and print it",
	Long: `Fetches the profile, the last six months of commits across every
repository and the language breakdown from GitHub, showing progress per
repository, then prints the result. The fresh snapshot replaces the cached
one, so the next "ghdash tui" or web visit starts from it.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	sess, err := a.Manager.Restore(ctx, session.LocalProfile)
	if errors.Is(err, apperror.ErrAuth) {
		return fmt.Errorf("%w; run \"ghdash login\" first", err)
	}
	if err != nil {
		return err
	}

	bar := &progressBar{out: cmd.ErrOrStderr()}
	res, err := a.Dashboards.FetchWithProgress(ctx, sess, bar)
	bar.finish()
	if err != nil {
		return err
	}

	printSnapshot(cmd.OutOrStdout(), res.Snapshot, bar.failed)
	return nil
}

// progressBar shows one tick per repository on a pb bar.
type progressBar struct {
	out    io.Writer
	mu     sync.Mutex
	bar    *pb.ProgressBar
	failed []string
}

func (p *progressBar) Start(repos int) {
	p.bar = pb.Full.New(repos)
	p.bar.SetWriter(p.out)
	p.bar.Start()
}

func (p *progressBar) Repo(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed = append(p.failed, name)
	}
	p.bar.Increment()
}

func (p *progressBar) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func printSnapshot(w io.Writer, snap *model.DashboardSnapshot, skipped []string) {
	p := snap.Profile
	fmt.Fprintf(w, "%s (@%s)\n\n", p.DisplayName(), p.Login)
	fmt.Fprintf(w, "  Projects            %s\n", humanize.Comma(int64(p.PublicRepos)))
	fmt.Fprintf(w, "  Commits (6 months)  %s\n", humanize.Comma(int64(snap.Summary.TotalCommits)))
	fmt.Fprintf(w, "  Followers           %s\n", humanize.Comma(int64(p.Followers)))
	fmt.Fprintf(w, "  Following           %s\n", humanize.Comma(int64(p.Following)))

	fmt.Fprintln(w, "\nCommits per month")
	for i, label := range model.MonthLabels {
		if n := snap.Summary.MonthlyCommits[i]; n > 0 {
			fmt.Fprintf(w, "  %s  %s\n", label, humanize.Comma(int64(n)))
		}
	}

	if shares := snap.Languages.Sorted(); len(shares) > 0 {
		fmt.Fprintln(w, "\nLanguages")
		for _, s := range shares {
			fmt.Fprintf(w, "  %-16s %3d%%\n", s.Language, s.Percent)
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %s: %s\n", plural(len(skipped), "repository", "repositories"), strings.Join(skipped, ", "))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
