package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/msync/internal/engine"
)

// NewIntegrateCommand creates the integrate command.
func NewIntegrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Run one integration cycle",
		Long: `Translate every pending buffered record into the normalized store.

Records that fail translation are parked and reported in the summary; the
cycle continues past them. A storage failure aborts the cycle: records
committed before it stay committed and the rest are retried next time.

Exit codes:
  0 - Cycle finished (parked records do not fail the cycle)
  1 - Cycle aborted, or another cycle is running
  2 - Command error (bad config, database not found)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrate(rootOpts, cmd)
		},
	}
	return cmd
}

func runIntegrate(opts *RootOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnvironment(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	driver, err := env.newDriver(nil)
	if err != nil {
		return err
	}

	summary, err := driver.Integrate(ctx)
	return reportCycle(opts, cmd, summary, err)
}

// reportCycle prints a cycle summary and maps its error to an ExitError.
func reportCycle(opts *RootOptions, cmd *cobra.Command, summary engine.Summary, err error) error {
	out := newFormatter(opts, cmd)
	switch {
	case errors.Is(err, engine.ErrCycleInProgress):
		_ = out.Error(ErrCodeBusy, err.Error(), nil)
		return WrapExitError(ExitFailure, "integration skipped", err)
	case err != nil:
		_ = out.Error(ErrCodeFatal, err.Error(), summary)
		return WrapExitError(ExitFailure, "integration aborted", err)
	}
	return out.Success(summary, formatSummary(summary))
}

func formatSummary(s engine.Summary) string {
	var b strings.Builder
	totals := s.Totals()
	fmt.Fprintf(&b, "run %s: applied %d, skipped %d, errored %d in %s\n",
		s.RunID, totals.Applied, totals.Skipped, totals.Errored, s.Duration().Round(time.Millisecond))
	for _, table := range s.TableNames() {
		c := s.Tables[table]
		fmt.Fprintf(&b, "  %-16s applied=%d skipped=%d errored=%d\n", table, c.Applied, c.Skipped, c.Errored)
	}
	if streams := s.Cursor.Streams(); len(streams) > 0 {
		parts := make([]string, len(streams))
		for i, stream := range streams {
			parts[i] = fmt.Sprintf("%s=%d", stream, s.Cursor.Get(stream))
		}
		fmt.Fprintf(&b, "cursor: %s\n", strings.Join(parts, " "))
	}
	return b.String()
}
