package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List recent integration cycles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show (0 for all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	runs, err := env.store.ListRuns(context.Background(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	var b strings.Builder
	if len(runs) == 0 {
		b.WriteString("No runs recorded.\n")
	}
	for _, r := range runs {
		status := "running"
		switch {
		case r.Error != nil:
			status = "aborted: " + *r.Error
		case r.FinishedAt != nil:
			status = "ok"
		}
		fmt.Fprintf(&b, "%s  %s  applied=%d skipped=%d errored=%d  %s\n",
			r.ID, r.StartedAt, r.Applied, r.Skipped, r.Errored, status)
	}
	return newFormatter(opts.RootOptions, cmd).Success(runs, b.String())
}
