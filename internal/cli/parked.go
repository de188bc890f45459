package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/msync/internal/store"
)

// ParkedOptions holds flags for the parked command.
type ParkedOptions struct {
	*RootOptions
	Requeue []string
}

// RequeueResult reports the new seq of a requeued record.
type RequeueResult struct {
	RecordID string `json:"record_id"`
	Seq      int64  `json:"seq"`
}

// NewParkedCommand creates the parked command.
func NewParkedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParkedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parked",
		Short: "List or requeue records that failed translation",
		Long: `List buffered records whose translation failed, with their error.

With --requeue the named records get a new seq after every buffered record
and are integrated by the next cycle. Fix the cause first (for example,
buffer the invoice a line refers to) or the record is parked again.

Examples:
  msync parked
  msync parked --requeue rec-104 --requeue rec-105`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParked(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Requeue, "requeue", nil, "record id to requeue (repeatable)")

	return cmd
}

func runParked(opts *ParkedOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	out := newFormatter(opts.RootOptions, cmd)

	if len(opts.Requeue) > 0 {
		results := make([]RequeueResult, 0, len(opts.Requeue))
		var b strings.Builder
		for _, id := range opts.Requeue {
			seq, err := env.store.Requeue(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return WrapExitError(ExitCommandError, "record is not parked", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to requeue "+id, err)
			}
			results = append(results, RequeueResult{RecordID: id, Seq: seq})
			fmt.Fprintf(&b, "requeued %s at seq %d\n", id, seq)
		}
		return out.Success(results, b.String())
	}

	parked, err := env.store.ListParked(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list parked records", err)
	}

	var b strings.Builder
	if len(parked) == 0 {
		b.WriteString("No parked records.\n")
	}
	for _, p := range parked {
		fmt.Fprintf(&b, "%-8d %-24s %-16s %-7s %s\n", p.Seq, p.RecordID, p.TableName, p.Action, p.Error)
	}
	return out.Success(parked, b.String())
}
