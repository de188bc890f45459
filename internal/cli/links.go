package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/store"
)

// LinkView is one observed id and the canonical id it resolves to.
type LinkView struct {
	ID          string `json:"id"`
	CanonicalID string `json:"canonical_id"`
	Merged      bool   `json:"merged"`
}

// NewLinksCommand creates the links command.
func NewLinksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links <name|item> [id...]",
		Short: "Show how entity ids resolve after merges",
		Long: `Show the canonical id of every observed id of a link kind.

With ids, only those are looked up; an id that was never observed is an
error. Ids merged into another entity are marked.

Examples:
  msync links name
  msync links item 9F2A61 77B0C4 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(rootOpts, args[0], args[1:], cmd)
		},
	}
	return cmd
}

func runLinks(opts *RootOptions, kindArg string, ids []string, cmd *cobra.Command) error {
	kind, err := domain.ParseLinkKind(kindArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid link kind", err)
	}

	ctx := context.Background()
	env, err := openEnvironment(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	var rows []domain.LinkRow
	if len(ids) == 0 {
		rows, err = env.store.Links(ctx, kind)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list links", err)
		}
	}
	for _, id := range ids {
		row, err := env.store.LookupLink(ctx, kind, id)
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, "unknown "+string(kind), err)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to look up link", err)
		}
		rows = append(rows, row)
	}

	views := make([]LinkView, len(rows))
	var b strings.Builder
	for i, row := range rows {
		views[i] = LinkView{ID: row.ID, CanonicalID: row.CanonicalID, Merged: !row.IsIdentity()}
		if views[i].Merged {
			fmt.Fprintf(&b, "%s -> %s\n", row.ID, row.CanonicalID)
		} else {
			fmt.Fprintf(&b, "%s\n", row.ID)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintf(&b, "No %s links.\n", kind)
	}
	return newFormatter(opts, cmd).Success(views, b.String())
}
