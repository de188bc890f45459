package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/msync/internal/translation"
)

// ValidateResult is the JSON output of the validate command.
type ValidateResult struct {
	Valid bool     `json:"valid"`
	Order []string `json:"order"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and the translator set",
		Long: `Load and validate the config, then build the translator set and print
the table order used within a cycle.

Exit codes:
  0 - Config and translators valid
  1 - Translator dependencies invalid (cycle or missing table)
  2 - Config invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, translation.DefaultRegistry)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, build func() (*translation.Registry, error)) error {
	out := newFormatter(opts, cmd)

	if _, err := loadConfig(opts); err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	reg, err := build()
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid translator set", err)
	}

	order := reg.Order()
	names := make([]string, len(order))
	for i, t := range order {
		names[i] = string(t)
	}
	text := fmt.Sprintf("config ok\ntranslator order: %s\n", strings.Join(names, " -> "))
	return out.Success(ValidateResult{Valid: true, Order: names}, text)
}
