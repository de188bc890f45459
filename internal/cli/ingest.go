package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/msync/internal/ir"
)

// IngestResult is the JSON output of the ingest command.
type IngestResult struct {
	File    string `json:"file"`
	Written int    `json:"written"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Buffer legacy sync records from a file",
		Long: `Write legacy sync records into the sync buffer.

Files ending in .yaml or .yml hold a YAML list of records; anything else is
read as JSON Lines, one record per line. Every record is validated before
any is written. Records are integrated by the next "integrate" or "run"
cycle.

Examples:
  msync ingest ./buffer.jsonl
  msync ingest --config ./msync.yaml ./fixtures/merge.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runIngest(opts *RootOptions, path string, cmd *cobra.Command) error {
	envs, err := readEnvelopeFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}

	env, err := openEnvironment(opts)
	if err != nil {
		return err
	}
	defer env.Close()
	env.logger.Debug("decoded records", zap.String("file", path), zap.Int("count", len(envs)))

	n, err := env.store.WriteEnvelopes(context.Background(), envs)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to buffer records", err)
	}

	out := newFormatter(opts, cmd)
	return out.Success(IngestResult{File: path, Written: n}, fmt.Sprintf("buffered %d records from %s\n", n, path))
}

// readEnvelopeFile decodes a JSONL or YAML record file.
func readEnvelopeFile(path string) ([]ir.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var envs []ir.Envelope
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		envs, err = ir.DecodeYAML(f)
	default:
		envs, err = ir.DecodeJSONL(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return envs, nil
}
