package translation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

type legacyMerge struct {
	KeepID   string `json:"mergeIdToKeep"`
	DeleteID string `json:"mergeIdToDelete"`
}

// ResolveMerge applies a merge envelope to the link store.
//
// The merge itself happens in the link store; the only op returned is the
// tombstone recording it. A merge whose ids already share a canonical id is
// skipped. Merging an id into itself returns the *links.LinkResolutionError
// from the link store unchanged.
func ResolveMerge(ctx context.Context, tc *Context, kind domain.LinkKind, env ir.Envelope) (Result, error) {
	var m legacyMerge
	if err := decodePayload(env, defMerge, &m); err != nil {
		return Result{}, err
	}
	if m.KeepID == "" || m.DeleteID == "" {
		return Result{}, newTranslationError(env, "merge ids must not be empty", nil)
	}

	outcome, err := tc.Links.Merge(ctx, kind, m.KeepID, m.DeleteID)
	if err != nil {
		return Result{}, err
	}
	if !outcome.Applied {
		return Skip("already merged into " + outcome.KeepRoot), nil
	}

	tc.logger().Info("merge applied",
		zap.String("kind", string(kind)),
		zap.String("record_id", env.RecordID),
		zap.String("keep", m.KeepID),
		zap.String("delete", m.DeleteID),
		zap.String("canonical", outcome.KeepRoot),
		zap.Int64("repointed", outcome.Repointed))

	mergedAt := tc.Now.UTC().Format(time.RFC3339Nano)
	tomb := domain.NewMergeTombstone(kind, outcome.KeepRoot, m.DeleteID, env.RecordID, mergedAt)
	return Result{Ops: []ir.Op{ir.Upsert(tomb)}}, nil
}
