package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Replay integrates again every envelope of stream with seq >= fromSeq. An
// empty stream replays every stream.
//
// Replay is a cursor reset followed by a normal cycle, both under the site
// lock. Nothing distinguishes a replayed envelope from a new one: every
// write is an upsert and merges already applied are skipped, so replaying
// a range leaves the store as it was.
func (d *Driver) Replay(ctx context.Context, stream string, fromSeq int64) (Summary, error) {
	release, err := d.acquire(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	moved, err := d.storage.ResetCursor(ctx, stream, fromSeq-1)
	if err != nil {
		return Summary{}, fmt.Errorf("reset cursor: %w", err)
	}
	d.logger.Info("cursor reset for replay",
		zap.String("stream", stream),
		zap.Int64("from_seq", fromSeq),
		zap.Int64("streams_moved", moved))

	return d.cycle(ctx)
}
