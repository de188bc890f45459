package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxBackoff caps the wait between cycles after repeated fatal
// errors.
const DefaultMaxBackoff = 5 * time.Minute

// Run integrates every interval until ctx is cancelled, then returns
// ctx.Err().
//
// After a fatal cycle the wait doubles, up to maxBackoff, and resets after
// the next successful cycle. A cycle rejected with ErrCycleInProgress waits
// for the next tick.
func (d *Driver) Run(ctx context.Context, interval, maxBackoff time.Duration) error {
	if maxBackoff < interval {
		maxBackoff = interval
	}

	wait := interval
	for {
		summary, err := d.Integrate(ctx)
		switch {
		case err == nil:
			wait = interval
			if totals := summary.Totals(); totals.Total() > 0 {
				d.logger.Debug("scheduled cycle done", zap.String("run_id", summary.RunID))
			}

		case ctx.Err() != nil:
			return ctx.Err()

		case errors.Is(err, ErrCycleInProgress):
			d.logger.Debug("cycle skipped, another cycle is running")
			wait = interval

		default:
			wait = min(wait*2, maxBackoff)
			d.logger.Warn("integration cycle failed, backing off",
				zap.Error(err),
				zap.Duration("retry_in", wait))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
