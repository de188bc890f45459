package engine

import (
	"errors"
	"fmt"
)

// ErrCycleInProgress is returned by Integrate when another cycle holds the
// site lock.
var ErrCycleInProgress = errors.New("integration cycle already in progress")

// FatalError aborts an integration cycle. Envelopes committed before the
// failure stay committed; the failed envelope is retried by the next cycle.
type FatalError struct {
	// RunID identifies the aborted cycle.
	RunID string

	// RecordID is the envelope being processed, empty if the failure
	// happened outside of an envelope (fetching, loading the cursor).
	RecordID string

	Err error
}

func (e *FatalError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("integration run %s aborted at record %s: %v", e.RunID, e.RecordID, e.Err)
	}
	return fmt.Sprintf("integration run %s aborted: %v", e.RunID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatalError reports whether err is or wraps a FatalError.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
