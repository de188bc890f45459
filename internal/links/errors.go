package links

import (
	"errors"
	"fmt"

	"github.com/roach88/msync/internal/domain"
)

// LinkResolutionError reports a merge or resolution that cannot be applied
// because its ids are inconsistent, such as a self-merge.
//
// It is not fatal: the driver logs a warning and skips the envelope.
type LinkResolutionError struct {
	Kind     domain.LinkKind
	KeepID   string
	DeleteID string
	Reason   string
}

func (e *LinkResolutionError) Error() string {
	if e.DeleteID != "" || e.KeepID != "" {
		return fmt.Sprintf("link resolution: %s merge %s into %s: %s", e.Kind, e.DeleteID, e.KeepID, e.Reason)
	}
	return fmt.Sprintf("link resolution: %s: %s", e.Kind, e.Reason)
}

// IsLinkResolutionError reports whether err is or wraps a LinkResolutionError.
func IsLinkResolutionError(err error) bool {
	var le *LinkResolutionError
	return errors.As(err, &le)
}
