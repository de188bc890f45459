package translation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/msync/internal/ir"
)

// TranslationError is a per-record failure: the payload is malformed, an
// enum code is unknown, or a foreign key is missing.
//
// The driver parks the record and continues with the batch.
type TranslationError struct {
	Table    string
	RecordID string
	Reason   string
	Err      error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translate %s/%s: %s: %v", e.Table, e.RecordID, e.Reason, e.Err)
	}
	return fmt.Sprintf("translate %s/%s: %s", e.Table, e.RecordID, e.Reason)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// IsTranslationError reports whether err is or wraps a TranslationError.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

func newTranslationError(env ir.Envelope, reason string, err error) *TranslationError {
	return &TranslationError{Table: env.TableName, RecordID: env.RecordID, Reason: reason, Err: err}
}

// ConfigurationError is a startup failure of the translator set: a
// dependency cycle or a dependency on an unregistered table.
type ConfigurationError struct {
	// Cycle is the dependency path of a cycle, first table repeated last.
	Cycle []LegacyTable

	// Table depends on Missing, which has no translator.
	Table   LegacyTable
	Missing LegacyTable

	// Duplicate is a table registered twice.
	Duplicate LegacyTable
}

func (e *ConfigurationError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		path := make([]string, len(e.Cycle))
		for i, t := range e.Cycle {
			path[i] = string(t)
		}
		return "translator dependency cycle: " + strings.Join(path, " -> ")
	case e.Missing != "":
		return fmt.Sprintf("translator %s depends on unregistered table %s", e.Table, e.Missing)
	case e.Duplicate != "":
		return fmt.Sprintf("translator %s registered twice", e.Duplicate)
	default:
		return "invalid translator configuration"
	}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
