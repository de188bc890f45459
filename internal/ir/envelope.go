package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the legacy change kind carried by an envelope.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
	ActionMerge  Action = "merge"
)

// MergeStreamPrefix prefixes the cursor stream of merge envelopes. Seq only
// orders envelopes within one table, so each table's merges get their own
// stream. The leading '@' keeps it from colliding with a legacy table name.
const MergeStreamPrefix = "@merge:"

// MergeStream returns the cursor stream of merge envelopes for a table.
func MergeStream(table string) string {
	return MergeStreamPrefix + table
}

// ParseAction parses a legacy action name. Matching is case-insensitive so
// buffers written by older sites ("Upsert", "DELETE") are accepted.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionUpsert:
		return ActionUpsert, nil
	case ActionDelete:
		return ActionDelete, nil
	case ActionMerge:
		return ActionMerge, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Both encoding/json and yaml.v3 use it when decoding ingest files.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Envelope is one buffered legacy change record.
//
// Envelopes are immutable once buffered. Data is the opaque legacy payload and
// is only interpreted by the translator registered for TableName.
type Envelope struct {
	RecordID   string          `json:"record_id" yaml:"record_id"`
	TableName  string          `json:"table_name" yaml:"table_name"`
	Action     Action          `json:"action" yaml:"action"`
	Seq        int64           `json:"seq" yaml:"seq"`
	Data       json.RawMessage `json:"data" yaml:"-"`
	SourceSite string          `json:"source_site,omitempty" yaml:"source_site,omitempty"`
}

// Stream returns the cursor stream this envelope advances.
func (e Envelope) Stream() string {
	if e.Action == ActionMerge {
		return MergeStream(e.TableName)
	}
	return e.TableName
}

// IsMerge reports whether the envelope is a merge instruction.
func (e Envelope) IsMerge() bool {
	return e.Action == ActionMerge
}

// Validate checks the structural fields every envelope must carry.
// It does not look inside Data.
func (e Envelope) Validate() error {
	if e.RecordID == "" {
		return fmt.Errorf("envelope: record_id is required")
	}
	if e.TableName == "" {
		return fmt.Errorf("envelope %s: table_name is required", e.RecordID)
	}
	if _, err := ParseAction(string(e.Action)); err != nil {
		return fmt.Errorf("envelope %s: %w", e.RecordID, err)
	}
	if e.Seq <= 0 {
		return fmt.Errorf("envelope %s: seq must be positive, got %d", e.RecordID, e.Seq)
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope %s: data is required", e.RecordID)
	}
	return nil
}

// String returns a short identifier for logs.
func (e Envelope) String() string {
	return fmt.Sprintf("%s/%s#%d(%s)", e.TableName, e.RecordID, e.Seq, e.Action)
}
