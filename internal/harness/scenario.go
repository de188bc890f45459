package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/store"
)

// Scenario defines an integration scenario: records buffered over one or
// more cycles and assertions on the trace and the resulting store.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BatchSize limits envelopes per cycle. Zero means unlimited.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Cycles run in order against one store.
	Cycles []Cycle `yaml:"cycles"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Cycle buffers records, requeues parked ones, and then runs one
// integration cycle, or a replay when Replay is set.
type Cycle struct {
	Ingest  []ir.YAMLEnvelope `yaml:"ingest,omitempty"`
	Requeue []string          `yaml:"requeue,omitempty"`
	Replay  *ReplayStep       `yaml:"replay,omitempty"`

	// Expect checks the cycle's outcome totals. Nil skips the check.
	Expect *CycleExpect `yaml:"expect,omitempty"`
}

// ReplayStep rewinds the cursor of Stream (every stream when empty) so that
// records with seq >= FromSeq are integrated again.
type ReplayStep struct {
	Stream  string `yaml:"stream,omitempty"`
	FromSeq int64  `yaml:"from_seq"`
}

// CycleExpect is the exact outcome totals of a cycle.
type CycleExpect struct {
	Applied int `yaml:"applied"`
	Skipped int `yaml:"skipped"`
	Errored int `yaml:"errored"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Record was processed, with Outcome when set
	// - "trace_order": Records were first processed in this order
	// - "trace_count": Record (every record when empty) processed Count times
	// - "final_state": Query table and verify expected values
	// - "link": ID of Kind resolves to Canonical
	// - "parked": Record is parked; its error contains Contains
	// - "cursor": Stream's cursor is at Seq
	Type string `yaml:"type"`

	Record  string   `yaml:"record,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Records []string `yaml:"records,omitempty"`
	Count   int      `yaml:"count,omitempty"`

	// Table, Where and Expect are used by final_state. Expect is a subset
	// match on the single row matching Where.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	Kind      string `yaml:"kind,omitempty"`
	ID        string `yaml:"id,omitempty"`
	Canonical string `yaml:"canonical,omitempty"`

	Contains string `yaml:"contains,omitempty"`

	Stream string `yaml:"stream,omitempty"`
	Seq    int64  `yaml:"seq,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertLink          = "link"
	AssertParked        = "parked"
	AssertCursor        = "cursor"
)

var outcomes = []string{store.OutcomeApplied, store.OutcomeSkipped, store.OutcomeErrored}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative")
	}
	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, c := range s.Cycles {
		for j, env := range c.Ingest {
			switch {
			case env.RecordID == "":
				return fmt.Errorf("cycles[%d].ingest[%d]: record_id is required", i, j)
			case env.TableName == "":
				return fmt.Errorf("cycles[%d].ingest[%d]: table_name is required", i, j)
			case env.Action == "":
				return fmt.Errorf("cycles[%d].ingest[%d]: action is required", i, j)
			case env.Seq < 0:
				return fmt.Errorf("cycles[%d].ingest[%d]: seq must be non-negative", i, j)
			}
		}
		if c.Replay != nil && c.Replay.FromSeq < 1 {
			return fmt.Errorf("cycles[%d].replay: from_seq must be at least 1", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for trace_contains", index)
		}
		if a.Outcome != "" && !slices.Contains(outcomes, a.Outcome) {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertTraceOrder:
		if len(a.Records) == 0 {
			return fmt.Errorf("assertions[%d]: records list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertLink:
		if _, err := domain.ParseLinkKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.ID == "" || a.Canonical == "" {
			return fmt.Errorf("assertions[%d]: id and canonical are required for link", index)
		}
	case AssertParked:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for parked", index)
		}
	case AssertCursor:
		if a.Stream == "" {
			return fmt.Errorf("assertions[%d]: stream is required for cursor", index)
		}
		if a.Seq < 0 {
			return fmt.Errorf("assertions[%d]: seq must be non-negative for cursor", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
