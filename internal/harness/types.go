package harness

import (
	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
)

// TraceEvent is one processed envelope as seen by the audit sink.
type TraceEvent struct {
	Cycle    int    `json:"cycle"`
	RecordID string `json:"record_id"`
	Table    string `json:"table_name"`
	Action   string `json:"action"`
	Seq      int64  `json:"seq"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message,omitempty"`
}

// CycleResult is the outcome totals of one cycle.
type CycleResult struct {
	RunID   string `json:"run_id"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Errored int    `json:"errored"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every cycle expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every processed envelope in processing order.
	Trace []TraceEvent `json:"trace"`

	Cycles []CycleResult `json:"cycles"`

	// Errors holds expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Store contents captured after the last cycle.
	Links      []domain.LinkRow           `json:"links"`
	Tombstones []domain.MergeTombstoneRow `json:"tombstones"`
	Cursor     ir.Cursor                  `json:"cursor"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Cycles:     []CycleResult{},
		Errors:     []string{},
		Links:      []domain.LinkRow{},
		Tombstones: []domain.MergeTombstoneRow{},
		Cursor:     ir.Cursor{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RecordIDs returns the record ids of the trace in order.
func (r *Result) RecordIDs() []string {
	ids := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		ids[i] = ev.RecordID
	}
	return ids
}
