package engine

import (
	"slices"
	"time"

	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/store"
)

// TableCounts counts envelope outcomes.
type TableCounts struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Total returns the number of envelopes counted.
func (c TableCounts) Total() int {
	return c.Applied + c.Skipped + c.Errored
}

func (c *TableCounts) add(outcome string) {
	switch outcome {
	case store.OutcomeApplied:
		c.Applied++
	case store.OutcomeSkipped:
		c.Skipped++
	case store.OutcomeErrored:
		c.Errored++
	}
}

// Summary is the result of one integration cycle.
type Summary struct {
	RunID      string                 `json:"run_id"`
	Tables     map[string]TableCounts `json:"tables"`
	Cursor     ir.Cursor              `json:"cursor"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

func newSummary(runID string, startedAt time.Time) Summary {
	return Summary{
		RunID:     runID,
		Tables:    make(map[string]TableCounts),
		Cursor:    ir.Cursor{},
		StartedAt: startedAt,
	}
}

func (s *Summary) record(table, outcome string) {
	counts := s.Tables[table]
	counts.add(outcome)
	s.Tables[table] = counts
}

// Totals sums the counts of every table.
func (s Summary) Totals() TableCounts {
	var total TableCounts
	for _, c := range s.Tables {
		total.Applied += c.Applied
		total.Skipped += c.Skipped
		total.Errored += c.Errored
	}
	return total
}

// TableNames returns the counted tables in sorted order.
func (s Summary) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Duration returns the wall time of the cycle.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
