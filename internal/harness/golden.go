package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/msync/internal/ir"
)

// Snapshot is the golden form of a scenario result. Messages and
// timestamps are left out so snapshots survive rewording of errors.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// canonicalMap converts the snapshot to the value types ir.MarshalCanonical
// accepts.
func (s Snapshot) canonicalMap() map[string]any {
	cycles := make([]any, len(s.Result.Cycles))
	for i, c := range s.Result.Cycles {
		cycles[i] = map[string]any{
			"run_id":  c.RunID,
			"applied": c.Applied,
			"skipped": c.Skipped,
			"errored": c.Errored,
		}
	}

	trace := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		trace[i] = map[string]any{
			"cycle":      ev.Cycle,
			"record_id":  ev.RecordID,
			"table_name": ev.Table,
			"action":     ev.Action,
			"seq":        ev.Seq,
			"outcome":    ev.Outcome,
		}
	}

	links := make([]any, len(s.Result.Links))
	for i, l := range s.Result.Links {
		links[i] = map[string]any{
			"kind":         string(l.Kind),
			"id":           l.ID,
			"canonical_id": l.CanonicalID,
		}
	}

	tombstones := make([]any, len(s.Result.Tombstones))
	for i, ts := range s.Result.Tombstones {
		tombstones[i] = map[string]any{
			"kind":       string(ts.Kind),
			"kept_id":    ts.KeptID,
			"deleted_id": ts.DeletedID,
			"record_id":  ts.RecordID,
		}
	}

	cursor := make(map[string]any, len(s.Result.Cursor))
	for stream, seq := range s.Result.Cursor {
		cursor[stream] = seq
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"cycles":        cycles,
		"trace":         trace,
		"links":         links,
		"tombstones":    tombstones,
		"cursor":        cursor,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.canonicalMap())
}

// RunWithGolden executes a scenario and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot{ScenarioName: scenarioName, Result: result}.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
