package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/msync/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Cycle: 0, RecordID: "m1", Table: "name", Action: "merge", Seq: 4, Outcome: "applied"},
		{Cycle: 0, RecordID: "n1", Table: "name", Action: "upsert", Seq: 1, Outcome: "applied"},
		{Cycle: 0, RecordID: "l1", Table: "trans_line", Action: "upsert", Seq: 2, Outcome: "errored"},
		{Cycle: 1, RecordID: "l1", Table: "trans_line", Action: "upsert", Seq: 5, Outcome: "applied"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Record: "n1"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Record: "l1", Outcome: "errored"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Record: "l1", Outcome: "applied"}))

	err := assertTraceContains(trace, Assertion{Record: "n1", Outcome: "skipped"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "record n1 with outcome skipped", ae.Expected)
	assert.Contains(t, err.Error(), "[3] cycle 0 l1 trans_line/upsert seq=2 errored")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Records: []string{"m1", "l1"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Records: []string{"m1", "n1", "l1"}}))

	err := assertTraceOrder(trace, Assertion{Records: []string{"l1", "n1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "l1 (pos 3) should be before n1 (pos 2)")

	err = assertTraceOrder(trace, Assertion{Records: []string{"m1", "x9"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing record: x9")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Record: "l1", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Count: 4}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Record: "x9", Count: 0}))

	err := assertTraceCount(trace, Assertion{Record: "n1", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of n1")
	assert.Contains(t, err.Error(), "Actual: 1")
}

func TestAssertCursor(t *testing.T) {
	result := NewResult()
	result.Cursor = ir.Cursor{"unit": 3}

	assert.NoError(t, assertCursor(result, Assertion{Stream: "unit", Seq: 3}))
	assert.NoError(t, assertCursor(result, Assertion{Stream: "item", Seq: 0}), "an unseen stream is at 0")
	assert.Error(t, assertCursor(result, Assertion{Stream: "unit", Seq: 4}))
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"name": "Box", "id": "u1", "description": nil})
	require.NoError(t, err)
	assert.Equal(t, "description IS NULL AND id = ? AND name = ?", sql)
	assert.Equal(t, []any{"u1", "Box"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	_, _, err = buildWhereClause(map[string]any{"id; DROP TABLE unit": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=u1 AND idx=2", formatWhereClause(map[string]any{"idx": 2, "id": "u1"}))
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"string", "Box", "Box", true},
		{"string bytes", "Box", []byte("Box"), true},
		{"string mismatch", "Box", "Vial", false},
		{"int", 4, int64(4), true},
		{"int against float", 4, 4.0, true},
		{"int mismatch", 4, int64(5), false},
		{"float", 2.5, 2.5, true},
		{"bool", true, true, true},
		{"bool as integer", true, int64(1), true},
		{"false as integer", false, int64(0), true},
		{"bool mismatch", false, int64(1), false},
		{"nil", nil, nil, true},
		{"nil against value", nil, "x", false},
		{"value against nil", "x", nil, false},
		{"type mismatch", "4", int64(4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions_RequiresStore(t *testing.T) {
	result := NewResult()
	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "unit", Expect: map[string]any{"name": "Box"}},
		{Type: AssertTraceCount, Count: 0},
		{Type: "bogus"},
	}, nil)

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "final_state requires database context")
	assert.Contains(t, failures[1], `unknown assertion type "bogus"`)
}
