package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers cannot be bound as parameters, so anything else is rejected.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] cycle %d %s %s/%s seq=%d %s\n",
				i+1, ev.Cycle, ev.RecordID, ev.Table, ev.Action, ev.Seq, ev.Outcome)
		}
	}

	return buf.String()
}

// assertTraceContains checks that the record was processed, with the given
// outcome when one is set.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.RecordID == a.Record && (a.Outcome == "" || ev.Outcome == a.Outcome) {
			return nil
		}
	}

	expected := "record " + a.Record
	if a.Outcome != "" {
		expected += " with outcome " + a.Outcome
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that records were first processed in the given
// order. Other records may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.RecordID]; !seen {
			positions[ev.RecordID] = i + 1
		}
	}

	for _, id := range a.Records {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all records present: %v", a.Records),
				Actual:   fmt.Sprintf("missing record: %s", id),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Records); i++ {
		prev, curr := a.Records[i-1], a.Records[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("records in order: %v", a.Records),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many times a record was processed. With no
// record it counts the whole trace.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.Record == "" || ev.RecordID == a.Record {
			count++
		}
	}

	if count != a.Count {
		subject := "trace events"
		if a.Record != "" {
			subject = "occurrences of " + a.Record
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s", a.Count, subject),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it carries the Expect values.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	db := st.DB()
	rows, err := db.QueryxContext(ctx, db.Rebind(query), whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	whereDesc := formatWhereClause(a.Where)
	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, whereDesc),
			Actual:   "row not found",
		}
	}

	actualRow := make(map[string]any)
	if err := rows.MapScan(actualRow); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	for _, key := range sortedKeys(a.Expect) {
		expectedValue := a.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s", key, a.Table),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// assertLink checks where an observed id resolves.
func assertLink(ctx context.Context, st *store.Store, a Assertion) error {
	kind, err := domain.ParseLinkKind(a.Kind)
	if err != nil {
		return err
	}

	link, err := st.LookupLink(ctx, kind, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertLink,
			Expected: fmt.Sprintf("%s %s -> %s", kind.Table(), a.ID, a.Canonical),
			Actual:   "id never observed",
		}
	}
	if err != nil {
		return err
	}

	if link.CanonicalID != a.Canonical {
		return &AssertionError{
			Type:     AssertLink,
			Expected: fmt.Sprintf("%s %s -> %s", kind.Table(), a.ID, a.Canonical),
			Actual:   link.String(),
		}
	}
	return nil
}

// assertParked checks that a record is parked, and that its error contains
// Contains when set.
func assertParked(ctx context.Context, st *store.Store, a Assertion) error {
	parked, err := st.ListParked(ctx)
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(parked, func(p store.ParkedRecord) bool { return p.RecordID == a.Record })
	if idx < 0 {
		return &AssertionError{
			Type:     AssertParked,
			Expected: fmt.Sprintf("record %s parked", a.Record),
			Actual:   fmt.Sprintf("%d parked records, %s not among them", len(parked), a.Record),
		}
	}

	if msg := parked[idx].Error; !strings.Contains(msg, a.Contains) {
		return &AssertionError{
			Type:     AssertParked,
			Expected: fmt.Sprintf("error of %s containing %q", a.Record, a.Contains),
			Actual:   msg,
		}
	}
	return nil
}

// assertCursor checks the position of one stream.
func assertCursor(result *Result, a Assertion) error {
	if got := result.Cursor.Get(a.Stream); got != a.Seq {
		return &AssertionError{
			Type:     AssertCursor,
			Expected: fmt.Sprintf("cursor %s at %d", a.Stream, a.Seq),
			Actual:   fmt.Sprintf("cursor %s at %d", a.Stream, got),
		}
	}
	return nil
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		if where[key] == nil {
			clauses = append(clauses, key+" IS NULL")
			continue
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, where[key])
	}

	return strings.Join(clauses, " AND "), args, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a scanned column value.
// SQLite returns booleans as integers and some drivers return text as bytes.
func stateValuesEqual(expected, actual any) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		act, ok := actual.(string)
		return ok && exp == act
	case int:
		return numbersEqual(float64(exp), actual)
	case int64:
		return numbersEqual(float64(exp), actual)
	case float64:
		return numbersEqual(exp, actual)
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func numbersEqual(exp float64, actual any) bool {
	switch act := actual.(type) {
	case int64:
		return exp == float64(act)
	case int:
		return exp == float64(act)
	case float64:
		return exp == act
	}
	return false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions. Assertions that
// read the store fail when actx carries none.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertCursor:
			err = assertCursor(result, a)
		case AssertFinalState, AssertLink, AssertParked:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, a.Type)
				break
			}
			switch a.Type {
			case AssertFinalState:
				err = assertFinalState(actx.Ctx, actx.Store, a)
			case AssertLink:
				err = assertLink(actx.Ctx, actx.Store, a)
			default:
				err = assertParked(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	return failures
}
