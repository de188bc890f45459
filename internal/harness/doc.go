// Package harness runs integration scenarios against the real driver.
//
// A scenario is a YAML file describing buffered legacy records, the cycles
// that integrate them and assertions on the outcome:
//
//	name: merge_then_order
//	description: a merge in the same batch as dependent rows
//	cycles:
//	  - ingest:
//	      - {record_id: n1, table_name: name, action: upsert, data: {...}}
//	    expect: {applied: 1}
//	assertions:
//	  - type: link
//	    kind: name
//	    id: n2
//	    canonical: n1
//
// Each scenario runs in a fresh SQLite store under a temporary directory,
// with sequential run ids and a step clock, so two runs of one scenario
// produce the same trace. Seqs left out of ingested records are assigned
// in file order after every seq seen so far.
//
// # Assertions
//
//   - trace_contains: a record was processed with the given outcome
//   - trace_order: records were processed in the given relative order
//   - trace_count: a record (or every record) was processed N times
//   - final_state: exactly one row of a table matches where and expect
//   - link: an observed id resolves to a canonical id
//   - parked: a record is parked, optionally with an error substring
//   - cursor: a stream's cursor sits at seq
//
// # Golden Files
//
// RunWithGolden compares the trace, links, tombstones and cursor against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
