// Package ir defines the shared value types that flow through msync.
//
// The package is a leaf: it depends on nothing else in the module and every
// other package depends on it.
//
//   - Envelope: one buffered legacy change record (table, action, seq, payload)
//   - Op: a normalized upsert or delete produced by translating an envelope
//   - Row: a typed domain row that can be written by the store
//   - Cursor: per-stream integration progress
//
// # Identity
//
// Envelopes are fingerprinted with RFC 8785 canonical JSON and SHA-256 using
// domain separation (see hash.go). The fingerprint is stable across replays, so
// audit rows keyed by it are written at most once per envelope and outcome.
//
// # Ordering
//
// Within one table, envelopes are ordered by Seq. Across tables Seq carries no
// meaning; the integration driver derives cross-table order from declared
// translator dependencies. Merge envelopes of a table advance their own stream
// (MergeStream) and are always applied before rows.
package ir
