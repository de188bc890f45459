// Package engine implements the msync integration driver.
//
// A Driver runs integration cycles: it takes the pending envelopes from the
// sync buffer, applies them in a deterministic order and records the
// outcome of every envelope.
//
// # Cycle
//
//  1. Take the single-flight lock of the site. A held lock is
//     ErrCycleInProgress.
//  2. Start a sync_run and fetch envelopes with seq > cursor[stream].
//  3. Apply merge envelopes first, by ascending seq.
//  4. Walk the tables in dependency order; within a table apply envelopes
//     by ascending seq.
//  5. Finish the sync_run with the per-outcome totals.
//
// # Per-envelope transaction
//
// Everything derived from one envelope commits together: link mutations,
// normalized rows, the cursor advance, the buffer marker and the
// integration_log row. A crash between envelopes loses nothing and repeats
// nothing.
//
// # Failures
//
//   - TranslationError: the transaction rolls back and a second transaction
//     parks the record (cursor advanced, error stored, outcome "errored").
//     The batch continues.
//   - LinkResolutionError: same, with outcome "skipped" and a warning.
//   - Anything else (storage, cancellation): the batch stops. The failed
//     envelope's cursor is unchanged, so the next cycle retries it, and
//     Integrate returns a *FatalError.
//
// Envelopes of tables without a translator never enter the batch. Each is
// reported once as skipped (logged, audited and marked deferred) and stays
// pending without advancing its cursor, so a later release that knows the
// table integrates it.
//
// # Determinism
//
// Ordering depends only on seq, record_id and the table dependency order,
// never on wall time. Replaying a range (ResetCursor + Integrate) applies
// the same ops again, and every write is an upsert, so the store ends up
// unchanged.
package engine
