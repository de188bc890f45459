// Package store provides durable storage for msync.
//
// The store holds three kinds of data:
//   - The sync buffer: opaque legacy change records (sync_buffer) and the
//     per-stream integration cursor (sync_cursor)
//   - The link layer: name_link and item_link, mapping every observed entity
//     id to its canonical id, plus merge_tombstone
//   - Normalized domain rows written by translators (unit, item, name, ...)
//
// An audit trail of cycles (sync_run) and per-envelope outcomes
// (integration_log) sits alongside.
//
// # Critical Patterns
//
// Idempotent writes
//   - Domain rows: INSERT ... ON CONFLICT (id) DO UPDATE
//   - Links and log rows: ON CONFLICT (id) DO NOTHING
//   - Re-applying an envelope leaves the store unchanged
//
// Logical ordering
//   - Buffered records are read ORDER BY seq ASC, record_id ASC, never by
//     wall time
//   - Cursors only move forward, except through ResetCursor
//
// Atomicity
//   - Everything derived from one envelope is written in one Tx
//
// # Database Configuration
//
// SQLite (default, github.com/mattn/go-sqlite3):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - single connection: one writer
//
// PostgreSQL (github.com/lib/pq) uses the same embedded migrations, applied
// with golang-migrate. Statements are built with go-sqlbuilder in the flavor
// of the open driver.
package store
