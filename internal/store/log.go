package store

import (
	"context"
)

// Integration outcomes recorded per envelope.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
)

// LogEntry is one integration_log row: the outcome of processing one
// envelope in one run.
type LogEntry struct {
	ID        string  `db:"id" json:"id"`
	RunID     string  `db:"run_id" json:"run_id"`
	RecordID  string  `db:"record_id" json:"record_id"`
	TableName string  `db:"table_name" json:"table_name"`
	Action    string  `db:"action" json:"action"`
	Seq       int64   `db:"seq" json:"seq"`
	Outcome   string  `db:"outcome" json:"outcome"`
	Message   *string `db:"message" json:"message,omitempty"`
	OpCount   int64   `db:"op_count" json:"op_count"`
	LoggedAt  string  `db:"logged_at" json:"logged_at"`
}

// WriteLog inserts an integration log row.
// Uses ON CONFLICT(id) DO NOTHING: the id is derived from the envelope
// fingerprint and outcome, so replays do not duplicate audit rows.
func (t *Tx) WriteLog(ctx context.Context, entry LogEntry) error {
	ib := t.flavor.NewInsertBuilder()
	ib.InsertInto("integration_log").
		Cols("id", "run_id", "record_id", "table_name", "action", "seq", "outcome", "message", "op_count", "logged_at").
		Values(entry.ID, entry.RunID, entry.RecordID, entry.TableName, entry.Action, entry.Seq,
			entry.Outcome, entry.Message, entry.OpCount, entry.LoggedAt)
	ib.SQL("ON CONFLICT (id) DO NOTHING")

	query, args := ib.Build()
	_, err := t.tx.ExecContext(ctx, query, args...)
	return storageErr("write integration log", err)
}

// ReadLog returns the integration log of one record ordered by logged_at.
// With an empty recordID the whole log is returned.
func (s *Store) ReadLog(ctx context.Context, recordID string) ([]LogEntry, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("id", "run_id", "record_id", "table_name", "action", "seq", "outcome", "message", "op_count", "logged_at").
		From("integration_log")
	if recordID != "" {
		sb.Where(sb.Equal("record_id", recordID))
	}
	sb.OrderBy("logged_at", "seq", "id").Asc()

	query, args := sb.Build()
	entries := []LogEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, storageErr("read integration log", err)
	}
	return entries, nil
}
