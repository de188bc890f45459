package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/msync/internal/ir"
)

// bufferRow is the sync_buffer projection read back into envelopes.
type bufferRow struct {
	RecordID   string `db:"record_id"`
	TableName  string `db:"table_name"`
	Action     string `db:"action"`
	Seq        int64  `db:"seq"`
	Data       string `db:"data"`
	SourceSite string `db:"source_site"`
}

func (r bufferRow) envelope() (ir.Envelope, error) {
	action, err := ir.ParseAction(r.Action)
	if err != nil {
		return ir.Envelope{}, fmt.Errorf("record %s: %w", r.RecordID, err)
	}
	return ir.Envelope{
		RecordID:   r.RecordID,
		TableName:  r.TableName,
		Action:     action,
		Seq:        r.Seq,
		Data:       json.RawMessage(r.Data),
		SourceSite: r.SourceSite,
	}, nil
}

// ParkedRecord is a buffered envelope whose translation failed.
type ParkedRecord struct {
	RecordID   string `db:"record_id" json:"record_id"`
	TableName  string `db:"table_name" json:"table_name"`
	Action     string `db:"action" json:"action"`
	Seq        int64  `db:"seq" json:"seq"`
	SourceSite string `db:"source_site" json:"source_site,omitempty"`
	Error      string `db:"integration_error" json:"error"`
}

// WriteEnvelopes buffers envelopes in one transaction and returns how many
// were written.
//
// Re-buffering an existing record_id replaces it and clears its integration
// markers, so a corrected record sent again by a site is integrated again.
// Every envelope is validated before anything is written.
func (s *Store) WriteEnvelopes(ctx context.Context, envs []ir.Envelope) (int, error) {
	for i, env := range envs {
		if err := env.Validate(); err != nil {
			return 0, fmt.Errorf("write envelopes: envelope %d: %w", i, err)
		}
	}

	receivedAt := s.now()
	err := s.InTx(ctx, func(tx *Tx) error {
		for _, env := range envs {
			action, _ := ir.ParseAction(string(env.Action))

			ib := tx.flavor.NewInsertBuilder()
			ib.InsertInto("sync_buffer").
				Cols("record_id", "table_name", "action", "seq", "data", "source_site", "received_at").
				Values(env.RecordID, env.TableName, string(action), env.Seq, string(env.Data), env.SourceSite, receivedAt)
			ib.SQL(`ON CONFLICT (record_id) DO UPDATE SET
				table_name = excluded.table_name,
				action = excluded.action,
				seq = excluded.seq,
				data = excluded.data,
				source_site = excluded.source_site,
				received_at = excluded.received_at,
				integrated_at = NULL,
				integration_error = NULL,
				deferred_at = NULL`)

			query, args := ib.Build()
			if _, err := tx.tx.ExecContext(ctx, query, args...); err != nil {
				return storageErr("write envelope "+env.RecordID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write envelopes: %w", err)
	}
	return len(envs), nil
}

// FetchPending returns buffered envelopes past the cursor of their stream,
// ordered by seq ASC, record_id ASC. A limit <= 0 returns everything.
//
// Merge envelopes are compared against the merge stream of their table, every
// other envelope against the stream of its table. A non-nil tables list
// leaves out non-merge envelopes of any other table, so that they never take
// a slot of the limit. A nil list returns every table.
func (s *Store) FetchPending(ctx context.Context, tables []string, limit int) ([]ir.Envelope, error) {
	query := `
		SELECT b.record_id, b.table_name, b.action, b.seq, b.data, b.source_site
		FROM sync_buffer b
		LEFT JOIN sync_cursor c
			ON c.stream = CASE WHEN b.action = 'merge' THEN '` + ir.MergeStreamPrefix + `' || b.table_name ELSE b.table_name END
		WHERE b.seq > COALESCE(c.last_seq, 0)`
	var args []any
	switch {
	case tables == nil:
	case len(tables) == 0:
		query += ` AND b.action = 'merge'`
	default:
		query += ` AND (b.action = 'merge' OR b.table_name IN (?))`
		args = append(args, tables)
	}
	query += ` ORDER BY b.seq ASC, b.record_id ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.selectEnvelopes(ctx, "fetch pending", query, args)
}

// FetchUndeferred returns pending non-merge envelopes of tables outside
// tables that have not been deferred yet, ordered by seq ASC, record_id ASC.
// An empty tables list matches every table. A limit <= 0 returns everything.
func (s *Store) FetchUndeferred(ctx context.Context, tables []string, limit int) ([]ir.Envelope, error) {
	query := `
		SELECT b.record_id, b.table_name, b.action, b.seq, b.data, b.source_site
		FROM sync_buffer b
		LEFT JOIN sync_cursor c ON c.stream = b.table_name
		WHERE b.seq > COALESCE(c.last_seq, 0)
			AND b.action <> 'merge'
			AND b.deferred_at IS NULL`
	var args []any
	if len(tables) > 0 {
		query += ` AND b.table_name NOT IN (?)`
		args = append(args, tables)
	}
	query += ` ORDER BY b.seq ASC, b.record_id ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.selectEnvelopes(ctx, "fetch undeferred", query, args)
}

// selectEnvelopes expands slice arguments with sqlx.In and reads the rows
// back as envelopes.
func (s *Store) selectEnvelopes(ctx context.Context, op, query string, args []any) ([]ir.Envelope, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}

	var rows []bufferRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, storageErr(op, err)
	}

	envs := make([]ir.Envelope, 0, len(rows))
	for _, row := range rows {
		env, err := row.envelope()
		if err != nil {
			return nil, storageErr(op, err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// GetEnvelope returns one buffered envelope by record id.
// Returns ErrNotFound if the record was never buffered.
func (s *Store) GetEnvelope(ctx context.Context, recordID string) (ir.Envelope, error) {
	var row bufferRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT record_id, table_name, action, seq, data, source_site
		FROM sync_buffer
		WHERE record_id = ?
	`), recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Envelope{}, fmt.Errorf("envelope %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return ir.Envelope{}, storageErr("get envelope", err)
	}
	return row.envelope()
}

// ListParked returns every record with an integration error, ordered by seq.
func (s *Store) ListParked(ctx context.Context) ([]ParkedRecord, error) {
	parked := []ParkedRecord{}
	err := s.db.SelectContext(ctx, &parked, `
		SELECT record_id, table_name, action, seq, source_site, integration_error
		FROM sync_buffer
		WHERE integration_error IS NOT NULL
		ORDER BY seq ASC, record_id ASC
	`)
	if err != nil {
		return nil, storageErr("list parked", err)
	}
	return parked, nil
}

// Requeue gives a parked record a new seq after every buffered record and
// clears its error, so the next cycle integrates it again. It returns the
// new seq. Returns ErrNotFound if the record is not parked.
func (s *Store) Requeue(ctx context.Context, recordID string) (int64, error) {
	var newSeq int64
	err := s.InTx(ctx, func(tx *Tx) error {
		var maxSeq int64
		if err := tx.tx.GetContext(ctx, &maxSeq, `SELECT COALESCE(MAX(seq), 0) FROM sync_buffer`); err != nil {
			return storageErr("requeue", err)
		}
		newSeq = maxSeq + 1

		res, err := tx.tx.ExecContext(ctx, tx.tx.Rebind(`
			UPDATE sync_buffer
			SET seq = ?, integration_error = NULL, integrated_at = NULL
			WHERE record_id = ? AND integration_error IS NOT NULL
		`), newSeq, recordID)
		if err != nil {
			return storageErr("requeue", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("requeue", err)
		}
		if n == 0 {
			return fmt.Errorf("parked record %s: %w", recordID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newSeq, nil
}

// MarkIntegrated stamps a buffered record as integrated and clears any
// previous error.
func (t *Tx) MarkIntegrated(ctx context.Context, recordID, at string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE sync_buffer SET integrated_at = ?, integration_error = NULL WHERE record_id = ?
	`), at, recordID)
	return storageErr("mark integrated", err)
}

// MarkParked records the integration error of a buffered record.
func (t *Tx) MarkParked(ctx context.Context, recordID, reason string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE sync_buffer SET integrated_at = NULL, integration_error = ? WHERE record_id = ?
	`), reason, recordID)
	return storageErr("mark parked", err)
}

// MarkDeferred stamps a buffered record that has no translator yet. It stays
// pending but is not reported again until it is buffered anew.
func (t *Tx) MarkDeferred(ctx context.Context, recordID, at string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE sync_buffer SET deferred_at = ? WHERE record_id = ?
	`), at, recordID)
	return storageErr("mark deferred", err)
}
