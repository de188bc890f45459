package store

import (
	"context"

	"github.com/roach88/msync/internal/ir"
)

// LoadCursor reads the persisted per-stream cursor.
// A stream that has never advanced is absent (position 0).
func (s *Store) LoadCursor(ctx context.Context) (ir.Cursor, error) {
	var rows []struct {
		Stream  string `db:"stream"`
		LastSeq int64  `db:"last_seq"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT stream, last_seq FROM sync_cursor`); err != nil {
		return nil, storageErr("load cursor", err)
	}

	cursor := make(ir.Cursor, len(rows))
	for _, row := range rows {
		cursor[row.Stream] = row.LastSeq
	}
	return cursor, nil
}

// ResetCursor moves cursors back so that records with seq > seq are
// integrated again. With an empty stream every stream is reset. Cursors
// already at or below seq are left alone. It returns the number of streams
// moved.
//
// This is the only operation that moves a cursor backwards.
func (s *Store) ResetCursor(ctx context.Context, stream string, seq int64) (int64, error) {
	if seq < 0 {
		seq = 0
	}

	query := `UPDATE sync_cursor SET last_seq = ? WHERE last_seq > ?`
	args := []any{seq, seq}
	if stream != "" {
		query += ` AND stream = ?`
		args = append(args, stream)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, storageErr("reset cursor", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("reset cursor", err)
	}
	return n, nil
}
