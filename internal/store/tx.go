package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/msync/internal/ir"
)

// Tx is one open transaction on the store.
//
// Everything the driver does for a single envelope goes through one Tx: link
// reads and writes, domain ops, the cursor advance, the buffer marker and the
// integration log row. Either all of it commits or none of it does.
type Tx struct {
	tx     *sqlx.Tx
	flavor sqlbuilder.Flavor
}

// Apply executes ops in order.
// Upserts insert or update every column by primary key; deletes remove the
// row by id and are a no-op when the row is absent.
func (t *Tx) Apply(ctx context.Context, ops []ir.Op) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case ir.OpUpsert:
			err = t.Upsert(ctx, op.Row)
		case ir.OpDelete:
			err = t.Delete(ctx, op.Table, op.ID)
		default:
			err = fmt.Errorf("unknown op kind %d", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", op, err)
		}
	}
	return nil
}

// Upsert writes a row with INSERT ... ON CONFLICT (id) DO UPDATE.
func (t *Tx) Upsert(ctx context.Context, row ir.Row) error {
	cols := row.Columns()
	if len(cols) == 0 || cols[0] != "id" {
		return fmt.Errorf("upsert %s: first column must be id", row.TableName())
	}

	ib := t.flavor.NewInsertBuilder()
	ib.InsertInto(row.TableName()).Cols(cols...).Values(row.Values()...)

	if len(cols) > 1 {
		sets := make([]string, 0, len(cols)-1)
		for _, col := range cols[1:] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
		ib.SQL("ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", "))
	} else {
		ib.SQL("ON CONFLICT (id) DO NOTHING")
	}

	query, args := ib.Build()
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return storageErr("upsert "+row.TableName(), err)
	}
	return nil
}

// Delete removes a row by id.
func (t *Tx) Delete(ctx context.Context, table, id string) error {
	db := t.flavor.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return storageErr("delete "+table, err)
	}
	return nil
}

// Exists reports whether a row with the given id exists in table.
func (t *Tx) Exists(ctx context.Context, table, id string) (bool, error) {
	sb := t.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(table).Where(sb.Equal("id", id))

	query, args := sb.Build()
	var n int
	if err := t.tx.GetContext(ctx, &n, query, args...); err != nil {
		return false, storageErr("exists "+table, err)
	}
	return n > 0, nil
}

// AdvanceCursor moves a stream's cursor forward to seq.
// The update never moves a cursor backwards.
func (t *Tx) AdvanceCursor(ctx context.Context, stream string, seq int64) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO sync_cursor (stream, last_seq) VALUES (?, ?)
		ON CONFLICT (stream) DO UPDATE SET last_seq = CASE
			WHEN excluded.last_seq > sync_cursor.last_seq THEN excluded.last_seq
			ELSE sync_cursor.last_seq
		END
	`), stream, seq)
	return storageErr("advance cursor", err)
}
