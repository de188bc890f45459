package ir

import "fmt"

// Row is a normalized domain row the store can upsert.
//
// Columns and Values are parallel slices; the first column is always the
// primary key "id". Implementations live in internal/domain.
type Row interface {
	TableName() string
	RowID() string
	Columns() []string
	Values() []any
}

// OpKind distinguishes upserts from deletes.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
)

// String returns the op kind as a string.
func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one normalized operation produced by translating an envelope.
// For upserts Row is set; for deletes Table and ID are set.
type Op struct {
	Kind  OpKind
	Row   Row
	Table string
	ID    string
}

// Upsert wraps a row in an upsert op.
func Upsert(row Row) Op {
	return Op{Kind: OpUpsert, Row: row, Table: row.TableName(), ID: row.RowID()}
}

// Delete builds a delete op for the row with the given id.
func Delete(table, id string) Op {
	return Op{Kind: OpDelete, Table: table, ID: id}
}

// String returns a short description for logs.
func (o Op) String() string {
	return fmt.Sprintf("%s %s/%s", o.Kind, o.Table, o.ID)
}
