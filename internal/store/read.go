package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/msync/internal/domain"
)

// Get reads one domain row by id into dest, a pointer to a row struct whose
// db tags cover every column of table. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, dest any, table, id string) error {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("*").From(table).Where(sb.Equal("id", id))

	query, args := sb.Build()
	err := s.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return storageErr("get "+table, err)
	}
	return nil
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(table)

	query, args := sb.Build()
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, storageErr("count "+table, err)
	}
	return n, nil
}

// ResolvedInvoice is an invoice joined through name_link to the canonical
// name it belongs to.
type ResolvedInvoice struct {
	domain.InvoiceRow
	NameID string `db:"name_id"`
}

// GetResolvedInvoice reads an invoice and resolves its name through the
// link table. After a merge, NameID is the kept name.
func (s *Store) GetResolvedInvoice(ctx context.Context, id string) (ResolvedInvoice, error) {
	var inv ResolvedInvoice
	err := s.db.GetContext(ctx, &inv, s.db.Rebind(`
		SELECT i.*, nl.name_id AS name_id
		FROM invoice i
		JOIN name_link nl ON nl.id = i.name_link_id
		WHERE i.id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ResolvedInvoice{}, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ResolvedInvoice{}, storageErr("get resolved invoice", err)
	}
	return inv, nil
}

// ResolvedInvoiceLine is an invoice line joined through item_link to the
// canonical item it references.
type ResolvedInvoiceLine struct {
	domain.InvoiceLineRow
	ItemID string `db:"item_id"`
}

// ListResolvedInvoiceLines returns the lines of one invoice ordered by id,
// each resolved to its canonical item.
func (s *Store) ListResolvedInvoiceLines(ctx context.Context, invoiceID string) ([]ResolvedInvoiceLine, error) {
	lines := []ResolvedInvoiceLine{}
	err := s.db.SelectContext(ctx, &lines, s.db.Rebind(`
		SELECT l.*, il.item_id AS item_id
		FROM invoice_line l
		JOIN item_link il ON il.id = l.item_link_id
		WHERE l.invoice_id = ?
		ORDER BY l.id ASC
	`), invoiceID)
	if err != nil {
		return nil, storageErr("list resolved invoice lines", err)
	}
	return lines, nil
}
