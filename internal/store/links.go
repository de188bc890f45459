package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/msync/internal/domain"
)

// FindLink returns the link row for an observed id.
func (t *Tx) FindLink(ctx context.Context, kind domain.LinkKind, id string) (domain.LinkRow, bool, error) {
	query := fmt.Sprintf(`SELECT id, %s AS canonical_id FROM %s WHERE id = ?`, kind.Column(), kind.Table())

	link := domain.LinkRow{Kind: kind}
	err := t.tx.GetContext(ctx, &link, t.tx.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LinkRow{}, false, nil
	}
	if err != nil {
		return domain.LinkRow{}, false, storageErr("find "+kind.Table(), err)
	}
	link.Kind = kind
	return link, true, nil
}

// InsertLink creates a link row if none exists for its id.
// An existing link is never overwritten: only merges repoint links.
func (t *Tx) InsertLink(ctx context.Context, link domain.LinkRow) error {
	ib := t.flavor.NewInsertBuilder()
	ib.InsertInto(link.Kind.Table()).Cols(link.Columns()...).Values(link.Values()...)
	ib.SQL("ON CONFLICT (id) DO NOTHING")

	query, args := ib.Build()
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return storageErr("insert "+link.Kind.Table(), err)
	}
	return nil
}

// SetLink points one link row at a canonical id.
func (t *Tx) SetLink(ctx context.Context, kind domain.LinkKind, id, canonicalID string) error {
	ub := t.flavor.NewUpdateBuilder()
	ub.Update(kind.Table()).Set(ub.Assign(kind.Column(), canonicalID)).Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return storageErr("set "+kind.Table(), err)
	}
	return nil
}

// RepointLinks moves every link whose canonical id is from to to, and returns
// how many links moved.
func (t *Tx) RepointLinks(ctx context.Context, kind domain.LinkKind, from, to string) (int64, error) {
	ub := t.flavor.NewUpdateBuilder()
	ub.Update(kind.Table()).Set(ub.Assign(kind.Column(), to)).Where(ub.Equal(kind.Column(), from))

	query, args := ub.Build()
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr("repoint "+kind.Table(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("repoint "+kind.Table(), err)
	}
	return n, nil
}

// Links returns every link row of a kind ordered by id.
func (s *Store) Links(ctx context.Context, kind domain.LinkKind) ([]domain.LinkRow, error) {
	query := fmt.Sprintf(`SELECT id, %s AS canonical_id FROM %s ORDER BY id ASC`, kind.Column(), kind.Table())

	links := []domain.LinkRow{}
	if err := s.db.SelectContext(ctx, &links, query); err != nil {
		return nil, storageErr("list "+kind.Table(), err)
	}
	for i := range links {
		links[i].Kind = kind
	}
	return links, nil
}

// LookupLink returns the link row for one id without creating it.
// Returns ErrNotFound if the id was never observed.
func (s *Store) LookupLink(ctx context.Context, kind domain.LinkKind, id string) (domain.LinkRow, error) {
	query := fmt.Sprintf(`SELECT id, %s AS canonical_id FROM %s WHERE id = ?`, kind.Column(), kind.Table())

	link := domain.LinkRow{}
	err := s.db.GetContext(ctx, &link, s.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LinkRow{}, fmt.Errorf("%s %s: %w", kind.Table(), id, ErrNotFound)
	}
	if err != nil {
		return domain.LinkRow{}, storageErr("lookup "+kind.Table(), err)
	}
	link.Kind = kind
	return link, nil
}

// Tombstones returns every applied merge ordered by id.
func (s *Store) Tombstones(ctx context.Context) ([]domain.MergeTombstoneRow, error) {
	rows := []domain.MergeTombstoneRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, kept_id, deleted_id, record_id, merged_at
		FROM merge_tombstone
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, storageErr("list merge tombstones", err)
	}
	return rows, nil
}
