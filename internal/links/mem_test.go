package links

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/roach88/msync/internal/domain"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	links map[domain.LinkKind]map[string]string
	err   error
}

func newMemBackend() *memBackend {
	return &memBackend{links: map[domain.LinkKind]map[string]string{}}
}

func (m *memBackend) table(kind domain.LinkKind) map[string]string {
	if m.links[kind] == nil {
		m.links[kind] = map[string]string{}
	}
	return m.links[kind]
}

func (m *memBackend) FindLink(_ context.Context, kind domain.LinkKind, id string) (domain.LinkRow, bool, error) {
	if m.err != nil {
		return domain.LinkRow{}, false, m.err
	}
	canonical, ok := m.table(kind)[id]
	if !ok {
		return domain.LinkRow{}, false, nil
	}
	return domain.LinkRow{Kind: kind, ID: id, CanonicalID: canonical}, true, nil
}

func (m *memBackend) InsertLink(_ context.Context, link domain.LinkRow) error {
	if m.err != nil {
		return m.err
	}
	t := m.table(link.Kind)
	if _, ok := t[link.ID]; !ok {
		t[link.ID] = link.CanonicalID
	}
	return nil
}

func (m *memBackend) SetLink(_ context.Context, kind domain.LinkKind, id, canonicalID string) error {
	if m.err != nil {
		return m.err
	}
	m.table(kind)[id] = canonicalID
	return nil
}

func (m *memBackend) RepointLinks(_ context.Context, kind domain.LinkKind, from, to string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	t := m.table(kind)
	for id, canonical := range t {
		if canonical == from {
			t[id] = to
			n++
		}
	}
	return n, nil
}

// snapshot returns a copy of the links of a kind.
func (m *memBackend) snapshot(kind domain.LinkKind) map[string]string {
	return maps.Clone(m.table(kind))
}

// ids returns the observed ids of a kind in sorted order.
func (m *memBackend) ids(kind domain.LinkKind) []string {
	return slices.Sorted(maps.Keys(m.table(kind)))
}

var errBackend = errors.New("backend unavailable")
