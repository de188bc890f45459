package domain

import "fmt"

// LinkKind names an entity family that has a link table.
type LinkKind string

const (
	LinkName LinkKind = "name"
	LinkItem LinkKind = "item"
)

// LinkKinds lists every link kind.
func LinkKinds() []LinkKind {
	return []LinkKind{LinkItem, LinkName}
}

// ParseLinkKind parses a link kind name.
func ParseLinkKind(s string) (LinkKind, error) {
	switch LinkKind(s) {
	case LinkName, LinkItem:
		return LinkKind(s), nil
	default:
		return "", fmt.Errorf("unknown link kind %q", s)
	}
}

// Table returns the link table for the kind.
func (k LinkKind) Table() string {
	return string(k) + "_link"
}

// Column returns the column holding the canonical id.
func (k LinkKind) Column() string {
	return string(k) + "_id"
}

// LinkRow maps an observed entity id to its canonical id.
//
// Every canonical id is a fixed point: the link row of a canonical id points
// at itself.
type LinkRow struct {
	Kind        LinkKind `db:"-"`
	ID          string   `db:"id"`
	CanonicalID string   `db:"canonical_id"`
}

// IdentityLink returns the link row that maps id to itself.
func IdentityLink(kind LinkKind, id string) LinkRow {
	return LinkRow{Kind: kind, ID: id, CanonicalID: id}
}

// IsIdentity reports whether the link maps an id to itself.
func (r LinkRow) IsIdentity() bool {
	return r.ID == r.CanonicalID
}

func (r LinkRow) TableName() string { return r.Kind.Table() }
func (r LinkRow) RowID() string     { return r.ID }
func (r LinkRow) Columns() []string { return []string{"id", r.Kind.Column()} }
func (r LinkRow) Values() []any     { return []any{r.ID, r.CanonicalID} }

func (r LinkRow) String() string {
	return fmt.Sprintf("%s %s -> %s", r.Kind.Table(), r.ID, r.CanonicalID)
}
