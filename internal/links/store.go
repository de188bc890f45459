package links

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/msync/internal/domain"
)

// maxHops bounds path following in Resolve. A longer chain can only come
// from a corrupt link table.
const maxHops = 64

// Backend is the transactional storage a Store reads and writes.
// *store.Tx implements it.
type Backend interface {
	FindLink(ctx context.Context, kind domain.LinkKind, id string) (domain.LinkRow, bool, error)
	InsertLink(ctx context.Context, link domain.LinkRow) error
	SetLink(ctx context.Context, kind domain.LinkKind, id, canonicalID string) error
	RepointLinks(ctx context.Context, kind domain.LinkKind, from, to string) (int64, error)
}

// Store is the entity link store over one transaction.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New creates a Store over backend. A nil logger disables logging.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Find returns the link row of id without creating it.
func (s *Store) Find(ctx context.Context, kind domain.LinkKind, id string) (domain.LinkRow, bool, error) {
	link, found, err := s.backend.FindLink(ctx, kind, id)
	if err != nil {
		return domain.LinkRow{}, false, fmt.Errorf("find %s link %s: %w", kind, id, err)
	}
	return link, found, nil
}

// Resolve returns the link row of raw, creating the identity link the first
// time raw is observed. The returned CanonicalID is always a fixed point.
//
// If a link points at an id that is not itself canonical (a legacy
// inconsistency), Resolve follows the path to its root and rewrites the link
// to point at the root directly.
func (s *Store) Resolve(ctx context.Context, kind domain.LinkKind, raw string) (domain.LinkRow, error) {
	if raw == "" {
		return domain.LinkRow{}, &LinkResolutionError{Kind: kind, Reason: "empty id"}
	}

	link, found, err := s.Find(ctx, kind, raw)
	if err != nil {
		return domain.LinkRow{}, err
	}
	if !found {
		link = domain.IdentityLink(kind, raw)
		if err := s.backend.InsertLink(ctx, link); err != nil {
			return domain.LinkRow{}, fmt.Errorf("create %s link %s: %w", kind, raw, err)
		}
		s.logger.Debug("link created", zap.String("kind", string(kind)), zap.String("id", raw))
		return link, nil
	}
	if link.IsIdentity() {
		return link, nil
	}

	root, err := s.root(ctx, kind, link)
	if err != nil {
		return domain.LinkRow{}, err
	}
	if root != link.CanonicalID {
		if err := s.backend.SetLink(ctx, kind, link.ID, root); err != nil {
			return domain.LinkRow{}, fmt.Errorf("compress %s link %s: %w", kind, raw, err)
		}
		s.logger.Debug("link path compressed",
			zap.String("kind", string(kind)),
			zap.String("id", raw),
			zap.String("from", link.CanonicalID),
			zap.String("to", root))
		link.CanonicalID = root
	}
	return link, nil
}

// root follows a link to its fixed point. A target that was never observed
// gets an identity link, which makes it the root.
func (s *Store) root(ctx context.Context, kind domain.LinkKind, link domain.LinkRow) (string, error) {
	seen := map[string]bool{link.ID: true}
	current := link.CanonicalID

	for hops := 0; hops < maxHops; hops++ {
		if seen[current] {
			return "", &LinkResolutionError{Kind: kind, Reason: fmt.Sprintf("link cycle through %s", current)}
		}
		seen[current] = true

		next, found, err := s.Find(ctx, kind, current)
		if err != nil {
			return "", err
		}
		if !found {
			if err := s.backend.InsertLink(ctx, domain.IdentityLink(kind, current)); err != nil {
				return "", fmt.Errorf("create %s link %s: %w", kind, current, err)
			}
			return current, nil
		}
		if next.IsIdentity() {
			return current, nil
		}
		current = next.CanonicalID
	}
	return "", &LinkResolutionError{Kind: kind, Reason: fmt.Sprintf("link path from %s exceeds %d hops", link.ID, maxHops)}
}

// MergeOutcome describes the effect of one Merge call.
type MergeOutcome struct {
	// Applied is false when both ids already shared a canonical id.
	Applied bool

	// KeepRoot is the canonical id every merged link now points at.
	KeepRoot string

	// DeleteRoot is the canonical id that was retired.
	DeleteRoot string

	// Repointed counts the links that moved.
	Repointed int64
}

// Merge folds deleteID into keepID: every link whose canonical id is the root
// of deleteID is repointed to the root of keepID. This covers deleteID
// itself and every id merged into it earlier.
//
// Ids never seen before are created lazily, so a merge may arrive before
// any record mentioning its ids. Merging two ids that already resolve to the
// same canonical id is a no-op, which makes Merge idempotent and lets chains
// of merges converge regardless of arrival order.
//
// keepID == deleteID returns a *LinkResolutionError.
func (s *Store) Merge(ctx context.Context, kind domain.LinkKind, keepID, deleteID string) (MergeOutcome, error) {
	if keepID == "" || deleteID == "" {
		return MergeOutcome{}, &LinkResolutionError{Kind: kind, KeepID: keepID, DeleteID: deleteID, Reason: "empty id"}
	}
	if keepID == deleteID {
		return MergeOutcome{}, &LinkResolutionError{Kind: kind, KeepID: keepID, DeleteID: deleteID, Reason: "self-merge"}
	}

	keep, err := s.Resolve(ctx, kind, keepID)
	if err != nil {
		return MergeOutcome{}, err
	}
	del, err := s.Resolve(ctx, kind, deleteID)
	if err != nil {
		return MergeOutcome{}, err
	}

	outcome := MergeOutcome{KeepRoot: keep.CanonicalID, DeleteRoot: del.CanonicalID}
	if keep.CanonicalID == del.CanonicalID {
		s.logger.Debug("merge already applied",
			zap.String("kind", string(kind)),
			zap.String("keep", keepID),
			zap.String("delete", deleteID),
			zap.String("canonical", keep.CanonicalID))
		return outcome, nil
	}

	n, err := s.backend.RepointLinks(ctx, kind, del.CanonicalID, keep.CanonicalID)
	if err != nil {
		return MergeOutcome{}, fmt.Errorf("merge %s %s into %s: %w", kind, deleteID, keepID, err)
	}
	outcome.Applied = true
	outcome.Repointed = n

	s.logger.Debug("merge applied",
		zap.String("kind", string(kind)),
		zap.String("keep_root", outcome.KeepRoot),
		zap.String("delete_root", outcome.DeleteRoot),
		zap.Int64("repointed", n))
	return outcome, nil
}
