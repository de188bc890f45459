// Package links implements the entity link store.
//
// A link maps an observed entity id (name, item) to the canonical id it
// currently resolves to. Links are created lazily the first time an id is
// seen, repointed only by merges and never deleted.
//
// Invariants:
//   - every observed id has a link row
//   - every canonical id is a fixed point: Resolve(c) == c
//   - reads never chase more than one hop: Merge repoints every link of the
//     deleted root, and Resolve compresses any longer path it meets
//
// A Store is bound to one transaction (Backend). There is no package-level
// state; the integration driver builds a Store per envelope.
package links
