// Package translation converts buffered legacy envelopes into normalized
// domain operations.
//
// Each legacy table has one Translator. A translator declares the tables it
// depends on (Descriptor), validates the payload against its CUE definition
// (schema.cue), resolves every foreign entity id through the link store and
// returns upsert/delete ops. Translators never write to storage themselves;
// the only side effect they may have is creating or repointing links through
// the *links.Store they are handed.
//
// The set of legacy tables is closed: Lookup is an exhaustive switch over
// LegacyTable and unknown table names resolve to nothing. Order derives the
// application order of tables from declared dependencies and rejects cycles.
//
// Merge envelopes (action "merge" on name or item) are handled by the merge
// resolver in merge.go.
package translation
