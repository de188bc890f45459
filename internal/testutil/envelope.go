package testutil

import (
	"encoding/json"

	"github.com/roach88/msync/internal/ir"
)

// EnvelopeBuilder builds buffered envelopes with increasing seqs.
type EnvelopeBuilder struct {
	Clock *SeqClock
	Site  string
}

// NewEnvelopeBuilder creates a builder with a fresh SeqClock.
func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{Clock: NewSeqClock()}
}

func (b *EnvelopeBuilder) build(recordID, table string, action ir.Action, data any) ir.Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		panic("testutil: marshal envelope data: " + err.Error())
	}
	return ir.Envelope{
		RecordID:   recordID,
		TableName:  table,
		Action:     action,
		Seq:        b.Clock.Next(),
		Data:       raw,
		SourceSite: b.Site,
	}
}

// Upsert returns an upsert envelope for table with the next seq.
func (b *EnvelopeBuilder) Upsert(recordID, table string, data map[string]any) ir.Envelope {
	return b.build(recordID, table, ir.ActionUpsert, data)
}

// Delete returns a delete envelope; the record id names the row deleted.
func (b *EnvelopeBuilder) Delete(recordID, table string) ir.Envelope {
	return b.build(recordID, table, ir.ActionDelete, map[string]any{})
}

// Merge returns a merge envelope folding deleteID into keepID.
func (b *EnvelopeBuilder) Merge(recordID, table, keepID, deleteID string) ir.Envelope {
	return b.build(recordID, table, ir.ActionMerge, map[string]any{
		"mergeIdToKeep":   keepID,
		"mergeIdToDelete": deleteID,
	})
}
