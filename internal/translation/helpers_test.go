package translation

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/links"
	"github.com/roach88/msync/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "msync.db"),
		store.WithNow(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func payload(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

func envelope(recordID string, table LegacyTable, action ir.Action, seq int64, data json.RawMessage) ir.Envelope {
	return ir.Envelope{
		RecordID:  recordID,
		TableName: string(table),
		Action:    action,
		Seq:       seq,
		Data:      data,
	}
}

// translateAndApply translates env in one transaction and applies its ops.
// A translation error rolls the transaction back.
func translateAndApply(t *testing.T, s *store.Store, env ir.Envelope) (Result, error) {
	t.Helper()
	ctx := context.Background()
	tr, ok := Lookup(LegacyTable(env.TableName))
	require.True(t, ok, "no translator for %s", env.TableName)

	var res Result
	err := s.InTx(ctx, func(tx *store.Tx) error {
		logger := zaptest.NewLogger(t)
		tc := &Context{
			Links:  links.New(tx, logger),
			Rows:   tx,
			Now:    testNow,
			Logger: logger,
		}
		var err error
		res, err = Translate(ctx, tc, tr, env)
		if err != nil {
			return err
		}
		return tx.Apply(ctx, res.Ops)
	})
	return res, err
}

func mustApply(t *testing.T, s *store.Store, env ir.Envelope) Result {
	t.Helper()
	res, err := translateAndApply(t, s, env)
	require.NoError(t, err)
	return res
}

func nameEnvelope(t *testing.T, id string, seq int64) ir.Envelope {
	t.Helper()
	return envelope("rec-"+id, TableName, ir.ActionUpsert, seq, payload(t, map[string]any{
		"ID":       id,
		"name":     "Name " + id,
		"code":     id,
		"type":     "facility",
		"customer": true,
		"supplier": false,
	}))
}

func mergeEnvelope(t *testing.T, recordID string, table LegacyTable, keep, del string, seq int64) ir.Envelope {
	t.Helper()
	return envelope(recordID, table, ir.ActionMerge, seq, payload(t, map[string]any{
		"mergeIdToKeep":   keep,
		"mergeIdToDelete": del,
	}))
}

func opTables(ops []ir.Op) []string {
	tables := make([]string, len(ops))
	for i, op := range ops {
		tables[i] = op.Table
	}
	return tables
}
