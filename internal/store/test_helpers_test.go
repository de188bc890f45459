package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/msync/internal/ir"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testEnvelope creates an envelope with a small payload.
func testEnvelope(recordID, table string, action ir.Action, seq int64) ir.Envelope {
	return ir.Envelope{
		RecordID:  recordID,
		TableName: table,
		Action:    action,
		Seq:       seq,
		Data:      json.RawMessage(`{"ID":"` + recordID + `"}`),
	}
}

// mustWrite buffers envelopes and fails the test on error.
func mustWrite(t *testing.T, s *Store, envs ...ir.Envelope) {
	t.Helper()
	_, err := s.WriteEnvelopes(context.Background(), envs)
	require.NoError(t, err)
}

// recordIDs extracts record ids in order.
func recordIDs(envs []ir.Envelope) []string {
	ids := make([]string, len(envs))
	for i, env := range envs {
		ids[i] = env.RecordID
	}
	return ids
}
