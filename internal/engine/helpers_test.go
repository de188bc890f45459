package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/msync/internal/audit"
	"github.com/roach88/msync/internal/domain"
	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/metrics"
	"github.com/roach88/msync/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingSink collects audit entries.
type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *recordingSink) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func (r *recordingSink) recordIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.RecordID
	}
	return ids
}

type fixture struct {
	store   *store.Store
	driver  *Driver
	logs    *observer.ObservedLogs
	audit   *recordingSink
	metrics *metrics.Metrics
	spans   *tracetest.SpanRecorder
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "msync.db"),
		store.WithNow(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newFixture creates a driver over a fresh store. opts are applied after
// the fixture's own options.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s := openTestStore(t)
	return newFixtureOn(t, s, s, opts...)
}

func newFixtureOn(t *testing.T, s *store.Store, storage Storage, opts ...Option) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	sink := &recordingSink{}
	m := metrics.New(prometheus.NewRegistry())
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	base := []Option{
		WithLogger(zap.New(core)),
		WithAudit(sink),
		WithMetrics(m),
		WithTracer(provider.Tracer("msync-test")),
		WithNow(func() time.Time { return testNow }),
	}
	d, err := New(storage, append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{store: s, driver: d, logs: logs, audit: sink, metrics: m, spans: spans}
}

func (f *fixture) ingest(t *testing.T, envs ...ir.Envelope) {
	t.Helper()
	_, err := f.store.WriteEnvelopes(context.Background(), envs)
	require.NoError(t, err)
}

func (f *fixture) integrate(t *testing.T) Summary {
	t.Helper()
	summary, err := f.driver.Integrate(context.Background())
	require.NoError(t, err)
	return summary
}

func newEnv(t *testing.T, recordID, table string, action ir.Action, seq int64, data map[string]any) ir.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return ir.Envelope{RecordID: recordID, TableName: table, Action: action, Seq: seq, Data: raw}
}

func unitEnv(t *testing.T, id string, seq int64) ir.Envelope {
	return newEnv(t, id, "unit", ir.ActionUpsert, seq, map[string]any{"ID": id, "units": "Unit " + id})
}

func nameEnv(t *testing.T, id string, seq int64) ir.Envelope {
	return newEnv(t, id, "name", ir.ActionUpsert, seq, map[string]any{
		"ID": id, "name": "Name " + id, "code": id, "type": "facility", "customer": true, "supplier": false,
	})
}

func itemEnv(t *testing.T, id string, seq int64) ir.Envelope {
	return newEnv(t, id, "item", ir.ActionUpsert, seq, map[string]any{
		"ID": id, "item_name": "Item " + id, "code": id, "type_of": "general",
	})
}

func storeEnv(t *testing.T, id, nameID string, seq int64) ir.Envelope {
	return newEnv(t, id, "store", ir.ActionUpsert, seq, map[string]any{"ID": id, "name_ID": nameID, "code": id})
}

func transactEnv(t *testing.T, id, nameID string, seq int64) ir.Envelope {
	return newEnv(t, id, "transact", ir.ActionUpsert, seq, map[string]any{
		"ID": id, "name_ID": nameID, "store_ID": "s1", "invoice_num": seq,
		"type": "ci", "status": "nw", "entry_date": "2024-02-10",
	})
}

func transLineEnv(t *testing.T, id, transactID, itemID string, seq int64) ir.Envelope {
	return newEnv(t, id, "trans_line", ir.ActionUpsert, seq, map[string]any{
		"ID": id, "transaction_ID": transactID, "item_ID": itemID, "item_name": "Item " + itemID,
		"type": "stock_out", "pack_size": 1, "quantity": 4,
	})
}

func mergeEnv(t *testing.T, recordID, table, keep, del string, seq int64) ir.Envelope {
	return newEnv(t, recordID, table, ir.ActionMerge, seq, map[string]any{
		"mergeIdToKeep": keep, "mergeIdToDelete": del,
	})
}

// canonicalNames maps every observed name id to its canonical id.
func canonicalNames(t *testing.T, s *store.Store) map[string]string {
	t.Helper()
	rows, err := s.Links(context.Background(), domain.LinkName)
	require.NoError(t, err)
	out := make(map[string]string, len(rows))
	for _, l := range rows {
		out[l.ID] = l.CanonicalID
	}
	return out
}

// snapshot captures the normalized state: row counts and links.
func snapshot(t *testing.T, s *store.Store) map[string]any {
	t.Helper()
	ctx := context.Background()
	snap := map[string]any{}
	for _, table := range []string{
		domain.UnitTable, domain.ItemTable, domain.NameTable, domain.StoreTable,
		domain.InvoiceTable, domain.InvoiceLineTable, domain.MergeTombstoneTable,
	} {
		n, err := s.Count(ctx, table)
		require.NoError(t, err)
		snap[table] = n
	}
	for _, kind := range domain.LinkKinds() {
		rows, err := s.Links(ctx, kind)
		require.NoError(t, err)
		snap[kind.Table()] = rows
	}
	return snap
}

var errDiskFull = errors.New("disk I/O error")

// faultyStorage fails the nth transaction with a StorageError without
// running it.
type faultyStorage struct {
	*store.Store
	mu     sync.Mutex
	failAt int
	calls  int
}

func (f *faultyStorage) InTx(ctx context.Context, fn func(*store.Tx) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failAt
	f.mu.Unlock()

	if fail {
		return &store.StorageError{Op: "commit transaction", Err: errDiskFull}
	}
	return f.Store.InTx(ctx, fn)
}
