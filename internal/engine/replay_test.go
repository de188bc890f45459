package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/msync/internal/ir"
	"github.com/roach88/msync/internal/lock"
)

func TestReplay_LeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	f.ingest(t,
		nameEnv(t, "n1", 1),
		nameEnv(t, "n2", 2),
		storeEnv(t, "s1", "n1", 3),
		transactEnv(t, "t1", "n2", 4),
		itemEnv(t, "i1", 5),
		transLineEnv(t, "l1", "t1", "i1", 6),
		mergeEnv(t, "m1", "name", "n1", "n2", 7),
	)
	first := f.integrate(t)
	require.Equal(t, 7, first.Totals().Applied)
	before := snapshot(t, f.store)

	summary, err := f.driver.Replay(context.Background(), "", 1)
	require.NoError(t, err)

	// Rows are upserted again; the merge is already applied.
	assert.Equal(t, TableCounts{Applied: 6, Skipped: 1}, summary.Totals())
	assert.Equal(t, before, snapshot(t, f.store))
	assert.Equal(t, first.Cursor, summary.Cursor)

	log, err := f.store.ReadLog(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, log, 1, "a replayed envelope with the same outcome is logged once")
}

func TestReplay_ResetsOneStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, unitEnv(t, "u1", 1), unitEnv(t, "u2", 2), itemEnv(t, "i1", 3))
	f.integrate(t)

	summary, err := f.driver.Replay(ctx, "unit", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]TableCounts{"unit": {Applied: 1}}, summary.Tables)
	assert.Equal(t, ir.Cursor{"unit": 2, "item": 3}, summary.Cursor)

	// New records move the stream forward again.
	f.ingest(t, unitEnv(t, "u3", 4))
	assert.Equal(t, int64(4), f.integrate(t).Cursor.Get("unit"))
}

func TestReplay_RejectedWhileCycleRuns(t *testing.T) {
	locker := lock.NewLocal()
	f := newFixture(t, WithLocker(locker))
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, DefaultSiteID)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = f.driver.Replay(ctx, "", 1)
	assert.ErrorIs(t, err, ErrCycleInProgress)
}
