package translation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/msync/internal/ir"
)

type fakeTranslator struct {
	table LegacyTable
	deps  []LegacyTable
}

func (f fakeTranslator) Descriptor() Descriptor {
	return Descriptor{Table: f.table, Dependencies: f.deps, Actions: upsertOnly}
}

func (f fakeTranslator) Translate(context.Context, *Context, ir.Envelope) (Result, error) {
	return Result{}, nil
}

func fake(table LegacyTable, deps ...LegacyTable) Translator {
	return fakeTranslator{table: table, deps: deps}
}

func TestLookup_EveryTableResolves(t *testing.T) {
	for _, table := range AllTables() {
		t.Run(string(table), func(t *testing.T) {
			tr, ok := Lookup(table)
			require.True(t, ok)
			assert.Equal(t, table, tr.Descriptor().Table)
			assert.True(t, tr.Descriptor().Supports(ir.ActionUpsert))
		})
	}
}

func TestLookup_UnknownTable(t *testing.T) {
	_, ok := Lookup("requisition")
	assert.False(t, ok)

	reg, err := DefaultRegistry()
	require.NoError(t, err)
	_, ok = reg.Lookup("requisition")
	assert.False(t, ok)
}

func TestDescriptor_Actions(t *testing.T) {
	tests := []struct {
		table  LegacyTable
		delete bool
		merge  bool
	}{
		{TableUnit, false, false},
		{TableItem, false, true},
		{TableName, false, true},
		{TableNameTag, false, false},
		{TableNameTagJoin, true, false},
		{TableStore, false, false},
		{TableNameStoreJoin, true, false},
		{TableTransact, true, false},
		{TableTransLine, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			tr, _ := Lookup(tt.table)
			desc := tr.Descriptor()
			assert.Equal(t, tt.delete, desc.Supports(ir.ActionDelete))
			assert.Equal(t, tt.merge, desc.Supports(ir.ActionMerge))
		})
	}
}

func TestDefaultRegistry_Order(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []LegacyTable{
		TableName,
		TableNameTag,
		TableNameTagJoin,
		TableStore,
		TableNameStoreJoin,
		TableTransact,
		TableUnit,
		TableItem,
		TableTransLine,
	}, reg.Order())
}

func TestDefaultRegistry_DependenciesComeFirst(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	for _, table := range AllTables() {
		tr, _ := reg.Lookup(string(table))
		rank, ok := reg.Rank(string(table))
		require.True(t, ok)
		for _, dep := range tr.Descriptor().Dependencies {
			depRank, ok := reg.Rank(string(dep))
			require.True(t, ok)
			assert.Less(t, depRank, rank, "%s must come before %s", dep, table)
		}
	}
}

func TestNewRegistry_OrderIsStable(t *testing.T) {
	a, err := NewRegistry(fake("c"), fake("b"), fake("a"), fake("d", "c"))
	require.NoError(t, err)
	b, err := NewRegistry(fake("d", "c"), fake("a"), fake("c"), fake("b"))
	require.NoError(t, err)

	assert.Equal(t, []LegacyTable{"a", "b", "c", "d"}, a.Order())
	assert.Equal(t, a.Order(), b.Order())
}

func TestNewRegistry_Cycle(t *testing.T) {
	_, err := NewRegistry(fake("a", "b"), fake("b", "a"), fake("c"))
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []LegacyTable{"a", "b", "a"}, ce.Cycle)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestNewRegistry_LongCycle(t *testing.T) {
	_, err := NewRegistry(fake("a", "c"), fake("b", "a"), fake("c", "b"), fake("d", "a"))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []LegacyTable{"a", "c", "b", "a"}, ce.Cycle)
}

func TestNewRegistry_SelfLoop(t *testing.T) {
	_, err := NewRegistry(fake("a", "a"))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []LegacyTable{"a", "a"}, ce.Cycle)
}

func TestNewRegistry_MissingDependency(t *testing.T) {
	_, err := NewRegistry(fake("a"), fake("b", "a", "z"))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, LegacyTable("b"), ce.Table)
	assert.Equal(t, LegacyTable("z"), ce.Missing)
	assert.Empty(t, ce.Cycle)
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(fake("a"), fake("a"))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, LegacyTable("a"), ce.Duplicate)
}

func TestTranslate_UnsupportedAction(t *testing.T) {
	tr, _ := Lookup(TableUnit)
	env := envelope("u1", TableUnit, ir.ActionDelete, 1, []byte(`{}`))

	_, err := Translate(context.Background(), &Context{}, tr, env)
	require.Error(t, err)
	assert.True(t, IsTranslationError(err))
	assert.Contains(t, err.Error(), "unsupported action delete")
}
