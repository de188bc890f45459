package translation

import (
	"slices"
)

// Registry is a validated set of translators together with the order in
// which their tables are integrated.
type Registry struct {
	translators map[LegacyTable]Translator
	order       []LegacyTable
	rank        map[LegacyTable]int
}

// NewRegistry validates the dependencies of translators and computes the
// table order. A dependency cycle, a dependency on a table without a
// translator, or a table registered twice is a *ConfigurationError.
func NewRegistry(translators ...Translator) (*Registry, error) {
	byTable := make(map[LegacyTable]Translator, len(translators))
	for _, tr := range translators {
		table := tr.Descriptor().Table
		if _, dup := byTable[table]; dup {
			return nil, &ConfigurationError{Duplicate: table}
		}
		byTable[table] = tr
	}

	graph, err := buildDependencyGraph(byTable)
	if err != nil {
		return nil, err
	}
	order, err := topologicalOrder(graph)
	if err != nil {
		return nil, err
	}

	rank := make(map[LegacyTable]int, len(order))
	for i, table := range order {
		rank[table] = i
	}
	return &Registry{translators: byTable, order: order, rank: rank}, nil
}

// DefaultRegistry returns the registry of every built-in translator.
func DefaultRegistry() (*Registry, error) {
	tables := AllTables()
	translators := make([]Translator, 0, len(tables))
	for _, table := range tables {
		tr, _ := Lookup(table)
		translators = append(translators, tr)
	}
	return NewRegistry(translators...)
}

// Lookup returns the translator of a legacy table name.
func (r *Registry) Lookup(table string) (Translator, bool) {
	tr, ok := r.translators[LegacyTable(table)]
	return tr, ok
}

// Order returns the tables in integration order.
func (r *Registry) Order() []LegacyTable {
	return slices.Clone(r.order)
}

// Rank returns the position of a table in the integration order.
func (r *Registry) Rank(table string) (int, bool) {
	n, ok := r.rank[LegacyTable(table)]
	return n, ok
}
