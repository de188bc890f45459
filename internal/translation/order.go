package translation

import (
	"cmp"
	"slices"
)

// dependencyGraph maps a table to the tables it depends on.
type dependencyGraph map[LegacyTable][]LegacyTable

// buildDependencyGraph builds the graph of registered translators and checks
// that every dependency is registered.
func buildDependencyGraph(translators map[LegacyTable]Translator) (dependencyGraph, error) {
	graph := make(dependencyGraph, len(translators))
	for _, table := range sortedTables(translators) {
		deps := slices.Clone(translators[table].Descriptor().Dependencies)
		slices.Sort(deps)
		for _, dep := range deps {
			if _, ok := translators[dep]; !ok {
				return nil, &ConfigurationError{Table: table, Missing: dep}
			}
		}
		graph[table] = slices.Compact(deps)
	}
	return graph, nil
}

// topologicalOrder returns the tables so that every table comes after its
// dependencies. Ties are broken alphabetically, so the order is stable
// across runs. A dependency cycle is a *ConfigurationError carrying the
// cycle path.
func topologicalOrder(graph dependencyGraph) ([]LegacyTable, error) {
	if cycle := findCycle(graph); cycle != nil {
		return nil, &ConfigurationError{Cycle: cycle}
	}

	// Kahn's algorithm over reversed edges: a table is ready once all of
	// its dependencies are placed.
	remaining := make(map[LegacyTable]int, len(graph))
	dependents := make(map[LegacyTable][]LegacyTable, len(graph))
	for table, deps := range graph {
		remaining[table] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], table)
		}
	}

	var ready []LegacyTable
	for table, n := range remaining {
		if n == 0 {
			ready = append(ready, table)
		}
	}

	order := make([]LegacyTable, 0, len(graph))
	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return order, nil
}

// findCycle returns one dependency cycle, first table repeated last, or nil
// if the graph is acyclic. It runs Tarjan's algorithm and reports the
// alphabetically first non-trivial strongly connected component.
func findCycle(graph dependencyGraph) []LegacyTable {
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			return cyclePath(scc, graph)
		}
	}
	return nil
}

func hasSelfLoop(table LegacyTable, graph dependencyGraph) bool {
	return slices.Contains(graph[table], table)
}

// tarjanSCC finds strongly connected components. Nodes and edges are visited
// in sorted order and each component is sorted, so the result is
// deterministic.
func tarjanSCC(graph dependencyGraph) [][]LegacyTable {
	var (
		index   = 0
		stack   []LegacyTable
		indices = make(map[LegacyTable]int)
		lowlink = make(map[LegacyTable]int)
		onStack = make(map[LegacyTable]bool)
		sccs    [][]LegacyTable
	)

	var strongConnect func(LegacyTable)
	strongConnect = func(v LegacyTable) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []LegacyTable
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]LegacyTable, 0, len(graph))
	for v := range graph {
		nodes = append(nodes, v)
	}
	slices.Sort(nodes)
	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	slices.SortFunc(sccs, func(a, b []LegacyTable) int {
		return cmp.Compare(a[0], b[0])
	})
	return sccs
}

// cyclePath walks a strongly connected component from its smallest member
// back to itself.
func cyclePath(scc []LegacyTable, graph dependencyGraph) []LegacyTable {
	start := scc[0]
	if len(scc) == 1 {
		return []LegacyTable{start, start}
	}

	inSCC := make(map[LegacyTable]bool, len(scc))
	for _, t := range scc {
		inSCC[t] = true
	}

	visited := map[LegacyTable]bool{}
	var path []LegacyTable
	var walk func(LegacyTable) bool
	walk = func(v LegacyTable) bool {
		path = append(path, v)
		visited[v] = true
		for _, w := range graph[v] {
			if w == start {
				path = append(path, start)
				return true
			}
			if inSCC[w] && !visited[w] && walk(w) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	walk(start)
	return path
}

func sortedTables(translators map[LegacyTable]Translator) []LegacyTable {
	tables := make([]LegacyTable, 0, len(translators))
	for table := range translators {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	return tables
}
