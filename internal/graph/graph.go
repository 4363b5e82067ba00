// Package graph builds the table dependency graph of a schema, where each
// foreign key is an edge from the referencing to the referenced table,
// and breaks reference cycles so the tables can be emitted in order.
package graph

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/tordrt/fkschema/internal/fk"
)

// Graph holds tables as nodes and an arena of constraint edges. Each edge
// is either inline (it constrains the emission order) or deferred.
type Graph struct {
	nodes    []string
	index    map[string]int
	edges    []*fk.ForeignKey
	inline   []bool
	deferred []int
	logger   *slog.Logger
}

// Build returns a graph over tables with one edge per constraint. Edges
// referencing a table outside the set are kept inline but take no part
// in ordering.
func Build(tables []string, fks []*fk.ForeignKey) *Graph {
	nodes := slices.Clone(tables)
	sort.Strings(nodes)
	nodes = slices.Compact(nodes)

	g := &Graph{
		nodes:  nodes,
		index:  make(map[string]int, len(nodes)),
		edges:  slices.Clone(fks),
		inline: make([]bool, len(fks)),
		logger: slog.Default(),
	}
	for i, n := range nodes {
		g.index[n] = i
	}
	for i := range g.inline {
		g.inline[i] = true
	}
	return g
}

// WithLogger sets the logger used to report deferred edges.
func (g *Graph) WithLogger(l *slog.Logger) *Graph {
	if l != nil {
		g.logger = l
	}
	return g
}

// ordering reports whether edge i takes part in ordering: it is inline,
// not a self-reference, and both ends are nodes of the graph.
func (g *Graph) ordering(i int) (from, to int, ok bool) {
	if !g.inline[i] {
		return 0, 0, false
	}
	e := g.edges[i]
	if e.SelfReferential() {
		return 0, 0, false
	}
	from, okFrom := g.index[e.FromTable]
	to, okTo := g.index[e.ToTable]
	return from, to, okFrom && okTo
}

// adjacency returns, per node, the sorted distinct targets of its
// ordering edges.
func (g *Graph) adjacency() [][]int {
	adj := make([][]int, len(g.nodes))
	for i := range g.edges {
		from, to, ok := g.ordering(i)
		if !ok {
			continue
		}
		adj[from] = append(adj[from], to)
	}
	for i := range adj {
		sort.Ints(adj[i])
		adj[i] = slices.Compact(adj[i])
	}
	return adj
}

// StronglyConnectedComponents returns the components of the inline edge
// graph, using Tarjan's algorithm over nodes and neighbours in lexical
// order. Members of a component are sorted. Self-references do not make
// a component cyclic.
func (g *Graph) StronglyConnectedComponents() [][]string {
	adj := g.adjacency()
	n := len(g.nodes)

	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		stack      []int
		next       int
		components [][]string
	)

	var connect func(v int)
	connect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] < 0 {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var component []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, g.nodes[w])
			if w == v {
				break
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}

	for v := range g.nodes {
		if index[v] < 0 {
			connect(v)
		}
	}
	return components
}

// Cyclic reports whether any component has more than one member.
func (g *Graph) Cyclic() bool {
	return len(cyclicComponents(g.StronglyConnectedComponents())) > 0
}

func cyclicComponents(components [][]string) [][]string {
	var cyclic [][]string
	for _, c := range components {
		if len(c) > 1 {
			cyclic = append(cyclic, c)
		}
	}
	return cyclic
}

// InlineEdges returns the edges still inline, in arena order.
func (g *Graph) InlineEdges() []*fk.ForeignKey {
	var out []*fk.ForeignKey
	for i, e := range g.edges {
		if g.inline[i] {
			out = append(out, e)
		}
	}
	return out
}

// DeferredEdges returns the deferred edges in the order they were
// deferred.
func (g *Graph) DeferredEdges() []*fk.ForeignKey {
	out := make([]*fk.ForeignKey, len(g.deferred))
	for i, idx := range g.deferred {
		out[i] = g.edges[idx]
	}
	return out
}

// TopologicalOrder returns the nodes so that every table comes after the
// tables its inline edges reference. Ties are broken lexically. Nodes
// left on a cycle, if any, are appended in lexical order.
func (g *Graph) TopologicalOrder() []string {
	adj := g.adjacency()
	n := len(g.nodes)

	pending := make([]int, n)
	dependents := make([][]int, n)
	for v, targets := range adj {
		pending[v] = len(targets)
		for _, w := range targets {
			dependents[w] = append(dependents[w], v)
		}
	}

	var ready []int
	for v := range g.nodes {
		if pending[v] == 0 {
			ready = append(ready, v)
		}
	}

	order := make([]string, 0, n)
	emitted := make([]bool, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		v := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[v])
		emitted[v] = true
		for _, d := range dependents[v] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	for v, done := range emitted {
		if !done {
			order = append(order, g.nodes[v])
		}
	}
	return order
}
