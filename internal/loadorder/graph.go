// Package loadorder implements the load-order producer (design component
// C10): it blends four independently computed orderings of the mod set
// into one deterministic final order, and renders the plugin list the same
// way the external sorter's result is published to the manager.
package loadorder

import "sort"

// graph is a directed "must come before" adjacency structure over mod
// identifiers: an edge a -> b means a must be ordered before b.
type graph struct {
	nodes []string
	edges map[string][]string
	index map[string]int
}

func newGraph(nodes []string) *graph {
	g := &graph{
		nodes: append([]string(nil), nodes...),
		edges: make(map[string][]string, len(nodes)),
		index: make(map[string]int, len(nodes)),
	}
	for i, n := range g.nodes {
		g.index[n] = i
	}
	return g
}

func (g *graph) addEdge(before, after string) {
	if _, ok := g.index[before]; !ok {
		return
	}
	if _, ok := g.index[after]; !ok {
		return
	}
	g.edges[before] = append(g.edges[before], after)
}

// dfsFromSinks produces a topological order by running a post-order DFS
// from every node (processed in stable input order) and reversing the
// resulting post-order sequence. Cycles are broken by skipping any edge
// back to a node currently on the DFS stack, so the walk always
// terminates and every node appears exactly once.
func (g *graph) dfsFromSinks() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.nodes))
	var postOrder []string

	var visit func(n string)
	visit = func(n string) {
		state[n] = visiting
		for _, next := range g.edges[n] {
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				continue // back edge: part of a cycle, ignored for ordering
			}
		}
		state[n] = done
		postOrder = append(postOrder, n)
	}

	for _, n := range g.nodes {
		if state[n] == unvisited {
			visit(n)
		}
	}

	order := make([]string, len(postOrder))
	for i, n := range postOrder {
		order[len(postOrder)-1-i] = n
	}
	// dfsFromSinks walks successors (must-come-before targets) last, so the
	// reversed post-order already places predecessors first; edges point
	// "before -> after" meaning before must finish (be emitted) first, which
	// this reversal satisfies since "after" nodes are visited (and thus
	// appended) before "before" returns.
	return order
}

// kahn produces a topological order via standard in-degree counting,
// breaking ties on simultaneously-ready nodes (including when a cycle
// leaves no zero-in-degree node) by input order.
func (g *graph) kahn() []string {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = 0
	}
	for _, froms := range g.edges {
		for _, to := range froms {
			inDegree[to]++
		}
	}

	remaining := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n] = true
	}

	var order []string
	for len(remaining) > 0 {
		var ready []string
		for _, n := range g.nodes {
			if remaining[n] && inDegree[n] == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			// Cycle: no zero-in-degree node remains. Break it
			// deterministically by picking the earliest remaining node in
			// input order.
			for _, n := range g.nodes {
				if remaining[n] {
					ready = append(ready, n)
					break
				}
			}
		}
		sort.SliceStable(ready, func(i, j int) bool {
			return g.index[ready[i]] < g.index[ready[j]]
		})
		for _, n := range ready {
			order = append(order, n)
			delete(remaining, n)
			for _, to := range g.edges[n] {
				if remaining[to] {
					inDegree[to]--
				}
			}
		}
	}
	return order
}
