package dag

import (
	"cmp"
	"fmt"
	"slices"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*node),
		edgeSet: make(map[Edge]struct{}),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		index:      len(g.order),
		deps:       make(map[string]struct{}),
		dependents: make(map[string]struct{}),
	}
	g.order = append(g.order, id)
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An identical
// (from, to, kind) edge is recorded once; added reports whether this call
// stored a new edge. An error is returned if either node does not exist or
// if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string, kind EdgeKind) (added bool, err error) {
	if fromID == toID {
		return false, fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return false, fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return false, fmt.Errorf("destination node not found: %s", toID)
	}

	e := Edge{From: fromID, To: toID, Kind: kind}
	if _, exists := g.edgeSet[e]; exists {
		return false, nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)

	toNode.deps[fromID] = struct{}{}
	fromNode.dependents[toID] = struct{}{}
	return true, nil
}

// Nodes returns all node IDs in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Edges returns every edge in the order it was added.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Dependencies returns the IDs the given node depends on, in insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sorted(n.deps), nil
}

// Dependents returns the IDs that depend on the given node, in insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sorted(n.dependents), nil
}

func (g *Graph) sorted(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(g.nodes[a].index, g.nodes[b].index)
	})
	return ids
}

// DetectCycles checks the graph for any cycles. It returns a *CycleError
// naming the node where the cycle was closed and the cycle path.
func (g *Graph) DetectCycles() error {
	// Classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			start := slices.Index(stack, id)
			path := append(slices.Clone(stack[start:]), id)
			return &CycleError{Node: id, Path: path}
		}

		temporary[id] = true
		stack = append(stack, id)

		for _, dependent := range g.sorted(g.nodes[id].dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.order {
		if !permanent[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort returns the node IDs so that every node follows all of its
// dependencies. Among nodes that are ready at the same time, the one added
// first comes first. A cyclic graph yields the *CycleError from DetectCycles.
func (g *Graph) TopologicalSort() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	var ready []int
	for _, id := range g.order {
		n := g.nodes[id]
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, n.index)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]
		id := g.order[idx]
		result = append(result, id)

		for dependent := range g.nodes[id].dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				di := g.nodes[dependent].index
				pos, _ := slices.BinarySearch(ready, di)
				ready = slices.Insert(ready, pos, di)
			}
		}
	}

	if len(result) != len(g.order) {
		if err := g.DetectCycles(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("internal error: topological sort incomplete without a detectable cycle")
	}
	return result, nil
}
