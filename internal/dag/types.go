package dag

import (
	"fmt"
	"strings"
)

// EdgeKind distinguishes why an edge exists.
type EdgeKind int

const (
	// DataEdge: the target consumes an output of the source.
	DataEdge EdgeKind = iota
	// OrderEdge: the target must run after the source, with no data flowing.
	OrderEdge
)

func (k EdgeKind) String() string {
	switch k {
	case DataEdge:
		return "data"
	case OrderEdge:
		return "order"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// Edge is a directed (from, to, kind) triple. To depends on From.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// CycleError is returned when the graph has no topological order.
type CycleError struct {
	// Node is the node at which the cycle was detected.
	Node string
	// Path lists the cycle, starting and ending with Node.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node '%s': %s", e.Node, strings.Join(e.Path, " -> "))
}

type node struct {
	id         string
	index      int
	deps       map[string]struct{}
	dependents map[string]struct{}
}

// Graph is a directed graph of string IDs.
type Graph struct {
	nodes   map[string]*node
	order   []string
	edges   []Edge
	edgeSet map[Edge]struct{}
}
