package pipeline

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vk/pipecompile/internal/dag"
)

// Edge is a dependency between two steps: To runs after From.
type Edge = dag.Edge

// Graph is a compiled, validated pipeline. It is never modified after
// Finalize returns it and may be read from many goroutines.
type Graph struct {
	ID         string
	Name       string
	CompiledAt time.Time
	Params     Params

	steps    map[string]*StepNode
	sorted   []*StepNode // topological order
	topology *dag.Graph
}

// Finalize validates the declared steps and returns the compiled graph.
// The builder accepts no further declarations afterwards, whether or not
// validation succeeds.
func (b *Builder) Finalize() (*Graph, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	order, err := b.graph.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CyclicDependencyError{Step: cycleErr.Node, Cycle: cycleErr.Path}
		}
		return nil, err
	}

	// Every output has exactly one producer.
	claimed := make(map[string]string, len(b.producers))
	for _, n := range b.order {
		for _, out := range n.Outputs {
			if producer, taken := claimed[out]; taken {
				return nil, &DuplicateOutputError{Output: out, Step: n.Name, Producer: producer}
			}
			claimed[out] = n.Name
			if b.producers[out] != n.Name {
				return nil, &DuplicateOutputError{Output: out, Step: n.Name, Producer: b.producers[out]}
			}
		}
	}

	// Every consumed artifact must come from a step declared earlier.
	for _, n := range b.order {
		for _, bd := range n.bindings() {
			if bd.ref.IsExternal() {
				if _, ok := b.params[bd.ref.Param]; !ok {
					return nil, &UnresolvedArtifactError{Step: n.Name, Binding: bd.name, Ref: bd.ref}
				}
				continue
			}
			producer, ok := b.steps[bd.ref.Step]
			if !ok || producer.index >= n.index || !producer.Produces(bd.ref.Output) {
				return nil, &UnresolvedArtifactError{Step: n.Name, Binding: bd.name, Ref: bd.ref}
			}
		}
	}

	sorted := make([]*StepNode, len(order))
	for i, name := range order {
		sorted[i] = b.steps[name]
	}

	g := &Graph{
		ID:         uuid.NewString(),
		Name:       b.name,
		CompiledAt: time.Now().UTC(),
		Params:     b.params.Clone(),
		steps:      b.steps,
		sorted:     sorted,
		topology:   b.graph,
	}
	b.logger.Info("Pipeline graph finalized.", "graph_id", g.ID, "steps", len(sorted), "edges", len(b.graph.Edges()))
	return g, nil
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.sorted)
}

// Steps returns copies of the steps in a valid topological order.
func (g *Graph) Steps() []*StepNode {
	out := make([]*StepNode, len(g.sorted))
	for i, s := range g.sorted {
		out[i] = s.Clone()
	}
	return out
}

// TopologicalOrder returns the step names in a valid topological order.
func (g *Graph) TopologicalOrder() []string {
	names := make([]string, len(g.sorted))
	for i, s := range g.sorted {
		names[i] = s.Name
	}
	return names
}

// Step returns a copy of a step by name.
func (g *Graph) Step(name string) (*StepNode, bool) {
	s, ok := g.steps[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Predecessors returns the steps that must complete before name may run.
// Unknown names yield nil.
func (g *Graph) Predecessors(name string) []string {
	deps, err := g.topology.Dependencies(name)
	if err != nil {
		return nil
	}
	return deps
}

// Successors returns the steps that wait on name. Unknown names yield nil.
func (g *Graph) Successors(name string) []string {
	deps, err := g.topology.Dependents(name)
	if err != nil {
		return nil
	}
	return deps
}

// Edges returns every edge in the order it was declared.
func (g *Graph) Edges() []Edge {
	return g.topology.Edges()
}

// HasEdge reports whether an edge of the given kind links from to to.
func (g *Graph) HasEdge(from, to string, kind dag.EdgeKind) bool {
	return slices.Contains(g.topology.Edges(), Edge{From: from, To: to, Kind: kind})
}

// DeployedModel pairs a deploy step with one model binding of its descriptor.
type DeployedModel struct {
	Step   string
	Target string
	Model  string
	Source string
}

// Deployments lists the model bindings of every deploy step, in
// topological order and by model name.
func (g *Graph) Deployments() []DeployedModel {
	var out []DeployedModel
	for _, s := range g.sorted {
		if s.Deployment == nil {
			continue
		}
		for _, model := range slices.Sorted(maps.Keys(s.Deployment.Models)) {
			out = append(out, DeployedModel{
				Step:   s.Name,
				Target: s.Deployment.Target,
				Model:  model,
				Source: s.Deployment.Models[model].String(),
			})
		}
	}
	return out
}
