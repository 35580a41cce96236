package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/dag"
	"github.com/vk/pipecompile/internal/registry"
)

// ErrFinalized is returned by declarations made after Finalize.
var ErrFinalized = errors.New("pipeline builder already finalized")

// Builder declares the steps of one compile. It is not safe for concurrent use.
type Builder struct {
	name     string
	logger   *slog.Logger
	registry *registry.Registry
	params   Params

	graph *dag.Graph
	steps map[string]*StepNode
	order []*StepNode

	// producers maps each claimed output name to its producing step.
	producers map[string]string
	// images maps a component to the image output of its latest build step.
	images map[string]artifact.Ref

	finalized bool
}

// NewBuilder creates a builder over a configured registry and bound parameters.
func NewBuilder(ctx context.Context, name string, reg *registry.Registry, params Params) *Builder {
	return &Builder{
		name:      name,
		logger:    ctxlog.FromContext(ctx).With("pipeline", name),
		registry:  reg,
		params:    params.Clone(),
		graph:     dag.New(),
		steps:     make(map[string]*StepNode),
		producers: make(map[string]string),
		images:    make(map[string]artifact.Ref),
	}
}

// Params returns the bound pipeline parameters.
func (b *Builder) Params() Params {
	return b.params.Clone()
}

// Step returns a copy of a declared step.
func (b *Builder) Step(name string) (*StepNode, bool) {
	s, ok := b.steps[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Run declares an ordinary step on a runnable component.
func (b *Builder) Run(spec StepSpec) (*StepNode, error) {
	n := &StepNode{
		Name:       spec.Name,
		Component:  spec.Component,
		Kind:       RunStep,
		Handler:    spec.Handler,
		Params:     maps.Clone(spec.Params),
		Inputs:     maps.Clone(spec.Inputs),
		Outputs:    slices.Clone(spec.Outputs),
		Image:      spec.Image,
		OutPath:    spec.OutPath,
		PullPolicy: spec.PullPolicy,
	}
	if n.Image.IsZero() {
		if img, ok := b.images[spec.Component]; ok {
			b.logger.Debug("Using image built earlier in this pipeline.", "step", spec.Name, "image", img.String())
			n.Image = img
		}
	}
	return b.declare(n, spec.After)
}

// Build declares the image build of a buildable component. Its single
// output is the image reference, which later run steps on the same
// component pick up automatically.
func (b *Builder) Build(spec BuildSpec) (*StepNode, error) {
	output := spec.Output
	if output == "" {
		output = DefaultImageOutput
	}
	name := spec.Name
	if name == "" {
		name = "build-" + spec.Component
	}
	n := &StepNode{
		Name:      name,
		Component: spec.Component,
		Kind:      BuildStep,
		Params:    maps.Clone(spec.Params),
		Outputs:   []string{output},
	}
	return b.declare(n, spec.After)
}

// Deploy declares the deployment of trained models on a deployable
// component. The step depends on every producer named in spec.Models.
func (b *Builder) Deploy(spec DeploySpec) (*StepNode, error) {
	name := spec.Name
	if name == "" {
		name = "deploy-" + spec.Component
	}
	n := &StepNode{
		Name:      name,
		Component: spec.Component,
		Kind:      DeployStep,
		Params:    maps.Clone(spec.Params),
		Deployment: &Deployment{
			Target: spec.Target,
			Models: maps.Clone(spec.Models),
		},
	}
	return b.declare(n, spec.After)
}

// After adds explicit order edges so that step runs after each predecessor,
// whether or not data flows between them. Predecessors may be declared
// after step; the resulting order is checked by Finalize.
func (b *Builder) After(step string, predecessors ...string) error {
	if b.finalized {
		return ErrFinalized
	}
	if _, ok := b.steps[step]; !ok {
		return &UnknownStepError{Step: step, Reference: step}
	}
	for _, p := range predecessors {
		if _, ok := b.steps[p]; !ok {
			return &UnknownStepError{Step: step, Reference: p}
		}
	}
	for _, p := range predecessors {
		if err := b.link(p, step, dag.OrderEdge); err != nil {
			return err
		}
	}
	return nil
}

// declare validates n completely before touching any builder state, so a
// failed declaration leaves the builder as it was.
func (b *Builder) declare(n *StepNode, after []string) (*StepNode, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	logger := b.logger.With("step", n.Name, "kind", n.Kind.String())

	if !artifact.ValidName(n.Name) {
		return nil, fmt.Errorf("invalid step name %q", n.Name)
	}
	if _, exists := b.steps[n.Name]; exists {
		return nil, &DuplicateStepError{Step: n.Name}
	}

	comp, ok := b.registry.Get(n.Component)
	if !ok {
		return nil, &UnknownComponentError{Step: n.Name, Component: n.Component}
	}
	if !comp.Capabilities.Has(n.Kind.Requires()) {
		return nil, &CapabilityMismatchError{Step: n.Name, Component: n.Component, Kind: n.Kind, Has: comp.Capabilities}
	}
	n.Config = comp
	if n.Kind == DeployStep {
		if err := validDeployment(n); err != nil {
			return nil, err
		}
	}

	if err := b.claimable(n); err != nil {
		return nil, err
	}
	bindings := n.bindings()
	for _, bd := range bindings {
		if err := b.resolve(n.Name, bd); err != nil {
			return nil, err
		}
	}
	for _, p := range after {
		if _, ok := b.steps[p]; !ok {
			return nil, &UnknownStepError{Step: n.Name, Reference: p}
		}
	}
	if n.Kind == RunStep && n.PullPolicy != PullDefault {
		if _, err := ParsePullPolicy(string(n.PullPolicy)); err != nil {
			return nil, fmt.Errorf("step '%s': %w", n.Name, err)
		}
	}

	n.index = len(b.order)
	b.steps[n.Name] = n
	b.order = append(b.order, n)
	b.graph.AddNode(n.Name)
	for _, out := range n.Outputs {
		b.producers[out] = n.Name
	}
	if n.Kind == BuildStep {
		b.images[n.Component] = n.ImageRef()
	}

	for _, bd := range bindings {
		if bd.ref.IsExternal() {
			continue
		}
		if err := b.link(bd.ref.Step, n.Name, dag.DataEdge); err != nil {
			return nil, err
		}
	}
	for _, p := range after {
		if err := b.link(p, n.Name, dag.OrderEdge); err != nil {
			return nil, err
		}
	}

	logger.Debug("Declared step.", "component", n.Component, "inputs", len(n.Inputs), "outputs", n.Outputs)
	return n.Clone(), nil
}

func validDeployment(n *StepNode) error {
	if n.Deployment == nil || len(n.Deployment.Models) == 0 {
		return &InvalidDeploymentError{Step: n.Name, Reason: "no models bound"}
	}
	for name := range n.Deployment.Models {
		if strings.TrimSpace(name) == "" {
			return &InvalidDeploymentError{Step: n.Name, Reason: "model name is empty"}
		}
	}
	return nil
}

// claimable checks that every output name is new to the graph.
func (b *Builder) claimable(n *StepNode) error {
	seen := make(map[string]struct{}, len(n.Outputs))
	for _, out := range n.Outputs {
		if !artifact.ValidName(out) {
			return fmt.Errorf("step '%s': invalid output name %q", n.Name, out)
		}
		if _, dup := seen[out]; dup {
			return &DuplicateOutputError{Output: out, Step: n.Name, Producer: n.Name}
		}
		seen[out] = struct{}{}
		if producer, taken := b.producers[out]; taken {
			return &DuplicateOutputError{Output: out, Step: n.Name, Producer: producer}
		}
	}
	return nil
}

// resolve checks that a binding points at a bound parameter or at an output
// of an already declared step.
func (b *Builder) resolve(step string, bd binding) error {
	if err := bd.ref.Validate(); err != nil {
		return fmt.Errorf("step '%s': binding '%s': %w", step, bd.name, err)
	}
	if bd.ref.IsExternal() {
		if _, ok := b.params[bd.ref.Param]; !ok {
			return &UnresolvedArtifactError{Step: step, Binding: bd.name, Ref: bd.ref}
		}
		return nil
	}
	producer, ok := b.steps[bd.ref.Step]
	if !ok || !producer.Produces(bd.ref.Output) {
		return &UnresolvedArtifactError{Step: step, Binding: bd.name, Ref: bd.ref}
	}
	return nil
}

func (b *Builder) link(from, to string, kind dag.EdgeKind) error {
	added, err := b.graph.AddEdge(from, to, kind)
	if err != nil {
		return fmt.Errorf("error linking %s dependency %s -> %s: %w", kind, from, to, err)
	}
	if added {
		b.logger.Debug("Linked dependency.", "from", from, "to", to, "kind", kind.String())
	}
	return nil
}
