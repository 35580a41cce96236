package export

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/vk/pipecompile/internal/registry"
)

// Document is the serialized form of a compiled graph. Steps appear in a
// valid topological order.
type Document struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	CompiledAt  time.Time       `json:"compiled_at" yaml:"compiled_at"`
	Params      map[string]any  `json:"params,omitempty" yaml:"params,omitempty"`
	Steps       []Step          `json:"steps" yaml:"steps"`
	Edges       []Edge          `json:"edges" yaml:"edges"`
	Deployments []DeployedModel `json:"deployments,omitempty" yaml:"deployments,omitempty"`
}

// Step is one step with its resolved bindings and configured component.
type Step struct {
	Name         string            `json:"name" yaml:"name"`
	Component    string            `json:"component" yaml:"component"`
	Kind         string            `json:"kind" yaml:"kind"`
	Handler      string            `json:"handler,omitempty" yaml:"handler,omitempty"`
	Params       map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
	Inputs       map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []string          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Image        string            `json:"image,omitempty" yaml:"image,omitempty"`
	BaseImage    string            `json:"base_image,omitempty" yaml:"base_image,omitempty"`
	OutPath      string            `json:"out_path,omitempty" yaml:"out_path,omitempty"`
	PullPolicy   string            `json:"pull_policy,omitempty" yaml:"pull_policy,omitempty"`
	Predecessors []string          `json:"predecessors,omitempty" yaml:"predecessors,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Mounts       []registry.Mount  `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	Credentials  []string          `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Deployment   *Deployment       `json:"deployment,omitempty" yaml:"deployment,omitempty"`
}

// Deployment is the serving descriptor of a deploy step.
type Deployment struct {
	Target string            `json:"target,omitempty" yaml:"target,omitempty"`
	Models map[string]string `json:"models" yaml:"models"`
}

// Edge is one precedence constraint.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Kind string `json:"kind" yaml:"kind"`
}

// DeployedModel is one model binding of a deploy step.
type DeployedModel struct {
	Step   string `json:"step" yaml:"step"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Model  string `json:"model" yaml:"model"`
	Source string `json:"source" yaml:"source"`
}

// FromGraph builds the document for g.
func FromGraph(g *pipeline.Graph) (*Document, error) {
	params, err := valueMap(g.Params)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		ID:         g.ID,
		Name:       g.Name,
		CompiledAt: g.CompiledAt,
		Params:     params,
	}

	for _, s := range g.Steps() {
		step, err := fromStep(g, s)
		if err != nil {
			return nil, err
		}
		doc.Steps = append(doc.Steps, step)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, Edge{From: e.From, To: e.To, Kind: e.Kind.String()})
	}
	for _, d := range g.Deployments() {
		doc.Deployments = append(doc.Deployments, DeployedModel(d))
	}
	return doc, nil
}

func fromStep(g *pipeline.Graph, s *pipeline.StepNode) (Step, error) {
	params, err := valueMap(s.Params)
	if err != nil {
		return Step{}, fmt.Errorf("step '%s': %w", s.Name, err)
	}
	out := Step{
		Name:         s.Name,
		Component:    s.Component,
		Kind:         s.Kind.String(),
		Handler:      s.Handler,
		Params:       params,
		Outputs:      slices.Clone(s.Outputs),
		Image:        s.Image.String(),
		BaseImage:    s.Config.Image,
		OutPath:      s.OutPath,
		PullPolicy:   string(s.PullPolicy),
		Predecessors: g.Predecessors(s.Name),
		Env:          maps.Clone(s.Config.Env),
		Mounts:       slices.Clone(s.Config.Mounts),
		Credentials:  slices.Clone(s.Config.Credentials),
	}
	if len(s.Inputs) > 0 {
		out.Inputs = make(map[string]string, len(s.Inputs))
		for k, ref := range s.Inputs {
			out.Inputs[k] = ref.String()
		}
	}
	if s.Deployment != nil {
		d := &Deployment{Target: s.Deployment.Target, Models: make(map[string]string, len(s.Deployment.Models))}
		for k, ref := range s.Deployment.Models {
			d.Models[k] = ref.String()
		}
		out.Deployment = d
	}
	return out, nil
}
