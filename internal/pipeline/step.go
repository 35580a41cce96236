package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Kind is the operation a step performs on its component.
type Kind int

const (
	RunStep Kind = iota
	BuildStep
	DeployStep
)

func (k Kind) String() string {
	switch k {
	case RunStep:
		return "run"
	case BuildStep:
		return "build"
	case DeployStep:
		return "deploy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Requires returns the capability a component needs for this kind of step.
func (k Kind) Requires() registry.Capability {
	switch k {
	case BuildStep:
		return registry.Buildable
	case DeployStep:
		return registry.Deployable
	default:
		return registry.Runnable
	}
}

// PullPolicy is the container image pull policy of a step.
type PullPolicy string

const (
	PullDefault      PullPolicy = ""
	PullAlways       PullPolicy = "Always"
	PullIfNotPresent PullPolicy = "IfNotPresent"
	PullNever        PullPolicy = "Never"
)

// ParsePullPolicy accepts the policy names used by container runtimes.
func ParsePullPolicy(s string) (PullPolicy, error) {
	switch p := PullPolicy(s); p {
	case PullDefault, PullAlways, PullIfNotPresent, PullNever:
		return p, nil
	default:
		return "", fmt.Errorf("invalid pull policy %q: must be 'Always', 'IfNotPresent' or 'Never'", s)
	}
}

// DefaultImageOutput is the output name of a build step unless overridden.
const DefaultImageOutput = "image"

// StepSpec declares an ordinary step on a runnable component.
type StepSpec struct {
	Name      string
	Component string
	Handler   string
	Params    map[string]cty.Value
	Inputs    map[string]artifact.Ref
	Outputs   []string
	// Image is the execution image. When zero and the component was built
	// earlier in the same compile, the build's image output is used.
	Image      artifact.Ref
	OutPath    string
	PullPolicy PullPolicy
	After      []string
}

// BuildSpec declares an image build of a buildable component. The step
// produces exactly one output, the image reference.
type BuildSpec struct {
	Name      string
	Component string
	// Output names the image output; DefaultImageOutput when empty.
	Output string
	Params map[string]cty.Value
	After  []string
}

// DeploySpec declares a deployment of trained models onto a deployable component.
type DeploySpec struct {
	Name      string
	Component string
	Target    string
	// Models maps logical model names to the artifacts holding them.
	Models map[string]artifact.Ref
	Params map[string]cty.Value
	After  []string
}

// Deployment is the descriptor handed to the serving infrastructure.
type Deployment struct {
	Target string
	Models map[string]artifact.Ref
}

// StepNode is a declared step. The Builder and Graph hand out copies, so
// changing a returned node never changes the pipeline.
type StepNode struct {
	Name       string
	Component  string
	Kind       Kind
	Handler    string
	Params     map[string]cty.Value
	Inputs     map[string]artifact.Ref
	Outputs    []string
	Image      artifact.Ref
	OutPath    string
	PullPolicy PullPolicy
	Deployment *Deployment
	// Config is the configured component as it was when the step was declared.
	Config registry.Component

	index int
}

// Clone returns a deep copy of the step.
func (s *StepNode) Clone() *StepNode {
	c := *s
	c.Params = maps.Clone(s.Params)
	c.Inputs = maps.Clone(s.Inputs)
	c.Outputs = slices.Clone(s.Outputs)
	c.Config = s.Config.Clone()
	if s.Deployment != nil {
		c.Deployment = &Deployment{Target: s.Deployment.Target, Models: maps.Clone(s.Deployment.Models)}
	}
	return &c
}

// Output returns the reference to one of this step's outputs, for use as an
// input of a later step. The name is not checked here; binding an output the
// step does not declare fails when the consuming step is declared.
func (s *StepNode) Output(name string) artifact.Ref {
	return artifact.StepOutput(s.Name, name)
}

// ImageRef returns the image output of a build step.
func (s *StepNode) ImageRef() artifact.Ref {
	if s.Kind != BuildStep || len(s.Outputs) == 0 {
		return artifact.Ref{}
	}
	return s.Output(s.Outputs[0])
}

// Produces reports whether the step declares the named output.
func (s *StepNode) Produces(output string) bool {
	return slices.Contains(s.Outputs, output)
}

// binding is one consumed artifact and the name it is bound under.
type binding struct {
	name string
	ref  artifact.Ref
}

// bindings lists every artifact the step consumes: the image first, then
// inputs and models by key.
func (s *StepNode) bindings() []binding {
	var out []binding
	if !s.Image.IsZero() {
		out = append(out, binding{name: "image", ref: s.Image})
	}
	for _, k := range slices.Sorted(maps.Keys(s.Inputs)) {
		out = append(out, binding{name: k, ref: s.Inputs[k]})
	}
	if s.Deployment != nil {
		for _, k := range slices.Sorted(maps.Keys(s.Deployment.Models)) {
			out = append(out, binding{name: "models." + k, ref: s.Deployment.Models[k]})
		}
	}
	return out
}

// Refs returns every artifact the step consumes, in binding order.
func (s *StepNode) Refs() []artifact.Ref {
	b := s.bindings()
	refs := make([]artifact.Ref, len(b))
	for i := range b {
		refs[i] = b[i].ref
	}
	return refs
}
