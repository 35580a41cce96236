package pipeline

import (
	"fmt"
	"strings"

	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/registry"
)

// CapabilityMismatchError: the component cannot perform the requested kind of step.
type CapabilityMismatchError struct {
	Step      string
	Component string
	Kind      Kind
	Has       registry.Capability
}

func (e *CapabilityMismatchError) Error() string {
	return fmt.Sprintf("step '%s': component '%s' cannot %s (capabilities: %s)", e.Step, e.Component, e.Kind, e.Has)
}

// UnresolvedArtifactError: a step consumes an artifact that no earlier step
// produced, or a parameter that was never bound.
type UnresolvedArtifactError struct {
	Step    string
	Binding string
	Ref     artifact.Ref
}

func (e *UnresolvedArtifactError) Error() string {
	what := "undeclared artifact"
	if e.Ref.IsExternal() {
		what = "unbound parameter"
	}
	return fmt.Sprintf("step '%s': binding '%s' references %s '%s'", e.Step, e.Binding, what, e.Ref)
}

// DuplicateOutputError: two steps (or one step twice) claim the same output name.
type DuplicateOutputError struct {
	Output   string
	Step     string
	Producer string
}

func (e *DuplicateOutputError) Error() string {
	if e.Step == e.Producer {
		return fmt.Sprintf("step '%s' declares output '%s' more than once", e.Step, e.Output)
	}
	return fmt.Sprintf("step '%s' declares output '%s', already produced by step '%s'", e.Step, e.Output, e.Producer)
}

// CyclicDependencyError: the steps have no topological order.
type CyclicDependencyError struct {
	Step  string
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency at step '%s': %s", e.Step, strings.Join(e.Cycle, " -> "))
}

// DuplicateStepError: a step name was declared twice.
type DuplicateStepError struct {
	Step string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step '%s' is already declared", e.Step)
}

// UnknownStepError: an ordering constraint names a step that does not exist.
type UnknownStepError struct {
	Step      string
	Reference string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("step '%s' must run after unknown step '%s'", e.Step, e.Reference)
}

// UnknownComponentError: a step targets a component missing from the registry.
type UnknownComponentError struct {
	Step      string
	Component string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("step '%s' references unknown component '%s'", e.Step, e.Component)
}

// InvalidDeploymentError: a deploy step carries no usable model binding.
type InvalidDeploymentError struct {
	Step   string
	Reason string
}

func (e *InvalidDeploymentError) Error() string {
	return fmt.Sprintf("step '%s': invalid deployment: %s", e.Step, e.Reason)
}
