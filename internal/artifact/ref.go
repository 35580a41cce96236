package artifact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Root names used in the canonical form.
const (
	StepRoot  = "step"
	ParamRoot = "param"
)

// nameRegex validates a single step, output or parameter name.
var nameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// ValidName reports whether name can be used for a step, an output or a
// parameter.
func ValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// Ref identifies an artifact consumed by a step. The zero value is invalid.
type Ref struct {
	// Step is the producing step. Empty for external parameters.
	Step string
	// Output is the output name on the producing step. Empty for external parameters.
	Output string
	// Param is the pipeline parameter name. Set only for external refs.
	Param string
}

// StepOutput returns a reference to an output of a step.
func StepOutput(step, output string) Ref {
	return Ref{Step: step, Output: output}
}

// Param returns a reference to an externally supplied pipeline parameter.
func Param(name string) Ref {
	return Ref{Param: name}
}

// IsExternal reports whether the ref is sourced from pipeline parameters.
func (r Ref) IsExternal() bool {
	return r.Param != ""
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

// String renders the canonical form.
func (r Ref) String() string {
	if r.IsExternal() {
		return ParamRoot + "." + r.Param
	}
	if r.IsZero() {
		return ""
	}
	return StepRoot + "." + r.Step + "." + r.Output
}

// Validate checks that every populated name is well formed and that the ref
// is exactly one of the two shapes.
func (r Ref) Validate() error {
	switch {
	case r.IsZero():
		return fmt.Errorf("artifact reference is empty")
	case r.IsExternal():
		if r.Step != "" || r.Output != "" {
			return fmt.Errorf("artifact reference %q mixes parameter and step output", r.Param)
		}
		if !nameRegex.MatchString(r.Param) {
			return fmt.Errorf("invalid parameter name: %q", r.Param)
		}
	default:
		if !nameRegex.MatchString(r.Step) {
			return fmt.Errorf("invalid step name: %q", r.Step)
		}
		if !nameRegex.MatchString(r.Output) {
			return fmt.Errorf("invalid output name: %q", r.Output)
		}
	}
	return nil
}

// Parse creates a Ref from its canonical string representation.
func Parse(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("artifact reference cannot be empty")
	}

	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if s == "" {
			return Ref{}, fmt.Errorf("artifact reference %q contains empty segment", raw)
		}
	}

	var ref Ref
	switch {
	case segments[0] == StepRoot && len(segments) == 3:
		ref = StepOutput(segments[1], segments[2])
	case segments[0] == ParamRoot && len(segments) == 2:
		ref = Param(segments[1])
	default:
		return Ref{}, fmt.Errorf("invalid artifact reference %q: want step.<step>.<output> or param.<name>", raw)
	}

	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// FromTraversal converts an absolute HCL traversal such as
// step.label.categories_map or param.model_name into a Ref.
func FromTraversal(traversal hcl.Traversal) (Ref, error) {
	if len(traversal) == 0 || traversal.IsRelative() {
		return Ref{}, fmt.Errorf("artifact reference must be an absolute traversal")
	}

	names := make([]string, 0, len(traversal))
	names = append(names, traversal.RootName())
	for _, step := range traversal[1:] {
		attr, ok := step.(hcl.TraverseAttr)
		if !ok {
			return Ref{}, fmt.Errorf("artifact reference %s: only attribute access is supported", formatTraversal(traversal))
		}
		names = append(names, attr.Name)
	}

	return Parse(strings.Join(names, "."))
}

func formatTraversal(traversal hcl.Traversal) string {
	var sb strings.Builder
	for _, step := range traversal {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(s.Name)
		case hcl.TraverseAttr:
			sb.WriteString("." + s.Name)
		case hcl.TraverseIndex:
			sb.WriteString("[" + s.Key.GoString() + "]")
		default:
			sb.WriteString(".?")
		}
	}
	return sb.String()
}
