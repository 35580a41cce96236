package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ParamSpec declares one pipeline parameter.
type ParamSpec struct {
	Name        string
	Description string
	// Type is the required type. cty.NilType or cty.DynamicPseudoType accept any value.
	Type cty.Type
	// Default is used when no value is supplied. cty.NilVal marks the
	// parameter as required.
	Default cty.Value
}

// Required reports whether the parameter has no default.
func (p ParamSpec) Required() bool {
	return p.Default == cty.NilVal
}

// ParameterError reports a missing, unknown or mistyped parameter.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter '%s': %s", e.Param, e.Reason)
}

// BindParams resolves every declared parameter from supplied values or
// defaults and converts it to the declared type.
func BindParams(specs []ParamSpec, supplied map[string]cty.Value) (pipeline.Params, error) {
	declared := make(map[string]ParamSpec, len(specs))
	for _, s := range specs {
		if _, dup := declared[s.Name]; dup {
			return nil, &ParameterError{Param: s.Name, Reason: "declared more than once"}
		}
		declared[s.Name] = s
	}
	for _, name := range slices.Sorted(maps.Keys(supplied)) {
		if _, ok := declared[name]; !ok {
			return nil, &ParameterError{Param: name, Reason: "not declared by the pipeline"}
		}
	}

	params := make(pipeline.Params, len(specs))
	for _, s := range specs {
		v, ok := supplied[s.Name]
		if !ok {
			if s.Required() {
				return nil, &ParameterError{Param: s.Name, Reason: "no value supplied and no default"}
			}
			v = s.Default
		}
		if s.Type != cty.NilType && s.Type != cty.DynamicPseudoType {
			converted, err := convert.Convert(v, s.Type)
			if err != nil {
				return nil, &ParameterError{Param: s.Name, Reason: fmt.Sprintf("cannot use %s value as %s: %v", v.Type().FriendlyName(), s.Type.FriendlyName(), err)}
			}
			v = converted
		}
		params[s.Name] = v
	}
	return params, nil
}

// ParseAssignments turns "key=value" strings (as given on the command line)
// into string parameter values. BindParams converts them to the declared type.
func ParseAssignments(assignments []string) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter assignment %q: want key=value", a)
		}
		out[key] = cty.StringVal(value)
	}
	return out, nil
}
