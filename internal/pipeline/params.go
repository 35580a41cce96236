package pipeline

import (
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Params are the pipeline-level values bound at compile time.
type Params map[string]cty.Value

// Get returns the named parameter.
func (p Params) Get(name string) (cty.Value, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns a string parameter, or "" when it is absent, null or not a string.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := slices.Collect(maps.Keys(p))
	slices.Sort(names)
	return names
}

// Clone returns a shallow copy; cty values are immutable.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Object returns the parameters as a cty object, for HCL evaluation contexts.
func (p Params) Object() cty.Value {
	if len(p) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(map[string]cty.Value(p))
}
