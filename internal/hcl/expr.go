package hcl

import (
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/pipecompile/internal/artifact"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// remainingAttributes returns the attributes left in body, rejecting any
// name not in allowed.
func remainingAttributes(body hcl.Body, allowed ...string) (hcl.Attributes, error) {
	if body == nil {
		return hcl.Attributes{}, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		if !slices.Contains(allowed, name) {
			return nil, fmt.Errorf("%s: unsupported attribute %q", attr.NameRange, name)
		}
	}
	return attrs, nil
}

// refFromExpr reads an artifact reference from a bare traversal expression.
func refFromExpr(expr hcl.Expression) (artifact.Ref, error) {
	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() {
		return artifact.Ref{}, fmt.Errorf("%s: expected a reference like step.<name>.<output> or param.<name>", expr.Range())
	}
	ref, err := artifact.FromTraversal(traversal)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return ref, nil
}

// refMapFromExpr reads an object of references. Keys are evaluated against
// evalCtx, so `(param.model_name) = step.train.model` uses the parameter's value.
func refMapFromExpr(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]artifact.Ref, error) {
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]artifact.Ref, len(pairs))
	for _, pair := range pairs {
		key, err := stringValue(pair.Key, evalCtx)
		if err != nil {
			return nil, err
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%s: duplicate key %q", pair.Key.Range(), key)
		}
		ref, err := refFromExpr(pair.Value)
		if err != nil {
			return nil, err
		}
		out[key] = ref
	}
	return out, nil
}

func stringValue(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	v, err := convert.Convert(v, cty.String)
	if err != nil || v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("%s: expected a string", expr.Range())
	}
	return v.AsString(), nil
}

// valueMap evaluates an object or map expression into its attributes.
func valueMap(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("%s: expected an object, got %s", expr.Range(), ty.FriendlyName())
	}
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("%s: value must be known and not null", expr.Range())
	}
	return v.AsValueMap(), nil
}
