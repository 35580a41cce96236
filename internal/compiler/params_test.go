package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestBindParams(t *testing.T) {
	specs := []ParamSpec{
		{Name: "images_path", Type: cty.String},
		{Name: "epochs", Type: cty.Number, Default: cty.NumberIntVal(1)},
		{Name: "explain", Type: cty.Bool, Default: cty.False},
		{Name: "anything"},
	}

	t.Run("defaults and conversion", func(t *testing.T) {
		params, err := BindParams(specs, map[string]cty.Value{
			"images_path": cty.StringVal("/User/images"),
			"explain":     cty.StringVal("true"),
			"anything":    cty.ListVal([]cty.Value{cty.StringVal("a")}),
		})
		require.NoError(t, err)
		assert.Equal(t, "/User/images", params.String("images_path"))
		assert.True(t, params["epochs"].RawEquals(cty.NumberIntVal(1)))
		assert.True(t, params["explain"].RawEquals(cty.True))
		assert.Equal(t, cty.List(cty.String), params["anything"].Type())
	})

	t.Run("duplicate declaration", func(t *testing.T) {
		_, err := BindParams([]ParamSpec{{Name: "a", Default: cty.True}, {Name: "a", Default: cty.True}}, nil)
		var perr *ParameterError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "a", perr.Param)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := BindParams(specs, nil)
		assert.EqualError(t, err, "parameter 'images_path': no value supplied and no default")
	})

	t.Run("mistyped default", func(t *testing.T) {
		_, err := BindParams([]ParamSpec{{Name: "n", Type: cty.Number, Default: cty.StringVal("x")}}, nil)
		assert.ErrorContains(t, err, "parameter 'n': cannot use string value as number")
	})
}

func TestParamSpecRequired(t *testing.T) {
	assert.True(t, ParamSpec{Name: "a"}.Required())
	assert.False(t, ParamSpec{Name: "a", Default: cty.StringVal("")}.Required())
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"model_name=dogs", "path=/a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]cty.Value{
		"model_name": cty.StringVal("dogs"),
		"path":       cty.StringVal("/a=b"),
		"empty":      cty.StringVal(""),
	}, got)

	for _, bad := range []string{"novalue", "=x", " =x"} {
		_, err := ParseAssignments([]string{bad})
		assert.Error(t, err, bad)
	}
}
