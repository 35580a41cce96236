package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func TestKind(t *testing.T) {
	assert.Equal(t, "run", RunStep.String())
	assert.Equal(t, "build", BuildStep.String())
	assert.Equal(t, "deploy", DeployStep.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())

	assert.Equal(t, registry.Runnable, RunStep.Requires())
	assert.Equal(t, registry.Buildable, BuildStep.Requires())
	assert.Equal(t, registry.Deployable, DeployStep.Requires())
}

func TestParsePullPolicy(t *testing.T) {
	for _, s := range []string{"", "Always", "IfNotPresent", "Never"} {
		p, err := ParsePullPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, PullPolicy(s), p)
	}
	_, err := ParsePullPolicy("always")
	assert.Error(t, err)
}

func TestStepNode_Refs(t *testing.T) {
	n := &StepNode{
		Name:  "deploy",
		Kind:  DeployStep,
		Image: artifact.StepOutput("build", "image"),
		Inputs: map[string]artifact.Ref{
			"b": artifact.Param("b"),
			"a": artifact.StepOutput("x", "a"),
		},
		Deployment: &Deployment{Models: map[string]artifact.Ref{"m": artifact.StepOutput("train", "model")}},
	}
	assert.Equal(t, []artifact.Ref{
		artifact.StepOutput("build", "image"),
		artifact.StepOutput("x", "a"),
		artifact.Param("b"),
		artifact.StepOutput("train", "model"),
	}, n.Refs())

	assert.True(t, (&StepNode{Kind: BuildStep, Name: "b", Outputs: []string{"img"}}).ImageRef() == artifact.StepOutput("b", "img"))
	assert.True(t, (&StepNode{Kind: RunStep, Name: "r", Outputs: []string{"img"}}).ImageRef().IsZero())
}

func TestParams(t *testing.T) {
	p := Params{
		"path":   cty.StringVal("/data"),
		"epochs": cty.NumberIntVal(3),
		"empty":  cty.NullVal(cty.String),
	}
	assert.Equal(t, "/data", p.String("path"))
	assert.Equal(t, "", p.String("epochs"))
	assert.Equal(t, "", p.String("empty"))
	assert.Equal(t, "", p.String("missing"))
	assert.Equal(t, []string{"empty", "epochs", "path"}, p.Names())

	clone := p.Clone()
	clone["path"] = cty.StringVal("/other")
	assert.Equal(t, "/data", p.String("path"))

	assert.Equal(t, cty.EmptyObjectVal, Params{}.Object())
	assert.Equal(t, "/data", p.Object().GetAttr("path").AsString())
	assert.NotNil(t, Params(nil).Clone())
}
