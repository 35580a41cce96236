package imageclassification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/dag"
	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.RegisterModules(&Module{}))
	return r
}

func TestRegister(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, []string{Serving, Trainer, Utils}, r.Names())

	utils, _ := r.Get(Utils)
	assert.True(t, utils.Capabilities.Has(registry.Buildable|registry.Runnable))

	assert.ErrorContains(t, r.RegisterModules(&Module{}), "module registration failed")
}

func TestPipelineCompiles(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, err := compiler.Compile(ctx, newRegistry(t), Pipeline(), nil)
	require.NoError(t, err)

	assert.Equal(t, Name, g.Name)
	assert.Equal(t, []string{"build-utils", "download", "label", "train", "deploy"}, g.TopologicalOrder())
	assert.True(t, g.HasEdge("build-utils", "download", dag.DataEdge))
	assert.True(t, g.HasEdge("build-utils", "label", dag.DataEdge))
	assert.True(t, g.HasEdge("download", "label", dag.OrderEdge))
	assert.True(t, g.HasEdge("label", "train", dag.DataEdge))
	assert.True(t, g.HasEdge("train", "deploy", dag.DataEdge))
	assert.Len(t, g.Edges(), 5)

	for _, s := range g.Steps() {
		assert.True(t, s.Config.HasMount("user"), "step %s has the user mount", s.Name)
	}

	train, _ := g.Step("train")
	assert.Equal(t, pipeline.PullAlways, train.PullPolicy)
	assert.Equal(t, "/User/mlrun/examples/images/cats_n_dogs", train.Params["data_path"].AsString())
	assert.True(t, train.Image.IsZero(), "the trainer component is not built in this pipeline")

	deploy, _ := g.Step("deploy")
	assert.Equal(t, map[string]string{
		"MODEL_CLASS":      "TFModel",
		"IMAGE_HEIGHT":     "128",
		"IMAGE_WIDTH":      "128",
		"ENABLE_EXPLAINER": "False",
	}, deploy.Config.Env)
	assert.Equal(t, ServingTarget, deploy.Deployment.Target)
	assert.Equal(t, map[string]artifact.Ref{"cat_vs_dog_v1": artifact.StepOutput("train", "model")}, deploy.Deployment.Models)
}

func TestPipelineParameters(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, err := compiler.Compile(ctx, newRegistry(t), Pipeline(), map[string]cty.Value{
		"model_name":  cty.StringVal("dogs_v2"),
		"images_path": cty.StringVal("/data/images"),
	})
	require.NoError(t, err)

	download, _ := g.Step("download")
	assert.Equal(t, "/data/images", download.OutPath)
	assert.Equal(t, "/data/images", download.Params["target_dir"].AsString())

	deploy, _ := g.Step("deploy")
	assert.Contains(t, deploy.Deployment.Models, "dogs_v2")
}

func TestPipelineWithoutServingComponent(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := registry.New()
	require.NoError(t, r.Register(registry.Component{Name: Utils, Capabilities: registry.Buildable | registry.Runnable}))
	require.NoError(t, r.Register(registry.Component{Name: Trainer, Capabilities: registry.Runnable}))

	_, err := compiler.Compile(ctx, r, Pipeline(), nil)
	assert.ErrorContains(t, err, "override targets component 'serving'")
}

func TestPipelineRejectsEmptyModelName(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	g, err := compiler.Compile(ctx, newRegistry(t), Pipeline(), map[string]cty.Value{
		"model_name": cty.StringVal(""),
	})
	assert.Nil(t, g)
	var invalid *pipeline.InvalidDeploymentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "deploy", invalid.Step)
}
