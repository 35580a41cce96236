package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/dag"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register(registry.Component{Name: "utils", Capabilities: registry.Buildable | registry.Runnable, Image: "mlrun/mlrun"}))
	require.NoError(t, r.Register(registry.Component{Name: "trainer", Capabilities: registry.Runnable}))
	require.NoError(t, r.Register(registry.Component{Name: "serving", Capabilities: registry.Deployable}))
	return r
}

func testParams() Params {
	return Params{
		"image_archive": cty.StringVal("http://iguazio-sample-data.s3.amazonaws.com/catsndogs.zip"),
		"images_path":   cty.StringVal("/User/mlrun/examples/images"),
		"source_dir":    cty.StringVal("/User/mlrun/examples/images/cats_n_dogs"),
		"model_name":    cty.StringVal("cat_vs_dog_v1"),
	}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(ctxlog.Discard(context.Background()), "test", testRegistry(t), testParams())
}

// declareImageClassification declares the five-stage scenario and returns
// the builder for further assertions.
func declareImageClassification(t *testing.T, b *Builder) {
	t.Helper()
	params := b.Params()

	build, err := b.Build(BuildSpec{Name: "build", Component: "utils"})
	require.NoError(t, err)

	download, err := b.Run(StepSpec{
		Name:      "download",
		Component: "utils",
		Handler:   "open_archive",
		Image:     build.ImageRef(),
		OutPath:   params.String("images_path"),
		Params:    map[string]cty.Value{"target_dir": params["images_path"]},
		Inputs:    map[string]artifact.Ref{"archive_url": artifact.Param("image_archive")},
		Outputs:   []string{"content"},
	})
	require.NoError(t, err)

	label, err := b.Run(StepSpec{
		Name:      "label",
		Component: "utils",
		Handler:   "categories_map_builder",
		Params:    map[string]cty.Value{"source_dir": params["source_dir"]},
		Outputs:   []string{"categories_map", "file_categories"},
		After:     []string{download.Name},
	})
	require.NoError(t, err)

	train, err := b.Run(StepSpec{
		Name:      "train",
		Component: "trainer",
		Params:    map[string]cty.Value{"epochs": cty.NumberIntVal(1)},
		Inputs: map[string]artifact.Ref{
			"categories_map":  label.Output("categories_map"),
			"file_categories": label.Output("file_categories"),
		},
		Outputs:    []string{"model"},
		PullPolicy: PullAlways,
	})
	require.NoError(t, err)

	_, err = b.Deploy(DeploySpec{
		Name:      "deploy",
		Component: "serving",
		Target:    "nuclio-serving",
		Models:    map[string]artifact.Ref{params.String("model_name"): train.Output("model")},
	})
	require.NoError(t, err)
}

func TestImageClassificationScenario(t *testing.T) {
	b := newTestBuilder(t)
	declareImageClassification(t, b)

	g, err := b.Finalize()
	require.NoError(t, err)

	assert.Equal(t, 5, g.Len())
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, []string{"build", "download", "label", "train", "deploy"}, g.TopologicalOrder())

	assert.True(t, g.HasEdge("build", "download", dag.DataEdge))
	assert.True(t, g.HasEdge("download", "label", dag.OrderEdge))
	assert.False(t, g.HasEdge("download", "label", dag.DataEdge))
	assert.True(t, g.HasEdge("label", "train", dag.DataEdge))
	assert.True(t, g.HasEdge("train", "deploy", dag.DataEdge))

	assert.Equal(t, []string{"label"}, g.Predecessors("train"))
	assert.Equal(t, []string{"label"}, g.Successors("download"))
	assert.Equal(t, []string{"build", "download"}, g.Predecessors("label"))
	assert.Nil(t, g.Predecessors("nope"))

	label, ok := g.Step("label")
	require.True(t, ok)
	assert.Equal(t, artifact.StepOutput("build", "image"), label.Image, "label reuses the utils image built earlier")

	train, _ := g.Step("train")
	assert.Equal(t, PullAlways, train.PullPolicy)
	assert.Equal(t, RunStep, train.Kind)

	assert.Equal(t, []DeployedModel{{
		Step:   "deploy",
		Target: "nuclio-serving",
		Model:  "cat_vs_dog_v1",
		Source: "step.train.model",
	}}, g.Deployments())
}

func TestMissingArtifactScenario(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Run(StepSpec{Name: "label", Component: "utils", Outputs: []string{"file_categories"}})
	require.NoError(t, err)

	_, err = b.Run(StepSpec{
		Name:      "train",
		Component: "trainer",
		Inputs:    map[string]artifact.Ref{"categories_map": artifact.StepOutput("label", "categories_map")},
		Outputs:   []string{"model"},
	})
	var unresolved *UnresolvedArtifactError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "train", unresolved.Step)
	assert.Equal(t, "categories_map", unresolved.Ref.Output)
	assert.ErrorContains(t, err, "categories_map")

	_, ok := b.Step("train")
	assert.False(t, ok, "a failed declaration registers nothing")
}

func TestDuplicateOutputScenario(t *testing.T) {
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		t.Run(fmt.Sprintf("%s first", order[0]), func(t *testing.T) {
			b := newTestBuilder(t)
			_, err := b.Run(StepSpec{Name: order[0], Component: "trainer", Outputs: []string{"model"}})
			require.NoError(t, err)
			_, err = b.Run(StepSpec{Name: order[1], Component: "utils", Outputs: []string{"metrics", "model"}})

			var dup *DuplicateOutputError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, "model", dup.Output)
			assert.Equal(t, order[1], dup.Step)
			assert.Equal(t, order[0], dup.Producer)
			assert.ErrorContains(t, err, "model")

			// The failed step claimed nothing, so "metrics" is still free.
			_, err = b.Run(StepSpec{Name: "c", Component: "utils", Outputs: []string{"metrics"}})
			assert.NoError(t, err)
		})
	}

	t.Run("same step twice", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Run(StepSpec{Name: "a", Component: "trainer", Outputs: []string{"model", "model"}})
		var dup *DuplicateOutputError
		require.True(t, errors.As(err, &dup))
		assert.ErrorContains(t, err, "more than once")
	})

	t.Run("two builds need distinct image outputs", func(t *testing.T) {
		r := testRegistry(t)
		require.NoError(t, r.Register(registry.Component{Name: "tools", Capabilities: registry.Buildable}))
		b := NewBuilder(ctxlog.Discard(context.Background()), "test", r, nil)

		_, err := b.Build(BuildSpec{Component: "utils"})
		require.NoError(t, err)
		_, err = b.Build(BuildSpec{Component: "tools"})
		var dup *DuplicateOutputError
		require.True(t, errors.As(err, &dup))

		tools, err := b.Build(BuildSpec{Component: "tools", Output: "tools_image"})
		require.NoError(t, err)
		assert.Equal(t, "build-tools", tools.Name)
		assert.Equal(t, artifact.StepOutput("build-tools", "tools_image"), tools.ImageRef())
	})
}

func TestCapabilityMismatch(t *testing.T) {
	testCases := []struct {
		name    string
		declare func(b *Builder) error
		kind    Kind
	}{
		{
			name: "build on runnable-only component",
			declare: func(b *Builder) error {
				_, err := b.Build(BuildSpec{Component: "trainer"})
				return err
			},
			kind: BuildStep,
		},
		{
			name: "run on deployable component",
			declare: func(b *Builder) error {
				_, err := b.Run(StepSpec{Name: "serve", Component: "serving"})
				return err
			},
			kind: RunStep,
		},
		{
			name: "deploy on buildable component",
			declare: func(b *Builder) error {
				_, err := b.Deploy(DeploySpec{Component: "utils"})
				return err
			},
			kind: DeployStep,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.declare(newTestBuilder(t))
			var mismatch *CapabilityMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tc.kind, mismatch.Kind)
		})
	}
}

func TestDeclarationErrors(t *testing.T) {
	t.Run("unknown component", func(t *testing.T) {
		_, err := newTestBuilder(t).Run(StepSpec{Name: "x", Component: "missing"})
		var unknown *UnknownComponentError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "missing", unknown.Component)
	})

	t.Run("duplicate step", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Run(StepSpec{Name: "x", Component: "utils"})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "x", Component: "utils"})
		var dup *DuplicateStepError
		assert.True(t, errors.As(err, &dup))
	})

	t.Run("invalid step name", func(t *testing.T) {
		_, err := newTestBuilder(t).Run(StepSpec{Name: "a.b", Component: "utils"})
		assert.ErrorContains(t, err, "invalid step name")
	})

	t.Run("unbound parameter", func(t *testing.T) {
		_, err := newTestBuilder(t).Run(StepSpec{
			Name:      "x",
			Component: "utils",
			Inputs:    map[string]artifact.Ref{"url": artifact.Param("nope")},
		})
		var unresolved *UnresolvedArtifactError
		require.True(t, errors.As(err, &unresolved))
		assert.ErrorContains(t, err, "unbound parameter 'param.nope'")
	})

	t.Run("output referenced before its producer is declared", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Run(StepSpec{
			Name:      "train",
			Component: "trainer",
			Inputs:    map[string]artifact.Ref{"data": artifact.StepOutput("prep", "data")},
		})
		var unresolved *UnresolvedArtifactError
		require.True(t, errors.As(err, &unresolved))

		_, err = b.Run(StepSpec{Name: "prep", Component: "utils", Outputs: []string{"data"}})
		assert.NoError(t, err)
	})

	t.Run("after unknown step", func(t *testing.T) {
		_, err := newTestBuilder(t).Run(StepSpec{Name: "x", Component: "utils", After: []string{"ghost"}})
		var unknown *UnknownStepError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "ghost", unknown.Reference)
	})

	t.Run("invalid pull policy", func(t *testing.T) {
		_, err := newTestBuilder(t).Run(StepSpec{Name: "x", Component: "utils", PullPolicy: "Sometimes"})
		assert.ErrorContains(t, err, "invalid pull policy")
	})

	t.Run("declarations after finalize", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Finalize()
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "x", Component: "utils"})
		assert.ErrorIs(t, err, ErrFinalized)
		assert.ErrorIs(t, b.After("x", "y"), ErrFinalized)
		_, err = b.Finalize()
		assert.ErrorIs(t, err, ErrFinalized)
	})
}

func TestAfter(t *testing.T) {
	t.Run("explicit and data edges coexist", func(t *testing.T) {
		b := newTestBuilder(t)
		a, err := b.Run(StepSpec{Name: "a", Component: "utils", Outputs: []string{"out"}})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "b", Component: "trainer", Inputs: map[string]artifact.Ref{"in": a.Output("out")}})
		require.NoError(t, err)
		require.NoError(t, b.After("b", "a"))
		require.NoError(t, b.After("b", "a"))

		g, err := b.Finalize()
		require.NoError(t, err)
		assert.Equal(t, []Edge{
			{From: "a", To: "b", Kind: dag.DataEdge},
			{From: "a", To: "b", Kind: dag.OrderEdge},
		}, g.Edges())
		assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	})

	t.Run("ordering against a later step creates a cycle", func(t *testing.T) {
		b := newTestBuilder(t)
		a, err := b.Run(StepSpec{Name: "a", Component: "utils", Outputs: []string{"out"}})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "b", Component: "trainer", Inputs: map[string]artifact.Ref{"in": a.Output("out")}})
		require.NoError(t, err)
		require.NoError(t, b.After("a", "b"))

		g, err := b.Finalize()
		assert.Nil(t, g)
		var cyclic *CyclicDependencyError
		require.True(t, errors.As(err, &cyclic))
		assert.Equal(t, "a", cyclic.Step)
		assert.Equal(t, []string{"a", "b", "a"}, cyclic.Cycle)
	})

	t.Run("unknown steps", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Run(StepSpec{Name: "a", Component: "utils"})
		require.NoError(t, err)

		var unknown *UnknownStepError
		assert.True(t, errors.As(b.After("a", "ghost"), &unknown))
		assert.True(t, errors.As(b.After("ghost", "a"), &unknown))
		assert.ErrorContains(t, b.After("a", "a"), "self-referential")
	})
}

// TestRandomDeclarations checks, over many generated pipelines, that every
// compiled graph sorts and that each producer precedes its consumers.
func TestRandomDeclarations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for iter := range 200 {
		b := newTestBuilder(t)
		var outputs []artifact.Ref

		steps := 1 + rng.IntN(12)
		for i := range steps {
			inputs := map[string]artifact.Ref{}
			for j, ref := range outputs {
				if rng.IntN(3) == 0 {
					inputs[fmt.Sprintf("in%d", j)] = ref
				}
			}
			var after []string
			if i > 0 && rng.IntN(4) == 0 {
				after = append(after, fmt.Sprintf("s%d", rng.IntN(i)))
			}
			out := fmt.Sprintf("o%d", i)
			n, err := b.Run(StepSpec{
				Name:      fmt.Sprintf("s%d", i),
				Component: "utils",
				Inputs:    inputs,
				Outputs:   []string{out},
				After:     after,
			})
			require.NoError(t, err)
			outputs = append(outputs, n.Output(out))
		}

		g, err := b.Finalize()
		require.NoError(t, err, "iteration %d", iter)

		order := g.TopologicalOrder()
		require.Len(t, order, steps)
		for _, s := range g.Steps() {
			for _, ref := range s.Refs() {
				if ref.IsExternal() {
					continue
				}
				assert.True(t, g.HasEdge(ref.Step, s.Name, dag.DataEdge))
				assert.Less(t, slices.Index(order, ref.Step), slices.Index(order, s.Name))
			}
		}
		for _, e := range g.Edges() {
			assert.Less(t, slices.Index(order, e.From), slices.Index(order, e.To))
		}
	}
}

func TestReturnedStepsAreCopies(t *testing.T) {
	b := newTestBuilder(t)
	a, err := b.Run(StepSpec{Name: "a", Component: "utils", Outputs: []string{"x"}})
	require.NoError(t, err)

	a.Outputs = append(a.Outputs, "model")
	a.Inputs = map[string]artifact.Ref{"ghost": artifact.StepOutput("ghost", "out")}

	c, err := b.Run(StepSpec{Name: "c", Component: "trainer", Outputs: []string{"model"}})
	require.NoError(t, err, "changing a returned node does not claim outputs")

	g, err := b.Finalize()
	require.NoError(t, err)

	stored, ok := g.Step("a")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, stored.Outputs)
	assert.Empty(t, stored.Inputs)

	c.Outputs[0] = "changed"
	again, _ := g.Step("c")
	assert.Equal(t, []string{"model"}, again.Outputs)

	steps := g.Steps()
	steps[0].Params = map[string]cty.Value{"k": cty.True}
	first, _ := g.Step(steps[0].Name)
	assert.Empty(t, first.Params)
}

func TestFinalizeChecksWholeGraph(t *testing.T) {
	t.Run("input rebound to a later step", func(t *testing.T) {
		b := newTestBuilder(t)
		a, err := b.Run(StepSpec{Name: "a", Component: "utils", Outputs: []string{"data"}})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "b", Component: "trainer", Inputs: map[string]artifact.Ref{"in": a.Output("data")}})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "c", Component: "utils", Outputs: []string{"late"}})
		require.NoError(t, err)

		b.steps["b"].Inputs["in"] = artifact.StepOutput("c", "late")

		g, err := b.Finalize()
		assert.Nil(t, g)
		var unresolved *UnresolvedArtifactError
		require.True(t, errors.As(err, &unresolved))
		assert.Equal(t, "b", unresolved.Step)
		assert.Equal(t, "in", unresolved.Binding)
	})

	t.Run("output claimed twice", func(t *testing.T) {
		b := newTestBuilder(t)
		_, err := b.Run(StepSpec{Name: "a", Component: "utils", Outputs: []string{"x"}})
		require.NoError(t, err)
		_, err = b.Run(StepSpec{Name: "c", Component: "trainer", Outputs: []string{"model"}})
		require.NoError(t, err)

		b.steps["a"].Outputs = append(b.steps["a"].Outputs, "model")

		g, err := b.Finalize()
		assert.Nil(t, g)
		var dup *DuplicateOutputError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "model", dup.Output)
		assert.Equal(t, "a", dup.Step)
		assert.Equal(t, "c", dup.Producer)
	})
}

func TestDeployRequiresModels(t *testing.T) {
	testCases := []struct {
		name   string
		models map[string]artifact.Ref
		reason string
	}{
		{name: "no models", models: nil, reason: "no models bound"},
		{name: "empty model name", models: map[string]artifact.Ref{"": artifact.StepOutput("train", "model")}, reason: "model name is empty"},
		{name: "blank model name", models: map[string]artifact.Ref{"  ": artifact.StepOutput("train", "model")}, reason: "model name is empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBuilder(t)
			_, err := b.Run(StepSpec{Name: "train", Component: "trainer", Outputs: []string{"model"}})
			require.NoError(t, err)

			_, err = b.Deploy(DeploySpec{Name: "deploy", Component: "serving", Target: "nuclio-serving", Models: tc.models})
			var invalid *InvalidDeploymentError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, "deploy", invalid.Step)
			assert.Equal(t, tc.reason, invalid.Reason)

			_, ok := b.Step("deploy")
			assert.False(t, ok)
		})
	}
}
