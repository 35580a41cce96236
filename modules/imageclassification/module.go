// Package imageclassification contributes the components and the built-in
// pipeline of the image classification demo: download an image archive,
// label it, train a TensorFlow model and deploy it for serving.
package imageclassification

import (
	"context"

	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/configure"
	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Name is the name of the built-in pipeline.
const Name = "image-classification"

// Component names.
const (
	Utils   = "utils"
	Trainer = "trainer"
	Serving = "serving"
)

// ServingTarget is the project the trained model is deployed to.
const ServingTarget = "nuclio-serving"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register adds the utils, trainer and serving components.
func (m *Module) Register(r *registry.Registry) error {
	components := []registry.Component{
		{
			Name:         Utils,
			Capabilities: registry.Buildable | registry.Runnable,
			Image:        "mlrun/mlrun",
			Labels:       map[string]string{"demo": Name},
		},
		{
			Name:         Trainer,
			Capabilities: registry.Runnable,
			Image:        "mlrun/ml-models",
			Labels:       map[string]string{"demo": Name},
		},
		{
			Name:         Serving,
			Capabilities: registry.Deployable,
			Image:        "mlrun/mlrun",
			Labels:       map[string]string{"demo": Name},
		},
	}
	for _, c := range components {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Pipeline returns the image classification pipeline definition.
func Pipeline() *compiler.Pipeline {
	return &compiler.Pipeline{
		Name:        Name,
		Description: "Train an image classification TF algorithm and deploy it for serving.",
		Params: []compiler.ParamSpec{
			{Name: "image_archive", Type: cty.String, Default: cty.StringVal("http://iguazio-sample-data.s3.amazonaws.com/catsndogs.zip")},
			{Name: "images_path", Type: cty.String, Default: cty.StringVal("/User/mlrun/examples/images")},
			{Name: "source_dir", Type: cty.String, Default: cty.StringVal("/User/mlrun/examples/images/cats_n_dogs")},
			{Name: "checkpoints_dir", Type: cty.String, Default: cty.StringVal("/User/mlrun/examples/checkpoints")},
			{Name: "model_path", Type: cty.String, Default: cty.StringVal("/User/mlrun/examples/models/cats_n_dogs.h5")},
			{Name: "model_name", Type: cty.String, Default: cty.StringVal("cat_vs_dog_v1")},
		},
		Mutations: []configure.Mutation{
			configure.MountVolume("user", "/User", "/User"),
		},
		Overrides: []configure.Override{{
			Component: Serving,
			Env: map[string]string{
				"MODEL_CLASS":      "TFModel",
				"IMAGE_HEIGHT":     "128",
				"IMAGE_WIDTH":      "128",
				"ENABLE_EXPLAINER": "False",
			},
		}},
		Declare: declare,
	}
}

func declare(_ context.Context, b *pipeline.Builder) error {
	p := b.Params()

	build, err := b.Build(pipeline.BuildSpec{
		Name:      "build-utils",
		Component: Utils,
		Params:    map[string]cty.Value{"with_mlrun": cty.True},
	})
	if err != nil {
		return err
	}

	download, err := b.Run(pipeline.StepSpec{
		Name:      "download",
		Component: Utils,
		Handler:   "open_archive",
		OutPath:   p.String("images_path"),
		Image:     build.ImageRef(),
		Params:    map[string]cty.Value{"target_dir": p["images_path"]},
		Inputs:    map[string]artifact.Ref{"archive_url": artifact.Param("image_archive")},
		Outputs:   []string{"content"},
	})
	if err != nil {
		return err
	}

	label, err := b.Run(pipeline.StepSpec{
		Name:      "label",
		Component: Utils,
		Handler:   "categories_map_builder",
		OutPath:   p.String("images_path"),
		Image:     build.ImageRef(),
		Params:    map[string]cty.Value{"source_dir": p["source_dir"]},
		Outputs:   []string{"categories_map", "file_categories"},
		After:     []string{download.Name},
	})
	if err != nil {
		return err
	}

	train, err := b.Run(pipeline.StepSpec{
		Name:      "train",
		Component: Trainer,
		Params: map[string]cty.Value{
			"epochs":          cty.NumberIntVal(1),
			"checkpoints_dir": p["checkpoints_dir"],
			"model_path":      p["model_path"],
			"data_path":       p["source_dir"],
		},
		Inputs: map[string]artifact.Ref{
			"categories_map":  label.Output("categories_map"),
			"file_categories": label.Output("file_categories"),
		},
		Outputs:    []string{"model"},
		PullPolicy: pipeline.PullAlways,
	})
	if err != nil {
		return err
	}

	_, err = b.Deploy(pipeline.DeploySpec{
		Name:      "deploy",
		Component: Serving,
		Target:    ServingTarget,
		Models:    map[string]artifact.Ref{p.String("model_name"): train.Output("model")},
	})
	return err
}
