package hcl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/pipecompile/internal/artifact"
	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/configure"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/fsutil"
	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/zclconf/go-cty/cty"
)

// declaration adds one step to the builder when the pipeline is compiled.
type declaration func(b *pipeline.Builder, evalCtx *hcl.EvalContext) error

// definition accumulates everything read from the files of one pipeline.
type definition struct {
	pipeline *compiler.Pipeline
	source   string
	decls    []declaration
}

// Load parses every .hcl file under paths into a single pipeline.
func Load(ctx context.Context, paths ...string) (*compiler.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL pipeline loader started.", "paths", paths)

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}

	def := &definition{}
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		content, _, diags := hclFile.Body.PartialContent(rootSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		for _, block := range content.Blocks {
			if err := def.addBlock(ctx, filepath.Dir(file), block); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
		logger.Debug("Loaded pipeline file.", "file", file, "blocks", len(content.Blocks))
	}

	if def.source == "" {
		return nil, errors.New("no pipeline block found")
	}
	decls := def.decls
	def.pipeline.Declare = func(ctx context.Context, b *pipeline.Builder) error {
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{artifact.ParamRoot: b.Params().Object()},
		}
		for _, d := range decls {
			if err := d(b, evalCtx); err != nil {
				return err
			}
		}
		return nil
	}

	logger.Info("Pipeline definition loaded.",
		"pipeline", def.pipeline.Name,
		"params", len(def.pipeline.Params),
		"steps", len(decls),
		"mutations", len(def.pipeline.Mutations),
		"overrides", len(def.pipeline.Overrides),
	)
	return def.pipeline, nil
}

// addBlock decodes one top-level block. Blocks other than `pipeline` may
// precede it in file order; they are attached once it is known.
func (d *definition) addBlock(ctx context.Context, dir string, block *hcl.Block) error {
	if d.pipeline == nil && block.Type != "pipeline" {
		d.pipeline = &compiler.Pipeline{}
	}
	switch block.Type {
	case "pipeline":
		return d.addPipeline(block)
	case "param":
		return d.addParam(block)
	case "mount":
		return d.addMount(block)
	case "credentials":
		return d.addCredentials(dir, block)
	case "override":
		var o overrideBlock
		if diags := gohcl.DecodeBody(block.Body, nil, &o); diags.HasErrors() {
			return diags
		}
		o.Component = block.Labels[0]
		d.pipeline.Overrides = append(d.pipeline.Overrides, configure.Override{Component: o.Component, Env: o.Env})
		return nil
	case "build":
		return d.addBuild(block)
	case "step":
		return d.addStep(block)
	case "deploy":
		return d.addDeploy(block)
	}
	ctxlog.FromContext(ctx).Warn("Ignoring unknown block.", "type", block.Type)
	return nil
}

func (d *definition) addPipeline(block *hcl.Block) error {
	var p pipelineBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &p); diags.HasErrors() {
		return diags
	}
	p.Name = block.Labels[0]
	if d.source != "" {
		return fmt.Errorf("%s: duplicate pipeline block %q, already defined as %q", block.DefRange, p.Name, d.source)
	}
	if !artifact.ValidName(p.Name) {
		return fmt.Errorf("%s: invalid pipeline name %q", block.DefRange, p.Name)
	}
	if d.pipeline == nil {
		d.pipeline = &compiler.Pipeline{}
	}
	d.source = p.Name
	d.pipeline.Name = p.Name
	d.pipeline.Description = p.Description
	return nil
}

func (d *definition) addParam(block *hcl.Block) error {
	var p paramBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &p); diags.HasErrors() {
		return diags
	}
	p.Name = block.Labels[0]
	if !artifact.ValidName(p.Name) {
		return fmt.Errorf("%s: invalid parameter name %q", block.DefRange, p.Name)
	}
	attrs, err := remainingAttributes(p.Remain, "type", "default")
	if err != nil {
		return err
	}

	spec := compiler.ParamSpec{Name: p.Name, Description: p.Description, Type: cty.DynamicPseudoType}
	if attr, ok := attrs["type"]; ok {
		ty, diags := typeexpr.TypeConstraint(attr.Expr)
		if diags.HasErrors() {
			return fmt.Errorf("parameter '%s': %w", p.Name, diags)
		}
		spec.Type = ty
	}
	if attr, ok := attrs["default"]; ok {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("parameter '%s': invalid default: %w", p.Name, diags)
		}
		spec.Default = v
	}
	d.pipeline.Params = append(d.pipeline.Params, spec)
	return nil
}

func (d *definition) addMount(block *hcl.Block) error {
	var m mountBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &m); diags.HasErrors() {
		return diags
	}
	m.Name = block.Labels[0]
	mutation := configure.MountVolume(m.Name, m.Source, m.Target)
	if len(m.Components) > 0 {
		mutation = configure.Only(mutation, m.Components...)
	}
	d.pipeline.Mutations = append(d.pipeline.Mutations, mutation)
	return nil
}

// addCredentials reads the env file at load time. A relative env_file is
// resolved against the directory of the pipeline file.
func (d *definition) addCredentials(dir string, block *hcl.Block) error {
	var c credentialsBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &c); diags.HasErrors() {
		return diags
	}
	c.Name = block.Labels[0]
	path := c.EnvFile
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	mutation, err := configure.CredentialsFromEnvFile(c.Name, path, c.Keys...)
	if err != nil {
		return err
	}
	if len(c.Components) > 0 {
		mutation = configure.Only(mutation, c.Components...)
	}
	d.pipeline.Mutations = append(d.pipeline.Mutations, mutation)
	return nil
}

func (d *definition) addBuild(block *hcl.Block) error {
	var s buildBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &s); diags.HasErrors() {
		return diags
	}
	s.Name = block.Labels[0]
	attrs, err := remainingAttributes(s.Remain, "params")
	if err != nil {
		return err
	}
	d.decls = append(d.decls, func(b *pipeline.Builder, evalCtx *hcl.EvalContext) error {
		params, err := optionalValueMap(attrs, evalCtx)
		if err != nil {
			return fmt.Errorf("build '%s': %w", s.Name, err)
		}
		_, err = b.Build(pipeline.BuildSpec{
			Name:      s.Name,
			Component: s.Component,
			Output:    s.Output,
			Params:    params,
			After:     s.After,
		})
		return err
	})
	return nil
}

func (d *definition) addStep(block *hcl.Block) error {
	var s stepBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &s); diags.HasErrors() {
		return diags
	}
	s.Name = block.Labels[0]
	pull, err := pipeline.ParsePullPolicy(s.PullPolicy)
	if err != nil {
		return fmt.Errorf("step '%s': %w", s.Name, err)
	}
	attrs, err := remainingAttributes(s.Remain, "params", "inputs", "image", "out_path")
	if err != nil {
		return err
	}

	var image artifact.Ref
	if attr, ok := attrs["image"]; ok {
		if image, err = refFromExpr(attr.Expr); err != nil {
			return fmt.Errorf("step '%s': image: %w", s.Name, err)
		}
	}
	var inputs map[string]artifact.Ref
	if attr, ok := attrs["inputs"]; ok {
		if inputs, err = refMapFromExpr(attr.Expr, nil); err != nil {
			return fmt.Errorf("step '%s': inputs: %w", s.Name, err)
		}
	}

	d.decls = append(d.decls, func(b *pipeline.Builder, evalCtx *hcl.EvalContext) error {
		params, err := optionalValueMap(attrs, evalCtx)
		if err != nil {
			return fmt.Errorf("step '%s': %w", s.Name, err)
		}
		outPath, err := optionalString(attrs, "out_path", evalCtx)
		if err != nil {
			return fmt.Errorf("step '%s': out_path: %w", s.Name, err)
		}
		_, err = b.Run(pipeline.StepSpec{
			Name:       s.Name,
			Component:  s.Component,
			Handler:    s.Handler,
			Params:     params,
			Inputs:     inputs,
			Outputs:    s.Outputs,
			Image:      image,
			OutPath:    outPath,
			PullPolicy: pull,
			After:      s.After,
		})
		return err
	})
	return nil
}

func (d *definition) addDeploy(block *hcl.Block) error {
	var s deployBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &s); diags.HasErrors() {
		return diags
	}
	s.Name = block.Labels[0]
	attrs, err := remainingAttributes(s.Remain, "params", "models", "target")
	if err != nil {
		return err
	}
	d.decls = append(d.decls, func(b *pipeline.Builder, evalCtx *hcl.EvalContext) error {
		params, err := optionalValueMap(attrs, evalCtx)
		if err != nil {
			return fmt.Errorf("deploy '%s': %w", s.Name, err)
		}
		target, err := optionalString(attrs, "target", evalCtx)
		if err != nil {
			return fmt.Errorf("deploy '%s': target: %w", s.Name, err)
		}
		models := map[string]artifact.Ref{}
		if attr, ok := attrs["models"]; ok {
			if models, err = refMapFromExpr(attr.Expr, evalCtx); err != nil {
				return fmt.Errorf("deploy '%s': models: %w", s.Name, err)
			}
		}
		_, err = b.Deploy(pipeline.DeploySpec{
			Name:      s.Name,
			Component: s.Component,
			Target:    target,
			Models:    models,
			Params:    params,
			After:     s.After,
		})
		return err
	})
	return nil
}

func optionalString(attrs hcl.Attributes, name string, evalCtx *hcl.EvalContext) (string, error) {
	attr, ok := attrs[name]
	if !ok {
		return "", nil
	}
	return stringValue(attr.Expr, evalCtx)
}

func optionalValueMap(attrs hcl.Attributes, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	attr, ok := attrs["params"]
	if !ok {
		return nil, nil
	}
	return valueMap(attr.Expr, evalCtx)
}
