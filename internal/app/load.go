package app

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/pipecompile/internal/compiler"
	"github.com/vk/pipecompile/internal/configure"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/hcl"
	"github.com/vk/pipecompile/internal/registry"
)

// loadRegistry registers the Go modules, then the HCL manifests found in the
// modules and pipeline paths. A manifest component replaces a module
// component of the same name.
func (a *App) loadRegistry(ctx context.Context) (*registry.Registry, error) {
	logger := ctxlog.FromContext(ctx)

	reg := registry.New()
	if err := reg.RegisterModules(a.modules...); err != nil {
		return nil, err
	}
	logger.Debug("All Go modules registered.", "count", len(a.modules), "components", reg.Len())

	var paths []string
	if a.config.PipelinePath != "" {
		paths = append(paths, a.config.PipelinePath)
	}
	if a.config.ModulesPath != "" {
		paths = append(paths, a.config.ModulesPath)
	}
	if len(paths) == 0 {
		return reg, nil
	}

	manifests := registry.New()
	if err := manifests.Load(ctx, paths...); err != nil {
		return nil, fmt.Errorf("failed to load component manifests: %w", err)
	}
	err := manifests.Each(func(c registry.Component) error {
		if _, exists := reg.Get(c.Name); exists {
			logger.Info("Manifest component replaces module component.", "component", c.Name)
		}
		reg.Replace(c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Registry ready.", "components", reg.Names())
	return reg, nil
}

// loadPipeline returns the built-in pipeline or the one defined in the
// pipeline path, with the configured extra env applied to every component.
func (a *App) loadPipeline(ctx context.Context) (*compiler.Pipeline, error) {
	var p *compiler.Pipeline
	if a.config.Builtin != "" {
		newPipeline, ok := builtinPipelines[a.config.Builtin]
		if !ok {
			return nil, fmt.Errorf("unknown built-in pipeline %q", a.config.Builtin)
		}
		p = newPipeline()
		ctxlog.FromContext(ctx).Debug("Using built-in pipeline.", "pipeline", p.Name)
	} else {
		var err error
		if p, err = hcl.Load(ctx, a.config.PipelinePath); err != nil {
			return nil, fmt.Errorf("failed to load pipeline: %w", err)
		}
	}

	env, err := compiler.ParseAssignments(a.config.SetEnv)
	if err != nil {
		return nil, err
	}
	for _, key := range slices.Sorted(maps.Keys(env)) {
		p.Mutations = append(p.Mutations, configure.SetEnv(key, env[key].AsString()))
	}
	return p, nil
}
