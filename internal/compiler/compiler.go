package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/pipecompile/internal/configure"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/vk/pipecompile/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// DeclareFunc declares a pipeline's steps in order.
type DeclareFunc func(ctx context.Context, b *pipeline.Builder) error

// Pipeline is a complete pipeline definition: parameters, cross-cutting
// component configuration and the step declarations.
type Pipeline struct {
	Name        string
	Description string
	Params      []ParamSpec
	Mutations   []configure.Mutation
	Overrides   []configure.Override
	Declare     DeclareFunc
}

// Validate checks the definition itself, before any compile work.
func (p *Pipeline) Validate() error {
	if p == nil {
		return errors.New("pipeline is nil")
	}
	if p.Name == "" {
		return errors.New("pipeline name is required")
	}
	if p.Declare == nil {
		return fmt.Errorf("pipeline '%s' has no declarations", p.Name)
	}
	return nil
}

// Compile configures reg, binds supplied parameters and declares the
// pipeline's steps, returning the finalized graph. reg is not modified.
func Compile(ctx context.Context, reg *registry.Registry, p *Pipeline, supplied map[string]cty.Value) (*pipeline.Graph, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("pipeline", p.Name)
	logger.Debug("Compile started.", "components", reg.Len(), "params_supplied", len(supplied))

	configured, err := configure.Configure(ctx, reg, p.Mutations, p.Overrides)
	if err != nil {
		return nil, err
	}

	params, err := BindParams(p.Params, supplied)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parameters bound.", "params", params.Names())

	b := pipeline.NewBuilder(ctx, p.Name, configured, params)
	if err := p.Declare(ctx, b); err != nil {
		logger.Debug("Step declaration failed.", "error", err)
		return nil, fmt.Errorf("pipeline '%s': %w", p.Name, err)
	}

	g, err := b.Finalize()
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", p.Name, err)
	}

	logger.Info("Compile finished.", "graph_id", g.ID, "steps", g.Len())
	return g, nil
}
