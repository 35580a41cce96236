package registry

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/pipecompile/internal/ctxlog"
	"github.com/vk/pipecompile/internal/fsutil"
)

// componentBlock is the HCL schema of a `component` manifest block.
type componentBlock struct {
	Name         string            `hcl:"name,label"`
	Capabilities []string          `hcl:"capabilities"`
	Image        string            `hcl:"image,optional"`
	Env          map[string]string `hcl:"env,optional"`
	Labels       map[string]string `hcl:"labels,optional"`
}

// manifestRoot decodes component blocks and ignores every other top-level
// construct, so manifests may share a directory with pipeline files.
type manifestRoot struct {
	Components []*componentBlock `hcl:"component,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

// Load parses every .hcl file under paths and registers the components it
// declares into r.
func (r *Registry) Load(ctx context.Context, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading component manifests.", "paths", paths)

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("No .hcl component manifests found.", "paths", paths)
		return nil
	}

	parser := hclparse.NewParser()
	loaded := 0
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root manifestRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Components {
			c, err := block.toComponent()
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if err := r.Register(c); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			loaded++
		}
		logger.Debug("Loaded component manifest.", "file", file, "components", len(root.Components))
	}

	logger.Info("Component manifests loaded.", "components_loaded", loaded)
	return nil
}

func (b *componentBlock) toComponent() (Component, error) {
	caps, err := ParseCapabilities(b.Capabilities)
	if err != nil {
		return Component{}, fmt.Errorf("component '%s': %w", b.Name, err)
	}
	return Component{
		Name:         b.Name,
		Capabilities: caps,
		Image:        b.Image,
		Env:          b.Env,
		Labels:       b.Labels,
	}, nil
}
