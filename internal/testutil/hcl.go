package testutil

import (
	"testing"

	"github.com/vk/pipecompile/internal/registry"
)

// DemoComponents is a manifest declaring the components used by most tests.
const DemoComponents = `
component "utils" {
  capabilities = ["build", "run"]
  image        = "mlrun/mlrun"
}

component "trainer" {
  capabilities = ["run"]
}

component "serving" {
  capabilities = ["deploy"]
}
`

// noModules registers nothing, so only manifests populate the registry.
type noModules struct{}

func (noModules) Register(*registry.Registry) error { return nil }

// RunHCLPipelineTest compiles a single pipeline HCL string against the demo
// components, with no Go modules registered unless opts names some.
func RunHCLPipelineTest(t *testing.T, pipelineHCL string, opts Options) *HarnessResult {
	t.Helper()

	files := map[string]string{
		"pipeline/main.hcl":       pipelineHCL,
		"pipeline/components.hcl": DemoComponents,
	}
	if opts.Modules == nil {
		opts.Modules = []registry.Module{noModules{}}
	}
	return RunCompile(t, files, opts)
}
