package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/pipecompile/internal/app"
	"github.com/vk/pipecompile/internal/objectstore"
	"github.com/vk/pipecompile/internal/pipeline"
	"github.com/vk/pipecompile/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a compile run.
type HarnessResult struct {
	LogOutput string
	Output    string
	Graph     *pipeline.Graph
	Err       error
	Dir       string
}

// Options tunes a harness run. Zero values use the defaults.
type Options struct {
	Config  app.Config
	Modules []registry.Module
	Store   objectstore.Store
}

// RunCompile writes files under a temporary directory, points the app's
// pipeline path at its "pipeline" subdirectory and runs one compile.
func RunCompile(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	pipelineDir := filepath.Join(tmpDir, "pipeline")
	require.NoError(t, os.MkdirAll(pipelineDir, 0755))
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := opts.Config
	if cfg.PipelinePath == "" && cfg.Builtin == "" {
		cfg.PipelinePath = pipelineDir
	}
	if cfg.ModulesPath != "" && !filepath.IsAbs(cfg.ModulesPath) {
		cfg.ModulesPath = filepath.Join(tmpDir, cfg.ModulesPath)
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"

	logBuffer := &SafeBuffer{}
	var out bytes.Buffer

	result := &HarnessResult{Dir: tmpDir}
	appConfig, err := app.NewConfig(cfg)
	if err == nil {
		a := app.NewApp(&out, logBuffer, appConfig, opts.Modules...)
		if opts.Store != nil {
			a.SetStore(opts.Store)
		}
		result.Graph, err = a.Run(context.Background())
	}
	result.Err = err
	result.Output = out.String()
	result.LogOutput = logBuffer.String()

	if os.Getenv("PIPECOMPILE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
