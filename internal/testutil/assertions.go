package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/pipecompile/internal/dag"
)

// AssertStepDeclared checks the log output to confirm that a step was
// declared during the compile.
func AssertStepDeclared(t *testing.T, result *HarnessResult, stepName string) {
	t.Helper()

	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, `msg="Declared step."`) && strings.Contains(line, " step="+stepName+" ") {
			return
		}
	}
	require.Fail(t, "step not declared", "expected declaration of step '%s' was not found in logs", stepName)
}

// AssertEdge checks that the compiled graph links from to to with the given kind.
func AssertEdge(t *testing.T, result *HarnessResult, from, to string, kind dag.EdgeKind) {
	t.Helper()
	require.NotNil(t, result.Graph, "no graph was compiled: %v", result.Err)
	require.True(t, result.Graph.HasEdge(from, to, kind), "expected %s edge %s -> %s", kind, from, to)
}
