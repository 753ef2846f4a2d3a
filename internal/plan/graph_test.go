package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDOT_ContainsNodesAndEdges(t *testing.T) {
	t.Parallel()
	resources := []Resource{
		res("ns", KindNamespace),
		res("dep", KindDeployment, "ns"),
	}

	out := DOT(resources)
	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, "ns")
	assert.Contains(t, out, "dep")
	assert.Contains(t, out, "->")
}

func TestMermaid_ContainsEdges(t *testing.T) {
	t.Parallel()
	resources := []Resource{
		res("ns", KindNamespace),
		res("dep", KindDeployment, "ns"),
	}

	out := Mermaid(resources)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "-->")
}

func TestDOT_SkipsEdgesToUndeclaredResources(t *testing.T) {
	t.Parallel()
	resources := []Resource{
		res("dep", KindDeployment, "ghost"),
	}

	out := DOT(resources)
	// The ghost node was never declared; no edge should be rendered.
	assert.NotContains(t, out, "->")
}
