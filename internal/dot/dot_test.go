package dot

import (
	"strings"
	"testing"

	"github.com/dbehnke/ccsoft/internal/tree"
	"github.com/stretchr/testify/assert"
)

func TestExportIncludesEveryNodeAndEdge(t *testing.T) {
	root := tree.NewRoot(0)
	e1 := &tree.Edge{InSymbol: 1, Origin: root}
	n1 := tree.NewChild(1, e1, 0.5, 0, nil)
	root.AddOutgoing(n1)

	e2 := &tree.Edge{InSymbol: 0, Origin: n1}
	n2 := tree.NewChild(2, e2, 1.0, 1, nil)
	n1.AddOutgoing(n2)
	tree.BackTrack(n2, true)

	var sb strings.Builder
	Export(&sb, root)
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "digraph G {"))
	assert.Contains(t, out, "n_0 [shape=box")
	assert.Contains(t, out, "n_1 [shape=ellipse")
	assert.Contains(t, out, "n_0 -> n_1")
	assert.Contains(t, out, "n_1 -> n_2")
	assert.Contains(t, out, "fillcolor=lightblue")
}
