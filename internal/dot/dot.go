// Package dot renders a decode tree as a Graphviz dot script, for visual
// inspection of a decoder run.
package dot

import (
	"fmt"
	"io"

	"github.com/dbehnke/ccsoft/internal/tree"
)

// Export writes root and every descendant as a "digraph G" script to w.
func Export(w io.Writer, root *tree.Node) {
	var nodes []*tree.Node
	collect(root, &nodes)

	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "    rankdir=LR")
	fmt.Fprintln(w)

	for _, n := range nodes {
		shape := "ellipse"
		if n.ID() == 0 {
			shape = "box"
		}
		fmt.Fprintf(w, "    n_%d [shape=%s, label=\"%d %g\"", n.ID(), shape, n.ID(), n.PathMetric())
		if n.OnFinalPath() {
			fmt.Fprint(w, " style=filled fillcolor=lightblue")
		}
		fmt.Fprintln(w, "]")
	}

	fmt.Fprintln(w)

	for _, n := range nodes {
		edge := n.Incoming()
		if edge == nil {
			continue
		}
		fmt.Fprintf(w, "    n_%d -> n_%d [label=\"%d %g\"]\n", edge.Origin.ID(), n.ID(), edge.InSymbol, edge.Metric)
	}

	fmt.Fprintln(w, "}")
}

func collect(node *tree.Node, out *[]*tree.Node) {
	*out = append(*out, node)
	for _, child := range node.Outgoing() {
		collect(child, out)
	}
}
