// Package stack implements the Zigangirov-Jelinek stack (best-first)
// sequential decoder: an ordered stack of open tree nodes, always expanding
// the single node at the top (greatest path metric, ties broken by id).
package stack

import (
	"container/heap"
	"fmt"
	"io"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
	"github.com/dbehnke/ccsoft/internal/reliability"
	"github.com/dbehnke/ccsoft/internal/sequential"
	"github.com/dbehnke/ccsoft/internal/tree"
)

// ErrGivenUp is returned when the top-of-stack path metric falls to or below
// the configured give-up threshold before a terminal node is reached.
var ErrGivenUp = fmt.Errorf("stack: gave up, top of stack below give-up threshold")

// Decoder is the stack sequential decoder.
type Decoder struct {
	sequential.Base

	useGiveupThreshold bool
	giveupThreshold    float64

	root  *tree.Node
	open  nodeHeap
	index map[*tree.Node]*nodeEntry
}

// New constructs a stack decoder around a fresh encoder for the given code.
func New(constraints []int, genpolys [][]ccencoding.Register) (*Decoder, error) {
	enc, err := ccencoding.New(constraints, genpolys)
	if err != nil {
		return nil, err
	}
	return &Decoder{Base: sequential.NewBase(enc)}, nil
}

// SetGiveupThreshold enables the give-up path metric threshold: decoding
// stops as soon as the best open node's path metric falls to or below it.
func (d *Decoder) SetGiveupThreshold(threshold float64) {
	d.giveupThreshold = threshold
	d.useGiveupThreshold = true
}

// ClearGiveupThreshold disables the give-up threshold; decoding runs until a
// terminal node is reached or a resource limit aborts it.
func (d *Decoder) ClearGiveupThreshold() { d.useGiveupThreshold = false }

// Reset returns the decoder to its just-constructed state.
func (d *Decoder) Reset() {
	d.Base.Reset()
	d.root = nil
	d.open = nil
	d.index = nil
}

// Root returns the root of the current decode's tree, for DOT export.
func (d *Decoder) Root() *tree.Node { return d.root }

// StackSize returns the number of nodes currently on the open stack.
func (d *Decoder) StackSize() int { return len(d.open) }

// Decode runs the stack algorithm against relmat and returns the most
// probable message, or an error identifying why the search stopped short of
// a terminal node.
func (d *Decoder) Decode(relmat *reliability.Matrix) ([]ccencoding.Symbol, error) {
	if err := d.ValidateMatrix(relmat); err != nil {
		return nil, err
	}

	d.Reset()
	d.index = make(map[*tree.Node]*nodeEntry)
	d.root = tree.NewRoot(d.NextNodeID())
	d.visitNode(d.root, relmat)

	for d.top().node.Depth() < relmat.MessageLength()-1 &&
		(!d.useGiveupThreshold || d.top().node.PathMetric() > d.giveupThreshold) {

		d.visitNode(d.top().node, relmat)

		if d.UseNodeLimit && d.NodeCount() > d.NodeLimit {
			return nil, sequential.ErrNodeLimit
		}
	}

	if !d.useGiveupThreshold || d.top().node.PathMetric() > d.giveupThreshold {
		winner := d.top().node
		d.SetCodewordScore(winner.PathMetric())
		d.SetCurrentDepth(winner.Depth())
		d.NoteDepth(winner.Depth())
		return tree.BackTrack(winner, true), nil
	}

	return nil, ErrGivenUp
}

func (d *Decoder) top() *nodeEntry { return d.open[0] }

// visitNode expands node (creating and pushing every candidate child) and,
// unless node is the root, removes it from the open stack.
func (d *Decoder) visitNode(node *tree.Node, relmat *reliability.Matrix) {
	forwardDepth := node.Depth() + 1

	if node.Depth() >= 0 {
		d.Encoding.SetRegisters(node.Registers())
	}

	endSymbol := d.ExpansionAlphabetSize(forwardDepth, relmat.MessageLength())

	for in := ccencoding.Symbol(0); in < endSymbol; in++ {
		// every candidate is shifted in from the parent's register state
		if node.Depth() >= 0 {
			d.Encoding.SetRegisters(node.Registers())
		} else {
			d.Encoding.Clear()
		}
		out := d.Encoding.Encode(in, true)
		edgeMetric := d.EdgeMetric(relmat.Get(int(out), forwardDepth))
		forwardPathMetric := edgeMetric + node.PathMetric()

		edge := &tree.Edge{InSymbol: in, OutSymbol: out, Metric: edgeMetric, Origin: node}
		child := tree.NewChild(d.NextNodeID(), edge, forwardPathMetric, forwardDepth, d.Encoding.Registers())
		node.AddOutgoing(child)
		d.push(child)
	}

	d.SetCurrentDepth(forwardDepth)
	d.NoteDepth(forwardDepth)

	if node.Depth() >= 0 {
		d.remove(node)
	}
}

func (d *Decoder) push(node *tree.Node) {
	e := &nodeEntry{node: node}
	d.index[node] = e
	heap.Push(&d.open, e)
}

func (d *Decoder) remove(node *tree.Node) {
	e, ok := d.index[node]
	if !ok {
		return
	}
	heap.Remove(&d.open, e.heapIndex)
	delete(d.index, node)
}

// nodeEntry is one entry of the open stack's backing heap.
type nodeEntry struct {
	node      *tree.Node
	heapIndex int
}

// nodeHeap is a max-heap over (path_metric, id), ordering the node with the
// greatest path metric (ties broken by greatest id) at index 0.
type nodeHeap []*nodeEntry

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	// container/heap maintains a min-heap by Less; inverting the shared
	// (path_metric, id) ordering here keeps the greatest entry on top.
	return tree.Less(h[j].node, h[i].node)
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *nodeHeap) Push(x any) {
	e := x.(*nodeEntry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// PrintStats writes a one-line human-readable summary followed by a
// machine-parseable "_RES" CSV line, mirroring the Fano decoder's format.
func (d *Decoder) PrintStats(w io.Writer, success bool) {
	fmt.Fprintf(w, "score = %g nodes = %d stack size = %d max depth = %d\n",
		d.Score(), d.NodeCount(), d.StackSize(), d.MaxDepth())
	successFlag := 0
	if success {
		successFlag = 1
	}
	fmt.Fprintf(w, "_RES %d,%g,%d,%d,%d\n",
		successFlag, d.Score(), d.NodeCount(), d.StackSize(), d.MaxDepth())
}
