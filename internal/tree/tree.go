// Package tree implements the code-tree nodes and incoming-edge records
// shared by the Fano and stack decoders. A node exclusively owns its
// outgoing edges and their destination nodes; deleting a node's outgoing
// edges deletes the whole subtree rooted below it.
package tree

import "github.com/dbehnke/ccsoft/internal/ccencoding"

// Edge is the incoming edge of a node, folded into the node itself since
// every node has exactly one incoming edge (the root has none).
type Edge struct {
	InSymbol  ccencoding.Symbol
	OutSymbol ccencoding.Symbol
	Metric    float64
	Origin    *Node
}

// Node is a node in the code tree.
type Node struct {
	id            uint64
	incoming      *Edge // nil for the root
	pathMetric    float64
	depth         int // root is -1
	registers     []ccencoding.Register
	outgoing      []*Node
	traversedBack bool // Fano-only: incoming edge has been fully explored and rejected
	onFinalPath   bool
}

// NewRoot creates the root node of a fresh decode.
func NewRoot(id uint64) *Node {
	return &Node{id: id, incoming: nil, pathMetric: 0, depth: -1}
}

// NewChild creates a node reached by the given incoming edge.
func NewChild(id uint64, incoming *Edge, pathMetric float64, depth int, registers []ccencoding.Register) *Node {
	return &Node{
		id:         id,
		incoming:   incoming,
		pathMetric: pathMetric,
		depth:      depth,
		registers:  append([]ccencoding.Register(nil), registers...),
	}
}

// ID returns the node's unique, creation-order identifier.
func (n *Node) ID() uint64 { return n.id }

// Depth returns the node's depth; the root is at depth -1.
func (n *Node) Depth() int { return n.depth }

// PathMetric returns the cumulative path metric from the root.
func (n *Node) PathMetric() float64 { return n.pathMetric }

// Registers returns the saved encoder register state at this node.
func (n *Node) Registers() []ccencoding.Register { return n.registers }

// Incoming returns the node's incoming edge, or nil for the root.
func (n *Node) Incoming() *Edge { return n.incoming }

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node {
	if n.incoming == nil {
		return nil
	}
	return n.incoming.Origin
}

// Outgoing returns the node's outgoing children, in creation order.
func (n *Node) Outgoing() []*Node { return n.outgoing }

// AddOutgoing attaches a child already wired with its incoming edge.
func (n *Node) AddOutgoing(child *Node) {
	n.outgoing = append(n.outgoing, child)
}

// HasOutgoing reports whether this node has already been expanded.
func (n *Node) HasOutgoing() bool { return len(n.outgoing) > 0 }

// DeleteOutgoingSubtree discards every child (and, transitively, their own
// children) of this node. Used on back-off when the tree cache is disabled
// and during cache purging.
func (n *Node) DeleteOutgoingSubtree() {
	n.outgoing = nil
}

// TraversedBack reports whether this node's incoming edge has been
// explored and rejected by the Fano algorithm.
func (n *Node) TraversedBack() bool { return n.traversedBack }

// SetTraversedBack marks this node's incoming edge as explored and
// rejected. Once set it is never cleared unless the subtree is recreated.
func (n *Node) SetTraversedBack() { n.traversedBack = true }

// OnFinalPath reports whether back-tracking marked this node as part of
// the decoded codeword path (used by the DOT exporter).
func (n *Node) OnFinalPath() bool { return n.onFinalPath }

// SetOnFinalPath marks this node as part of the decoded codeword path.
func (n *Node) SetOnFinalPath() { n.onFinalPath = true }

// OpenChildren returns the children of n whose incoming edge has not been
// marked traversed-back — the forward moves still available from n.
func (n *Node) OpenChildren() []*Node {
	open := make([]*Node, 0, len(n.outgoing))
	for _, c := range n.outgoing {
		if !c.TraversedBack() {
			open = append(open, c)
		}
	}
	return open
}

// Best returns the child with the greatest path metric among open (greater
// id breaks ties), and reports whether any open child existed.
func Best(open []*Node) (*Node, bool) {
	if len(open) == 0 {
		return nil, false
	}
	best := open[0]
	for _, c := range open[1:] {
		if greater(c, best) {
			best = c
		}
	}
	return best, true
}

// greater implements the (path_metric, id) ordering used throughout the
// decoders: larger path metric wins, ties broken by larger id.
func greater(a, b *Node) bool {
	if a.pathMetric == b.pathMetric {
		return a.id > b.id
	}
	return a.pathMetric > b.pathMetric
}

// Less reports whether a sorts before b under the shared (path_metric, id)
// ordering (smaller metric first, ties broken by smaller id) — the
// complement of the decoders' "greatest first" selection, used by the
// stack decoder's priority queue.
func Less(a, b *Node) bool {
	return greater(b, a)
}

// BackTrack walks from node up to the root, collecting input symbols, and
// returns them in root-to-node order (the decoded message). When
// markFinalPath is true every visited node is marked OnFinalPath.
func BackTrack(node *Node, markFinalPath bool) []ccencoding.Symbol {
	var reversed []ccencoding.Symbol
	for cur := node; cur.incoming != nil; cur = cur.incoming.Origin {
		if markFinalPath {
			cur.SetOnFinalPath()
		}
		reversed = append(reversed, cur.incoming.InSymbol)
	}
	out := make([]ccencoding.Symbol, len(reversed))
	for i, s := range reversed {
		out[len(reversed)-1-i] = s
	}
	return out
}
