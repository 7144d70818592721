// Package fano implements the Fano sequential decoder: a threshold-driven
// forward/backward traversal of the code tree with tightening, loosening,
// an optional bounded tree cache with purge, loop detection and optional
// restart at a lowered initial threshold.
//
// Algorithm reproduced from "Sequential Decoding of Convolutional Codes" by
// Yunghsiang S. Han and Po-Ning Chen (p.26).
package fano

import (
	"fmt"
	"io"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
	"github.com/dbehnke/ccsoft/internal/reliability"
	"github.com/dbehnke/ccsoft/internal/sequential"
	"github.com/dbehnke/ccsoft/internal/tree"
)

// Decoder is the Fano sequential decoder.
type Decoder struct {
	sequential.Base

	initThreshold      float64
	curThreshold       float64
	rootThreshold      float64
	deltaThreshold     float64
	deltaInitThreshold float64
	unloop             bool
	treeCacheSize      uint64

	solutionFound      bool
	effectiveNodeCount uint64
	nbMoves            uint64

	root *tree.Node
}

// New constructs a Fano decoder.
//
// initThreshold is the initial path metric threshold T0. deltaThreshold is
// the (strictly positive) grid step applied when tightening or loosening
// the threshold. treeCacheSize bounds the number of resident nodes (0
// disables the cache). deltaInitThreshold, when negative, enables
// "unlooping": on detecting a root-level loop, initThreshold is lowered by
// deltaInitThreshold and the search restarts, until initThreshold reaches
// the metric limit.
func New(constraints []int, genpolys [][]ccencoding.Register, initThreshold, deltaThreshold float64, treeCacheSize uint64, deltaInitThreshold float64) (*Decoder, error) {
	enc, err := ccencoding.New(constraints, genpolys)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		Base:               sequential.NewBase(enc),
		initThreshold:      initThreshold,
		curThreshold:       initThreshold,
		rootThreshold:      initThreshold,
		deltaThreshold:     deltaThreshold,
		deltaInitThreshold: deltaInitThreshold,
		unloop:             deltaInitThreshold < 0,
		treeCacheSize:      treeCacheSize,
	}, nil
}

// SetTreeCacheSize changes the maximum number of resident nodes (0 disables
// the cache).
func (d *Decoder) SetTreeCacheSize(size uint64) { d.treeCacheSize = size }

// Reset returns the decoder to its just-constructed state.
func (d *Decoder) Reset() {
	d.Base.Reset()
	d.curThreshold = d.initThreshold
	d.solutionFound = false
	d.effectiveNodeCount = 0
	d.nbMoves = 0
	d.root = nil
}

// CurrentThreshold returns the current path-metric threshold T.
func (d *Decoder) CurrentThreshold() float64 { return d.curThreshold }

// NbMoves returns the number of main-loop iterations of the last decode.
func (d *Decoder) NbMoves() uint64 { return d.nbMoves }

// EffectiveNodeCount returns the number of nodes currently resident.
func (d *Decoder) EffectiveNodeCount() uint64 { return d.effectiveNodeCount }

// Root returns the root of the current decode's tree, for DOT export.
func (d *Decoder) Root() *tree.Node { return d.root }

// Decode runs the Fano algorithm against relmat and returns the most
// probable message, or an error identifying why the search aborted.
func (d *Decoder) Decode(relmat *reliability.Matrix) ([]ccencoding.Symbol, error) {
	if err := d.ValidateMatrix(relmat); err != nil {
		return nil, err
	}

	d.Reset()
	d.root = tree.NewRoot(d.NextNodeID())
	d.effectiveNodeCount++
	current := d.root
	d.nbMoves = 0

	d.visitNodeForward(current, relmat)

	for {
		cont, err := d.continueProcess(current, relmat)
		if err != nil {
			return nil, err
		}
		if !cont {
			return nil, sequential.ErrLoopDetected
		}

		d.NoteDepth(current.Depth())
		if current == d.root {
			d.rootThreshold = d.curThreshold
		}
		d.nbMoves++

		open := current.OpenChildren()
		if len(open) == 0 {
			current = d.moveBackOrLoosen(current)
			continue
		}

		best, _ := tree.Best(open)

		if best.PathMetric() >= d.curThreshold {
			predecessor := current
			current = best

			if current.Depth() == relmat.MessageLength()-1 {
				d.SetCodewordScore(current.PathMetric())
				d.SetCurrentDepth(current.Depth())
				d.BumpMaxDepth()
				d.solutionFound = true
				return tree.BackTrack(current, true), nil
			}

			if predecessor.PathMetric() < d.curThreshold+d.deltaThreshold {
				d.tighten(current.PathMetric())
			}

			d.visitNodeForward(current, relmat)
		} else {
			current = d.moveBackOrLoosen(current)
		}
	}
}

// tighten snaps curThreshold to the largest grid value (offset by
// initThreshold, stepped by deltaThreshold) not exceeding newPathMetric.
func (d *Decoder) tighten(newPathMetric float64) {
	nbDelta := int((newPathMetric - d.initThreshold) / d.deltaThreshold)
	if float64(nbDelta)*d.deltaThreshold+d.initThreshold > newPathMetric {
		nbDelta-- // int() truncates toward zero; step down to the floor
	}
	d.curThreshold = float64(nbDelta)*d.deltaThreshold + d.initThreshold
}

// visitNodeForward expands node by evaluating every candidate input symbol
// at its depth+1, unless it was already expanded (a cache hit).
func (d *Decoder) visitNodeForward(node *tree.Node, relmat *reliability.Matrix) {
	forwardDepth := node.Depth() + 1

	if node.Depth() >= 0 {
		d.Encoding.SetRegisters(node.Registers())
	}

	endSymbol := d.ExpansionAlphabetSize(forwardDepth, relmat.MessageLength())

	if node.HasOutgoing() {
		return
	}

	if d.treeCacheSize > 0 && d.effectiveNodeCount >= d.treeCacheSize {
		d.purgeTreeCache(node)
	}

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
		d.effectiveNodeCount++
	}
}

// moveBackOrLoosen chooses between moving back to the parent (marking the
// incoming edge traversed-back and, if the cache is disabled, freeing the
// subtree) or loosening the threshold.
func (d *Decoder) moveBackOrLoosen(current *tree.Node) *tree.Node {
	if current == d.root {
		d.curThreshold -= d.deltaThreshold
		return current
	}

	predecessor := current.Parent()
	if predecessor.PathMetric() >= d.curThreshold {
		if d.treeCacheSize == 0 {
			d.effectiveNodeCount -= uint64(len(current.Outgoing()))
			current.DeleteOutgoingSubtree()
		}
		if predecessor != d.root {
			current.SetTraversedBack()
		}
		return predecessor
	}

	d.curThreshold -= d.deltaThreshold
	return current
}

// continueProcess checks loop detection and the metric/node abort limits.
// It returns (true, nil) to keep going, including right after an unloop
// restart, and (false, err) with a non-nil error for every abort.
func (d *Decoder) continueProcess(current *tree.Node, relmat *reliability.Matrix) (bool, error) {
	if current == d.root && d.nbMoves > 0 && d.curThreshold == d.rootThreshold {
		// childrenOpen is true only while every one of the root's children
		// remains open (none traversed back yet): reaching the root with an
		// unchanged threshold in that state means no progress was made at
		// all, the real loop condition. Once at least one root child has
		// been traversed back, some exploration did happen and this is an
		// ordinary return to the root, not a loop.
		childrenOpen := true
		for _, child := range current.Outgoing() {
			if child.TraversedBack() {
				childrenOpen = false
				break
			}
		}

		if childrenOpen {
			if d.unloop && d.UseMetricLimit && d.initThreshold > d.MetricLimit {
				d.initThreshold += d.deltaInitThreshold // lower, since delta is negative
				d.Base.Reset()
				d.curThreshold = d.initThreshold
				d.solutionFound = false
				d.root.DeleteOutgoingSubtree()
				d.NextNodeID() // consume id 0 again for the root, matching node_count=1 after reset
				d.effectiveNodeCount = 1
				d.nbMoves = 0
				d.visitNodeForward(current, relmat)
				return true, nil
			}
			return false, sequential.ErrLoopDetected
		}
	}

	if d.UseMetricLimit && d.curThreshold < d.MetricLimit {
		return false, sequential.ErrMetricLimit
	}

	if d.UseNodeLimit && d.NodeCount() > d.NodeLimit {
		return false, sequential.ErrNodeLimit
	}

	return true, nil
}

// purgeTreeCache reduces the tree to the spine from the root to node plus
// each spine node's immediate children, freeing everything else.
func (d *Decoder) purgeTreeCache(node *tree.Node) {
	remaining := uint64(0)
	terminal := true

	for node != d.root {
		predecessor := node.Parent()
		for _, sibling := range predecessor.Outgoing() {
			if terminal || sibling != node {
				sibling.DeleteOutgoingSubtree()
			}
			remaining++
		}
		node = predecessor
		terminal = false
	}

	d.effectiveNodeCount = remaining + 1 // +1 for the root
}

// PrintStats writes a one-line human-readable summary followed by a
// machine-parseable "_RES" CSV line, mirroring the original library's
// reporting format.
func (d *Decoder) PrintStats(w io.Writer, success bool) {
	fmt.Fprintf(w, "score = %g cur.threshold = %g nodes = %d eff.nodes = %d moves = %d max depth = %d\n",
		d.Score(), d.curThreshold, d.NodeCount(), d.effectiveNodeCount, d.nbMoves, d.MaxDepth())
	successFlag := 0
	if success {
		successFlag = 1
	}
	fmt.Fprintf(w, "_RES %d,%g,%g,%d,%d,%d,%d\n",
		successFlag, d.Score(), d.curThreshold, d.NodeCount(), d.effectiveNodeCount, d.nbMoves, d.MaxDepth())
}
