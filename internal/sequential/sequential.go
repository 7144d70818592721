// Package sequential holds the state shared by the Fano and stack
// sequential decoders: limits, statistics, the encoder instance, edge-metric
// bias and the tail-zeros option.
package sequential

import (
	"math"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
)

// Stats are the statistics a decode run exposes to callers, valid even on a
// failed decode (partial stats remain meaningful for reporting per the
// resource-abort error category).
type Stats struct {
	Score        float64
	NodeCount    uint64
	CurrentDepth int
	MaxDepth     int
}

// ScoreDBPerSymbol converts Score into dB/symbol units using depth as the
// number of symbols, following spec.md's score_db_per_symbol definition.
func (s Stats) ScoreDBPerSymbol() float64 {
	if s.CurrentDepth <= 0 {
		return 0
	}
	return (10.0 * math.Ln2 * s.Score) / float64(s.CurrentDepth)
}

// Base holds the fields common to every sequential decoder.
type Base struct {
	Encoding *ccencoding.Encoder

	UseMetricLimit bool
	MetricLimit    float64

	UseNodeLimit bool
	NodeLimit    uint64

	TailZeros bool
	EdgeBias  float64
	Verbosity int

	nodeCount    uint64
	codewordScr  float64
	currentDepth int
	maxDepth     int
}

// NewBase constructs the shared decoder state around an already-validated
// encoder. TailZeros defaults to true, matching the original library's
// default.
func NewBase(enc *ccencoding.Encoder) Base {
	return Base{Encoding: enc, TailZeros: true}
}

// Reset clears the per-decode counters and the encoder registers. It does
// not touch limits, bias, tail-zeros or verbosity, which are sticky
// configuration set by the caller.
func (b *Base) Reset() {
	b.nodeCount = 0
	b.codewordScr = 0
	b.currentDepth = -1
	b.maxDepth = 0
	b.Encoding.Clear()
}

// SetNodeLimit enables the node-count abort limit.
func (b *Base) SetNodeLimit(limit uint64) {
	b.NodeLimit = limit
	b.UseNodeLimit = true
}

// ClearNodeLimit disables the node-count abort limit.
func (b *Base) ClearNodeLimit() { b.UseNodeLimit = false }

// SetMetricLimit enables the path-metric abort limit.
func (b *Base) SetMetricLimit(limit float64) {
	b.MetricLimit = limit
	b.UseMetricLimit = true
}

// ClearMetricLimit disables the path-metric abort limit.
func (b *Base) ClearMetricLimit() { b.UseMetricLimit = false }

// NextNodeID returns a fresh, monotonically increasing node id and
// increments the node counter.
func (b *Base) NextNodeID() uint64 {
	id := b.nodeCount
	b.nodeCount++
	return id
}

// NodeCount returns the number of nodes created (including the root) in the
// current decode.
func (b *Base) NodeCount() uint64 { return b.nodeCount }

// SetCodewordScore records the path metric of a successful terminal node.
func (b *Base) SetCodewordScore(score float64) { b.codewordScr = score }

// Score returns the codeword score; valid only after a successful decode.
func (b *Base) Score() float64 { return b.codewordScr }

// SetCurrentDepth records the encoder's current tree depth.
func (b *Base) SetCurrentDepth(d int) { b.currentDepth = d }

// CurrentDepth returns the current tree depth.
func (b *Base) CurrentDepth() int { return b.currentDepth }

// NoteDepth updates MaxDepth if d exceeds it.
func (b *Base) NoteDepth(d int) {
	if d > b.maxDepth {
		b.maxDepth = d
	}
}

// MaxDepth returns the maximum depth reached so far in the current decode.
func (b *Base) MaxDepth() int { return b.maxDepth }

// BumpMaxDepth increments MaxDepth by one, used when a terminal node is
// found (the terminal node's own depth is one past the last expansion).
func (b *Base) BumpMaxDepth() { b.maxDepth++ }

// Stats snapshots the current statistics.
func (b *Base) Stats() Stats {
	return Stats{
		Score:        b.codewordScr,
		NodeCount:    b.nodeCount,
		CurrentDepth: b.currentDepth,
		MaxDepth:     b.maxDepth,
	}
}

// ExpansionAlphabetSize returns how many input symbols should be expanded
// when forward-visiting a node about to sit at forwardDepth: the full
// 2^k alphabet, or just {0} when tail-zeros applies past L-m.
func (b *Base) ExpansionAlphabetSize(forwardDepth, messageLength int) ccencoding.Symbol {
	if b.TailZeros && forwardDepth > messageLength-b.Encoding.M() {
		return 1
	}
	return ccencoding.Symbol(1) << uint(b.Encoding.K())
}

// EdgeMetric computes log2(P[s,t]) - bias, the metric of an edge whose
// output symbol is s at message position t.
func (b *Base) EdgeMetric(p float64) float64 {
	return math.Log2(p) - b.EdgeBias
}
