package fano

import (
	"math"
	"testing"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
	"github.com/dbehnke/ccsoft/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// perfectMatrix builds a reliability matrix that makes the given codeword
// the unique, overwhelmingly likely path: every column places almost all
// the mass on the codeword's own symbol and spreads a tiny remainder over
// the rest of the 2^n alphabet.
func perfectMatrix(n int, codeword []ccencoding.Symbol) *reliability.Matrix {
	alphabet := 1 << uint(n)
	m := reliability.New(n, len(codeword))
	for t, sym := range codeword {
		col := make([]float64, alphabet)
		for s := range col {
			col[s] = 1e-6
		}
		col[sym] = 1.0
		if err := m.EnterColumn(t, col); err != nil {
			panic(err)
		}
	}
	if err := m.Normalize(); err != nil {
		panic(err)
	}
	return m
}

func encodeMessage(t *testing.T, enc *ccencoding.Encoder, message []ccencoding.Symbol) []ccencoding.Symbol {
	t.Helper()
	enc.Clear()
	out := make([]ccencoding.Symbol, len(message))
	for i, in := range message {
		out[i] = enc.Encode(in, true)
	}
	return out
}

func rate12Decoder(t *testing.T) (*Decoder, []int, [][]ccencoding.Register) {
	t.Helper()
	constraints := []int{3}
	genpolys := [][]ccencoding.Register{{7, 5}}
	d, err := New(constraints, genpolys, -2.0, 2.0, 0, 0)
	require.NoError(t, err)
	return d, constraints, genpolys
}

func TestDecodeRecoversExactMessageUnderHighReliability(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 1, 0, 1, 0, 0, 0} // 4 info symbols + m=3 zero tail
	codeword := encodeMessage(t, enc, message)

	relmat := perfectMatrix(enc.N(), codeword)

	decoded, err := d.Decode(relmat)
	require.NoError(t, err)
	assert.Equal(t, message, decoded)
}

func TestDecodeRejectsShortMatrix(t *testing.T) {
	d, _, _ := rate12Decoder(t)
	relmat := reliability.New(2, 1) // 1 column, fewer than m=3
	_, err := d.Decode(relmat)
	require.Error(t, err)
}

func TestDecodeRejectsSymbolWidthMismatch(t *testing.T) {
	d, _, _ := rate12Decoder(t)
	relmat := reliability.New(3, 10) // code n=2, matrix n=3
	for t2 := 0; t2 < 10; t2++ {
		col := make([]float64, 8)
		for i := range col {
			col[i] = 1.0 / 8
		}
		require.NoError(t, relmat.EnterColumn(t2, col))
	}
	_, err := d.Decode(relmat)
	require.Error(t, err)
}

func TestDecodeAbortsOnNodeLimit(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	d.SetNodeLimit(1)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 0, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	_, err = d.Decode(relmat)
	require.Error(t, err)
}

func TestDecodeStatsReflectSuccessfulRun(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{0, 1, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	_, err = d.Decode(relmat)
	require.NoError(t, err)

	stats := d.Stats()
	assert.Greater(t, stats.NodeCount, uint64(0))
	assert.GreaterOrEqual(t, stats.MaxDepth, len(message)-1)
}

func TestDecodeWithTreeCacheStillRecoversMessage(t *testing.T) {
	constraints := []int{3}
	genpolys := [][]ccencoding.Register{{7, 5}}
	d, err := New(constraints, genpolys, -2.0, 2.0, 4, 0)
	require.NoError(t, err)

	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 0, 1, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	decoded, err := d.Decode(relmat)
	require.NoError(t, err)
	assert.Equal(t, message, decoded)
}

// TestDecodeIsDeterministic checks that repeated decodes of the same matrix
// always return the same answer and never panic, across random rate-1/2
// messages.
func TestDecodeIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		constraints := []int{3}
		genpolys := [][]ccencoding.Register{{7, 5}}
		enc, err := ccencoding.New(constraints, genpolys)
		require.NoError(t, err)

		infoLen := rapid.IntRange(1, 6).Draw(rt, "infoLen")
		message := make([]ccencoding.Symbol, infoLen+enc.M())
		for i := 0; i < infoLen; i++ {
			message[i] = ccencoding.Symbol(rapid.IntRange(0, 1).Draw(rt, "bit"))
		}

		codeword := encodeMessage(t, enc, message)
		relmat := perfectMatrix(enc.N(), codeword)

		d1, err := New(constraints, genpolys, -2.0, 2.0, 0, 0)
		require.NoError(t, err)
		first, err1 := d1.Decode(relmat)

		d2, err := New(constraints, genpolys, -2.0, 2.0, 0, 0)
		require.NoError(t, err)
		second, err2 := d2.Decode(relmat)

		if err1 == nil {
			assert.Equal(t, first, second)
		}
		assert.Equal(t, err1 == nil, err2 == nil)
	})
}

func TestScoreDBPerSymbolIsFiniteOnSuccess(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 1, 1, 0, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	_, err = d.Decode(relmat)
	require.NoError(t, err)

	stats := d.Stats()
	assert.False(t, math.IsNaN(stats.ScoreDBPerSymbol()))
	assert.False(t, math.IsInf(stats.ScoreDBPerSymbol(), 0))
}
