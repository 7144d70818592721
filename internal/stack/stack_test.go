package stack

import (
	"testing"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
	"github.com/dbehnke/ccsoft/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

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
	d, err := New(constraints, genpolys)
	require.NoError(t, err)
	return d, constraints, genpolys
}

func TestDecodeRecoversExactMessageUnderHighReliability(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 1, 0, 1, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	decoded, err := d.Decode(relmat)
	require.NoError(t, err)
	assert.Equal(t, message, decoded)
}

func TestDecodeRejectsShortMatrix(t *testing.T) {
	d, _, _ := rate12Decoder(t)
	relmat := reliability.New(2, 1)
	_, err := d.Decode(relmat)
	require.Error(t, err)
}

func TestDecodeHonorsGiveupThreshold(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	d.SetGiveupThreshold(1e9) // unreachable: every path metric must fall below it
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{1, 0, 1, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	_, err = d.Decode(relmat)
	require.ErrorIs(t, err, ErrGivenUp)
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

func TestStackIsNonEmptyAfterDecode(t *testing.T) {
	d, constraints, genpolys := rate12Decoder(t)
	enc, err := ccencoding.New(constraints, genpolys)
	require.NoError(t, err)

	message := []ccencoding.Symbol{0, 1, 0, 0, 0}
	codeword := encodeMessage(t, enc, message)
	relmat := perfectMatrix(enc.N(), codeword)

	_, err = d.Decode(relmat)
	require.NoError(t, err)
	assert.Greater(t, d.StackSize(), 0)
}

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

		d1, err := New(constraints, genpolys)
		require.NoError(t, err)
		first, err1 := d1.Decode(relmat)

		d2, err := New(constraints, genpolys)
		require.NoError(t, err)
		second, err2 := d2.Decode(relmat)

		if err1 == nil {
			assert.Equal(t, first, second)
		}
		assert.Equal(t, err1 == nil, err2 == nil)
	})
}
