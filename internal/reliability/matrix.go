// Package reliability implements the dense, column-normalized a-posteriori
// probability matrix queried by the sequential decoders.
package reliability

import (
	"errors"
	"fmt"
)

// ErrZeroColumnSum is returned by Normalize when a column sums to zero and
// therefore cannot be turned into a probability distribution.
var ErrZeroColumnSum = errors.New("reliability: column sums to zero, cannot normalize")

// Matrix is a dense (2^n) x L matrix of non-negative floats, stored column
// major the way the original C++ ReliabilityMatrix lays its backing array
// out (column stride = nbSymbols).
type Matrix struct {
	nbSymbolsLog2 int
	nbSymbols     int
	length        int
	data          []float64
	cursor        int // next column written by EnterColumnAuto
}

// New allocates a zeroed matrix with 2^n rows and L columns.
func New(nbSymbolsLog2, length int) *Matrix {
	nbSymbols := 1 << uint(nbSymbolsLog2)
	return &Matrix{
		nbSymbolsLog2: nbSymbolsLog2,
		nbSymbols:     nbSymbols,
		length:        length,
		data:          make([]float64, nbSymbols*length),
	}
}

// NbSymbolsLog2 returns n, the log2 of the number of output symbols (rows).
func (m *Matrix) NbSymbolsLog2() int { return m.nbSymbolsLog2 }

// NbSymbols returns 2^n, the number of rows.
func (m *Matrix) NbSymbols() int { return m.nbSymbols }

// MessageLength returns L, the number of columns.
func (m *Matrix) MessageLength() int { return m.length }

func (m *Matrix) index(s, t int) int {
	return t*m.nbSymbols + s
}

// Get returns P[s,t].
func (m *Matrix) Get(s, t int) float64 {
	return m.data[m.index(s, t)]
}

// EnterColumn sets the full column at position t from vec, which must have
// length 2^n.
func (m *Matrix) EnterColumn(t int, vec []float64) error {
	if len(vec) != m.nbSymbols {
		return fmt.Errorf("reliability: column vector has %d entries, want %d", len(vec), m.nbSymbols)
	}
	if t < 0 || t >= m.length {
		return fmt.Errorf("reliability: column index %d out of range [0,%d)", t, m.length)
	}
	copy(m.data[m.index(0, t):m.index(0, t)+m.nbSymbols], vec)
	return nil
}

// EnterColumnAuto enters vec at an internal cursor position, incremented
// after every call. Useful for streaming samples in without tracking an
// explicit index.
func (m *Matrix) EnterColumnAuto(vec []float64) error {
	if m.cursor >= m.length {
		return fmt.Errorf("reliability: auto-entry cursor %d exceeds message length %d", m.cursor, m.length)
	}
	if err := m.EnterColumn(m.cursor, vec); err != nil {
		return err
	}
	m.cursor++
	return nil
}

// ResetCursor rewinds the EnterColumnAuto cursor back to column 0.
func (m *Matrix) ResetCursor() {
	m.cursor = 0
}

// Normalize divides every entry of each column by that column's sum, so
// every column sums to 1.0. Fails if any column sum is zero.
func (m *Matrix) Normalize() error {
	for t := 0; t < m.length; t++ {
		var sum float64
		base := m.index(0, t)
		for s := 0; s < m.nbSymbols; s++ {
			sum += m.data[base+s]
		}
		if sum == 0 {
			return fmt.Errorf("%w: column %d", ErrZeroColumnSum, t)
		}
		for s := 0; s < m.nbSymbols; s++ {
			m.data[base+s] /= sum
		}
	}
	return nil
}
