// Package ccencoding implements the shift-register convolutional encoder
// used as an oracle by the sequential decoders. Registers and symbols are
// fixed-width unsigned integers rather than generic types: k and n are
// always small enough (k,n <= 32) that a uint64 register and uint32 symbol
// cover every practical (n,k,m) code.
package ccencoding

import (
	"errors"
	"fmt"
)

// Register holds the recent input bits for one input of the encoder, LSB = most recent.
type Register = uint64

// Symbol is a k-bit input symbol or an n-bit output symbol.
type Symbol = uint32

var (
	// ErrNoInputs is returned when an encoder is constructed with zero inputs.
	ErrNoInputs = errors.New("ccencoding: at least one input (k>=1) is required")
	// ErrNoOutputs is returned when the generator polynomials yield n=0 outputs.
	ErrNoOutputs = errors.New("ccencoding: at least one output (n>=1) is required")
	// ErrRegisterTooNarrow is returned when a generator polynomial does not fit its register.
	ErrRegisterTooNarrow = errors.New("ccencoding: generator polynomial wider than its constraint length")
)

// Encoder is a k-input, n-output convolutional encoder. It is not safe for
// concurrent use; callers that need to evaluate several candidate input
// symbols from the same parent state use Encode with step=false to avoid
// reloading registers between calls.
type Encoder struct {
	k           int
	n           int
	m           int
	constraints []int      // register width (constraint length) per input
	genpolys    [][]Register // genpolys[i][j]: generator for input i, output j
	registers   []Register
}

// New validates and constructs an encoder.
//
// constraints has one entry per input bit (its length determines k); each
// entry is the register width for that input. genpolys has the same length
// as constraints; genpolys[i] lists, for input i, one generator polynomial
// bit-vector per output bit. The number of outputs n is the smallest length
// among the genpolys[i] slices, matching the original library's convention
// of keeping only the common number of outputs across all inputs.
func New(constraints []int, genpolys [][]Register) (*Encoder, error) {
	k := len(constraints)
	if k == 0 {
		return nil, ErrNoInputs
	}
	if len(genpolys) != k {
		return nil, fmt.Errorf("ccencoding: %d constraints but %d generator polynomial sets", k, len(genpolys))
	}

	n := -1
	for i := range genpolys {
		if n < 0 || len(genpolys[i]) < n {
			n = len(genpolys[i])
		}
	}
	if n <= 0 {
		return nil, ErrNoOutputs
	}

	m := 0
	for i, c := range constraints {
		if c > m {
			m = c
		}
		mask := Register(1)<<uint(c) - 1
		for j := 0; j < n; j++ {
			if genpolys[i][j]&^mask != 0 {
				return nil, fmt.Errorf("%w: input %d output %d", ErrRegisterTooNarrow, i, j)
			}
		}
	}

	e := &Encoder{
		k:           k,
		n:           n,
		m:           m,
		constraints: append([]int(nil), constraints...),
		genpolys:    make([][]Register, k),
		registers:   make([]Register, k),
	}
	for i := 0; i < k; i++ {
		e.genpolys[i] = append([]Register(nil), genpolys[i][:n]...)
	}
	return e, nil
}

// K returns the number of input bits per step.
func (e *Encoder) K() int { return e.k }

// N returns the number of output bits per step.
func (e *Encoder) N() int { return e.n }

// M returns the longest constraint length among the inputs.
func (e *Encoder) M() int { return e.m }

// Clear resets all registers to zero.
func (e *Encoder) Clear() {
	for i := range e.registers {
		e.registers[i] = 0
	}
}

// Registers returns the current register state. The returned slice must not
// be mutated by the caller; use SetRegisters to restore a saved state.
func (e *Encoder) Registers() []Register {
	return e.registers
}

// SetRegisters restores a previously saved register state.
func (e *Encoder) SetRegisters(regs []Register) {
	copy(e.registers, regs)
}

// Encode computes the n-bit output symbol for the given k-bit input symbol.
// When step is true, each register is first shifted left by one and the
// corresponding input bit inserted in its LSB; when step is false the
// registers are left untouched and the output is computed as if each input
// bit replaced its register's LSB, which lets a decoder try several
// candidate input symbols against the state left by one stepped call
// without repeatedly restoring registers.
func (e *Encoder) Encode(in Symbol, step bool) Symbol {
	if step {
		for i := 0; i < e.k; i++ {
			bit := Register((in >> uint(i)) & 1)
			e.registers[i] = (e.registers[i] << 1) | bit
		}
	}

	var out Symbol
	for j := 0; j < e.n; j++ {
		var parity Register
		for i := 0; i < e.k; i++ {
			reg := e.registers[i]
			if !step {
				reg = reg&^1 | Register((in>>uint(i))&1)
			}
			parity ^= parityOf(reg & e.genpolys[i][j])
		}
		out |= Symbol(parity&1) << uint(j)
	}
	return out
}

// parityOf returns 1 if x has an odd number of set bits, else 0.
func parityOf(x Register) Register {
	x ^= x >> 32
	x ^= x >> 16
	x ^= x >> 8
	x ^= x >> 4
	x ^= x >> 2
	x ^= x >> 1
	return x & 1
}
