package sequential

import (
	"fmt"

	"github.com/dbehnke/ccsoft/internal/reliability"
)

// ValidateMatrix checks the reliability matrix dimensions against the
// encoder before a decode starts (spec.md §6 Input validation).
func (b *Base) ValidateMatrix(relmat *reliability.Matrix) error {
	if relmat.MessageLength() < b.Encoding.M() {
		return fmt.Errorf("%w: have %d, need >= %d", ErrShortMatrix, relmat.MessageLength(), b.Encoding.M())
	}
	if relmat.NbSymbolsLog2() != b.Encoding.N() {
		return fmt.Errorf("%w: matrix n=%d, code n=%d", ErrSymbolWidth, relmat.NbSymbolsLog2(), b.Encoding.N())
	}
	return nil
}
