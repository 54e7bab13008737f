package evm

import (
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

// Word is a 256-bit value held in 32 little-endian byte cells
type Word struct {
	cells      [core.WordBytes]Cell
	randomness Expr
}

// Expr compresses the bytes with the block randomness
func (w *Word) Expr() Expr {
	cells := w.cells
	r := w.randomness
	return func(row []field.Element) field.Element {
		rv := r(row)
		acc := field.Zero
		for i := core.WordBytes - 1; i >= 0; i-- {
			acc = acc.Mul(rv).Add(row[cells[i].column])
		}
		return acc
	}
}

// Limb returns the k-th 16-bit limb, byte(2k) + 256*byte(2k+1)
func (w *Word) Limb(k int) Expr {
	lo, hi := w.cells[2*k], w.cells[2*k+1]
	return lo.Expr().Add(Const(256).Mul(hi.Expr()))
}

// ByteSum returns the sum of all bytes; it is zero iff the word is zero
func (w *Word) ByteSum() Expr {
	es := make([]Expr, core.WordBytes)
	for i, c := range w.cells {
		es[i] = c.Expr()
	}
	return Sum(es...)
}

// Byte returns the cell holding byte i
func (w *Word) Byte(i int) Cell {
	return w.cells[i]
}

// Assign writes v into the byte cells
func (w *Word) Assign(region *Region, v *uint256.Int) {
	le := core.LE(v)
	for i, c := range w.cells {
		region.AssignUint64(c, uint64(le[i]))
	}
}
