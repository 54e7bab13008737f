package evm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

// carryBits bounds the per-limb carry of MulAddWordsGadget. A limb column
// sums at most 16 products below 2^32 plus a limb and the incoming carry,
// so every carry stays below 2^21.
const carryBits = 21

// IsZeroGadget outputs 1 when value is zero and 0 otherwise
type IsZeroGadget struct {
	inverse Cell
	isZero  Expr
}

// NewIsZeroGadget configures is_zero = 1 - value * inverse with
// value * is_zero == 0
func NewIsZeroGadget(cb *ConstraintBuilder, value Expr) *IsZeroGadget {
	inverse := cb.QueryCell()
	isZero := Not(value.Mul(inverse.Expr()))
	cb.Require("is_zero: value * is_zero == 0", value.Mul(isZero))
	return &IsZeroGadget{inverse: inverse, isZero: isZero}
}

// Expr returns the boolean output
func (g *IsZeroGadget) Expr() Expr {
	return g.isZero
}

// Assign sets the inverse witness
func (g *IsZeroGadget) Assign(region *Region, value field.Element) {
	if value.IsZero() {
		region.Assign(g.inverse, field.Zero)
		return
	}
	region.Assign(g.inverse, value.Inverse())
}

// IsEqualGadget outputs 1 when lhs == rhs
type IsEqualGadget struct {
	isZero *IsZeroGadget
}

// NewIsEqualGadget configures an equality test
func NewIsEqualGadget(cb *ConstraintBuilder, lhs, rhs Expr) *IsEqualGadget {
	return &IsEqualGadget{isZero: NewIsZeroGadget(cb, lhs.Sub(rhs))}
}

// Expr returns the boolean output
func (g *IsEqualGadget) Expr() Expr {
	return g.isZero.Expr()
}

// Assign sets the witness from the compared values
func (g *IsEqualGadget) Assign(region *Region, lhs, rhs field.Element) {
	g.isZero.Assign(region, lhs.Sub(rhs))
}

// MulAddWordsGadget constrains a * b + c == d over 256-bit words, limb by
// limb with 16-bit limbs. Overflow is nonzero iff the product or the sum
// exceeds 256 bits.
type MulAddWordsGadget struct {
	a, b, c, d *Word
	carries    [core.NumLimbs]Cell
	overflow   Expr
}

// NewMulAddWordsGadget configures the limb equations and carry ranges
func NewMulAddWordsGadget(cb *ConstraintBuilder, a, b, c, d *Word) *MulAddWordsGadget {
	g := &MulAddWordsGadget{a: a, b: b, c: c, d: d}
	for k := range g.carries {
		g.carries[k] = cb.QueryCell()
	}

	for k := 0; k < core.NumLimbs; k++ {
		terms := make([]Expr, 0, k+3)
		for i := 0; i <= k; i++ {
			terms = append(terms, a.Limb(i).Mul(b.Limb(k-i)))
		}
		terms = append(terms, c.Limb(k))
		if k > 0 {
			terms = append(terms, g.carries[k-1].Expr())
		}
		rhs := d.Limb(k).Add(Const(1 << core.LimbBits).Mul(g.carries[k].Expr()))
		cb.RequireEqual(fmt.Sprintf("mul_add_words: limb %d", k), Sum(terms...), rhs)
		cb.RequireInRange("mul_add_words: carry", g.carries[k].Expr(), carryBits)
	}

	overflow := []Expr{g.carries[core.NumLimbs-1].Expr()}
	for i := 1; i < core.NumLimbs; i++ {
		for j := core.NumLimbs - i; j < core.NumLimbs; j++ {
			overflow = append(overflow, a.Limb(i).Mul(b.Limb(j)))
		}
	}
	g.overflow = Sum(overflow...)
	return g
}

// Overflow returns an expression that is zero iff a * b + c < 2^256
func (g *MulAddWordsGadget) Overflow() Expr {
	return g.overflow
}

// Assign sets the carries. The words are assigned by their owner.
func (g *MulAddWordsGadget) Assign(region *Region, a, b, c, d *uint256.Int) {
	al, bl, cl, dl := core.Limbs(a), core.Limbs(b), core.Limbs(c), core.Limbs(d)
	var carry uint64
	for k := 0; k < core.NumLimbs; k++ {
		sum := carry + cl[k]
		for i := 0; i <= k; i++ {
			sum += al[i] * bl[k-i]
		}
		// a wrong d leaves a remainder or an oversized carry; both fail
		carry = (sum - dl[k]) >> core.LimbBits
		region.AssignUint64(g.carries[k], carry)
	}
}

// LtWordsGadget outputs 1 when a < b. It witnesses diff = a - b mod 2^256
// through b + diff == a + lt * 2^256 with boolean limb carries.
type LtWordsGadget struct {
	diff    *Word
	carries [core.NumLimbs]Cell
}

// NewLtWordsGadget configures the comparison
func NewLtWordsGadget(cb *ConstraintBuilder, a, b *Word) *LtWordsGadget {
	g := &LtWordsGadget{diff: cb.QueryWord()}
	for k := range g.carries {
		g.carries[k] = cb.QueryBool()
	}
	for k := 0; k < core.NumLimbs; k++ {
		lhs := b.Limb(k).Add(g.diff.Limb(k))
		if k > 0 {
			lhs = lhs.Add(g.carries[k-1].Expr())
		}
		rhs := a.Limb(k).Add(Const(1 << core.LimbBits).Mul(g.carries[k].Expr()))
		cb.RequireEqual(fmt.Sprintf("lt_words: limb %d", k), lhs, rhs)
	}
	return g
}

// Expr returns the boolean output
func (g *LtWordsGadget) Expr() Expr {
	return g.carries[core.NumLimbs-1].Expr()
}

// Assign sets the difference and carries
func (g *LtWordsGadget) Assign(region *Region, a, b *uint256.Int) {
	diff := new(uint256.Int).Sub(a, b)
	g.diff.Assign(region, diff)
	bl, dl := core.Limbs(b), core.Limbs(diff)
	var carry uint64
	for k := 0; k < core.NumLimbs; k++ {
		carry = (bl[k] + dl[k] + carry) >> core.LimbBits
		region.AssignUint64(g.carries[k], carry)
	}
}

// DivWordsGadget constrains quotient = dividend / divisor with the EVM
// convention that division by zero yields zero:
//
//	quotient * divisor + remainder == dividend   (no overflow)
//	divisor != 0  =>  remainder < divisor
//	divisor == 0  =>  quotient == 0
type DivWordsGadget struct {
	dividend, divisor   *Word
	quotient, remainder *Word
	divisorIsZero       *IsZeroGadget
	mulAdd              *MulAddWordsGadget
	lt                  *LtWordsGadget
}

// NewDivWordsGadget configures the division relation
func NewDivWordsGadget(cb *ConstraintBuilder, dividend, divisor *Word) *DivWordsGadget {
	g := &DivWordsGadget{
		dividend:  dividend,
		divisor:   divisor,
		quotient:  cb.QueryWord(),
		remainder: cb.QueryWord(),
	}
	g.divisorIsZero = NewIsZeroGadget(cb, divisor.ByteSum())
	g.mulAdd = NewMulAddWordsGadget(cb, g.quotient, divisor, g.remainder, dividend)
	cb.Require("div_words: quotient * divisor + remainder does not overflow", g.mulAdd.Overflow())

	g.lt = NewLtWordsGadget(cb, g.remainder, divisor)
	cb.Require("div_words: remainder < divisor",
		Not(g.divisorIsZero.Expr()).Mul(Not(g.lt.Expr())))
	cb.Require("div_words: quotient is zero when divisor is zero",
		g.divisorIsZero.Expr().Mul(g.quotient.ByteSum()))
	return g
}

// Quotient returns the compressed quotient
func (g *DivWordsGadget) Quotient() Expr {
	return g.quotient.Expr()
}

// Assign sets every word and auxiliary witness
func (g *DivWordsGadget) Assign(region *Region, dividend, divisor, quotient, remainder *uint256.Int) {
	g.dividend.Assign(region, dividend)
	g.divisor.Assign(region, divisor)
	g.quotient.Assign(region, quotient)
	g.remainder.Assign(region, remainder)

	var byteSum uint64
	for _, b := range core.LE(divisor) {
		byteSum += uint64(b)
	}
	g.divisorIsZero.Assign(region, field.New(byteSum))
	g.mulAdd.Assign(region, quotient, divisor, remainder, dividend)
	g.lt.Assign(region, remainder, divisor)
}
