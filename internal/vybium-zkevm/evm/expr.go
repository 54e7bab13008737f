// Package evm implements the per-step constraint system of the verifier.
//
// Each execution state owns a gadget. Gadgets are configured once against a
// ConstraintBuilder, which allocates witness cells and records polynomial
// constraints and lookups over them. For every step of a block the gadget
// assigns its cells from the rw log into a Region, and the verifier checks
// that every constraint evaluates to zero and every enabled lookup hits its
// table.
//
// Constraints are evaluated row-wise: a Region is a single row of field
// elements and an Expr is a polynomial evaluator over that row.
package evm

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

// Expr evaluates a polynomial over an assigned row
type Expr func(row []field.Element) field.Element

// Const returns a constant expression
func Const(v uint64) Expr {
	c := field.New(v)
	return func([]field.Element) field.Element { return c }
}

// ConstInt returns a constant expression for a signed value
func ConstInt(v int64) Expr {
	c := core.Signed(v)
	return func([]field.Element) field.Element { return c }
}

// Add returns e + o
func (e Expr) Add(o Expr) Expr {
	return func(row []field.Element) field.Element { return e(row).Add(o(row)) }
}

// Sub returns e - o
func (e Expr) Sub(o Expr) Expr {
	return func(row []field.Element) field.Element { return e(row).Sub(o(row)) }
}

// Mul returns e * o
func (e Expr) Mul(o Expr) Expr {
	return func(row []field.Element) field.Element { return e(row).Mul(o(row)) }
}

// Neg returns -e
func (e Expr) Neg() Expr {
	return func(row []field.Element) field.Element { return field.Zero.Sub(e(row)) }
}

// Not returns 1 - e for a boolean expression
func Not(e Expr) Expr {
	return Const(1).Sub(e)
}

// Sum adds expressions
func Sum(es ...Expr) Expr {
	return func(row []field.Element) field.Element {
		acc := field.Zero
		for _, e := range es {
			acc = acc.Add(e(row))
		}
		return acc
	}
}

// Product multiplies expressions; the empty product is one
func Product(es ...Expr) Expr {
	return func(row []field.Element) field.Element {
		acc := field.One
		for _, e := range es {
			acc = acc.Mul(e(row))
		}
		return acc
	}
}

// Select returns cond*whenTrue + (1-cond)*whenFalse
func Select(cond, whenTrue, whenFalse Expr) Expr {
	return cond.Mul(whenTrue).Add(Not(cond).Mul(whenFalse))
}

// Cell is a witness column in the step row
type Cell struct {
	column int
}

// Expr returns the expression reading this cell
func (c Cell) Expr() Expr {
	col := c.column
	return func(row []field.Element) field.Element { return row[col] }
}

// Column returns the cell's position in the row
func (c Cell) Column() int {
	return c.column
}

// Region holds the assignment of a single step row
type Region struct {
	row        []field.Element
	randomness field.Element
}

// NewRegion creates a zeroed row of the given width
func NewRegion(width int, randomness field.Element) *Region {
	row := make([]field.Element, width)
	for i := range row {
		row[i] = field.Zero
	}
	return &Region{row: row, randomness: randomness}
}

// Assign writes v into c
func (r *Region) Assign(c Cell, v field.Element) {
	r.row[c.column] = v
}

// AssignUint64 writes a small integer into c
func (r *Region) AssignUint64(c Cell, v uint64) {
	r.row[c.column] = field.New(v)
}

// AssignBool writes zero or one into c
func (r *Region) AssignBool(c Cell, b bool) {
	r.row[c.column] = core.Bool(b)
}

// Value reads the assigned value of c
func (r *Region) Value(c Cell) field.Element {
	return r.row[c.column]
}

// Randomness returns the block randomness of this region
func (r *Region) Randomness() field.Element {
	return r.randomness
}

// Eval evaluates e over the row
func (r *Region) Eval(e Expr) field.Element {
	return e(r.row)
}
