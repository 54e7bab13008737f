package evm

import (
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// gasBits bounds gas_left - gas_cost; an underflow wraps to near the field
// modulus and falls outside the range.
const gasBits = 48

// txBoundary vanishes iff the next step begins a tx or ends the block
func txBoundary(cb *ConstraintBuilder) Expr {
	next := cb.Next.ExecutionState.Expr()
	return next.Sub(Const(uint64(witness.StateBeginTx))).
		Mul(next.Sub(Const(uint64(witness.StateEndBlock))))
}

// StayInTxGadget requires the next step to continue the current tx by
// witnessing the inverse of txBoundary
type StayInTxGadget struct {
	inverse  Cell
	boundary Expr
}

// NewStayInTxGadget configures boundary * inverse == 1
func NewStayInTxGadget(cb *ConstraintBuilder) *StayInTxGadget {
	g := &StayInTxGadget{inverse: cb.QueryCell(), boundary: txBoundary(cb)}
	cb.RequireEqual("next step stays in the tx", g.boundary.Mul(g.inverse.Expr()), Const(1))
	return g
}

// Assign sets the inverse witness once the next execution state is assigned
func (g *StayInTxGadget) Assign(region *Region) {
	v := region.Eval(g.boundary)
	if v.IsZero() {
		region.Assign(g.inverse, v)
		return
	}
	region.Assign(g.inverse, v.Inverse())
}

// SameContextGadget is shared by every opcode that stays in the current
// call. It checks that opcode is the instruction at the program counter and
// belongs to the execution state, that enough gas is left to pay for it, and
// applies the step state transition with gas_left decreased by the cost.
// The next step must belong to the same tx.
type SameContextGadget struct {
	opcode   Cell
	stayInTx *StayInTxGadget
}

// NewSameContextGadget configures the shared step checks. The transition's
// GasLeft is always Delta(-gasCost).
func NewSameContextGadget(cb *ConstraintBuilder, opcode Cell, transition StepStateTransition, gasCost Expr) *SameContextGadget {
	cb.OpcodeLookup(opcode.Expr())
	cb.ResponsibleOpcodeLookup(opcode.Expr())

	cb.RequireInRange("sufficient gas left", cb.Curr.GasLeft.Expr().Sub(gasCost), gasBits)

	transition.GasLeft = Delta(gasCost.Neg())
	cb.RequireStepStateTransition(transition)
	cb.RequireEqual("same context: code hash", cb.Next.CodeHash.Expr(), cb.Curr.CodeHash.Expr())

	return &SameContextGadget{opcode: opcode, stayInTx: NewStayInTxGadget(cb)}
}

// AssignExecStep sets the opcode cell and the tx boundary witness
func (g *SameContextGadget) AssignExecStep(region *Region, step *witness.ExecStep) {
	region.AssignUint64(g.opcode, uint64(step.Opcode))
	g.stayInTx.Assign(region)
}
