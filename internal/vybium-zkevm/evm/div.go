package evm

import (
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// DivGadget pops a dividend and a divisor and pushes their quotient,
// zero when the divisor is zero.
type DivGadget struct {
	sameContext *SameContextGadget
	divWords    *DivWordsGadget
}

// NewDivGadget configures DIV
func NewDivGadget(cb *ConstraintBuilder) *DivGadget {
	opcode := cb.QueryCell()

	dividend := cb.QueryWord()
	divisor := cb.QueryWord()
	divWords := NewDivWordsGadget(cb, dividend, divisor)

	cb.StackPop(dividend.Expr())
	cb.StackPop(divisor.Expr())
	cb.StackPush(divWords.Quotient())

	transition := StepStateTransition{
		RwCounter:      DeltaInt(3),
		ProgramCounter: DeltaInt(1),
		StackPointer:   DeltaInt(1),
	}
	sameContext := NewSameContextGadget(cb, opcode, transition, Const(vm.GasFastStep))

	return &DivGadget{sameContext: sameContext, divWords: divWords}
}

// Name implements ExecutionGadget
func (g *DivGadget) Name() string { return "DIV" }

// AssignExecStep implements ExecutionGadget
func (g *DivGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	g.sameContext.AssignExecStep(region, step)

	rws, err := stepRws(block, step, 3)
	if err != nil {
		return err
	}
	dividend, divisor, quotient := rws[0].StackValue(), rws[1].StackValue(), rws[2].StackValue()
	remainder := new(uint256.Int).Sub(dividend, new(uint256.Int).Mul(divisor, quotient))

	g.divWords.Assign(region, dividend, divisor, quotient, remainder)
	return nil
}
