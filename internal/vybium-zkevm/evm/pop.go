package evm

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// PopGadget discards the top of the stack
type PopGadget struct {
	sameContext *SameContextGadget
	value       Cell
}

// NewPopGadget configures POP
func NewPopGadget(cb *ConstraintBuilder) *PopGadget {
	opcode := cb.QueryCell()
	value := cb.QueryCell()
	cb.StackPop(value.Expr())

	transition := StepStateTransition{
		RwCounter:      DeltaInt(1),
		ProgramCounter: DeltaInt(1),
		StackPointer:   DeltaInt(1),
	}
	sameContext := NewSameContextGadget(cb, opcode, transition, Const(vm.GasQuickStep))
	return &PopGadget{sameContext: sameContext, value: value}
}

// Name implements ExecutionGadget
func (g *PopGadget) Name() string { return "POP" }

// AssignExecStep implements ExecutionGadget
func (g *PopGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	g.sameContext.AssignExecStep(region, step)

	rws, err := stepRws(block, step, 1)
	if err != nil {
		return err
	}
	region.Assign(g.value, rws[0].ValueAssignment(region.Randomness()))
	return nil
}
