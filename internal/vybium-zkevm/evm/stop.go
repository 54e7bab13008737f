package evm

import (
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// StopGadget ends a transaction. The next step either begins another tx,
// which sets its own call id, program counter, stack pointer and gas, or
// ends the block. No access is recorded so the rw counter carries over.
type StopGadget struct {
	opcode Cell
}

// NewStopGadget configures STOP, including the implicit STOP past the end of
// code.
func NewStopGadget(cb *ConstraintBuilder) *StopGadget {
	opcode := cb.QueryCell()
	cb.OpcodeLookup(opcode.Expr())
	cb.ResponsibleOpcodeLookup(opcode.Expr())

	cb.Require("stop: next step begins a tx or ends the block", txBoundary(cb))
	cb.RequireStepStateTransition(StepStateTransition{
		CallID:         Any(),
		ProgramCounter: Any(),
		StackPointer:   Any(),
		GasLeft:        Any(),
	})
	return &StopGadget{opcode: opcode}
}

// Name implements ExecutionGadget
func (g *StopGadget) Name() string { return "STOP" }

// AssignExecStep implements ExecutionGadget
func (g *StopGadget) AssignExecStep(region *Region, _ *witness.Block, step *witness.ExecStep) error {
	region.AssignUint64(g.opcode, uint64(step.Opcode))
	return nil
}
