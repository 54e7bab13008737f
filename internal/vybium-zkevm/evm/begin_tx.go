package evm

import (
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// BeginTxGadget opens a transaction. It bumps the sender's nonce, fixes the
// call context the opcodes read back and starts execution at pc 0 with an
// empty stack in the code its call context names. The call id is the rw
// counter of the step, so no two calls share stack slots.
//
// Gas is carried into the first opcode unchanged; intrinsic gas is not
// charged.
type BeginTxGadget struct {
	txID     Cell
	caller   Cell
	callee   Cell
	nonce    Cell
	stayInTx *StayInTxGadget
}

// NewBeginTxGadget configures BEGIN_TX
func NewBeginTxGadget(cb *ConstraintBuilder) *BeginTxGadget {
	g := &BeginTxGadget{
		txID:   cb.QueryCell(),
		caller: cb.QueryCell(),
		callee: cb.QueryCell(),
		nonce:  cb.QueryCell(),
	}

	cb.RequireEqual("begin tx: call id is the rw counter", cb.Curr.CallID.Expr(), cb.Curr.RwCounter.Expr())

	cb.AccountWrite(g.caller.Expr(), witness.AccountNonce, g.nonce.Expr().Add(Const(1)), g.nonce.Expr())
	cb.CallContext(witness.CallContextTxID, g.txID.Expr())
	cb.CallContext(witness.CallContextCallerAddress, g.caller.Expr())
	cb.CallContext(witness.CallContextCalleeAddress, g.callee.Expr())
	cb.CallContext(witness.CallContextIsStatic, Const(0))
	cb.CallContext(witness.CallContextCodeHash, cb.Curr.CodeHash.Expr())

	g.stayInTx = NewStayInTxGadget(cb)
	cb.RequireStepStateTransition(StepStateTransition{
		RwCounter:      DeltaInt(int64(cb.RwCounterOffset())),
		ProgramCounter: To(Const(0)),
		StackPointer:   To(Const(witness.StackLimit)),
	})
	cb.RequireEqual("begin tx: code hash", cb.Next.CodeHash.Expr(), cb.Curr.CodeHash.Expr())
	return g
}

// Name implements ExecutionGadget
func (g *BeginTxGadget) Name() string { return "BEGIN_TX" }

// AssignExecStep implements ExecutionGadget
func (g *BeginTxGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	rws, err := stepRws(block, step, 6)
	if err != nil {
		return err
	}
	r := region.Randomness()
	nonce, _ := rws[0].ValuePrevAssignment(r)
	region.Assign(g.nonce, nonce)
	region.Assign(g.txID, rws[1].ValueAssignment(r))
	region.Assign(g.caller, rws[2].ValueAssignment(r))
	region.Assign(g.callee, rws[3].ValueAssignment(r))
	g.stayInTx.Assign(region)
	return nil
}
