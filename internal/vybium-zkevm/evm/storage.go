package evm

import (
	"github.com/ethereum/go-ethereum/params"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// storageCells are the cells SLOAD and SSTORE share. Values are compressed
// words: equal words have equal compressions and a zero word compresses to
// zero.
type storageCells struct {
	txID      Cell
	callee    Cell
	key       Cell
	value     Cell
	committed Cell
	isWarm    Cell
}

func queryStorageCells(cb *ConstraintBuilder) storageCells {
	return storageCells{
		txID:      cb.QueryCell(),
		callee:    cb.QueryCell(),
		key:       cb.QueryCell(),
		value:     cb.QueryCell(),
		committed: cb.QueryCell(),
		isWarm:    cb.QueryBool(),
	}
}

// assign fills the shared cells from the call context, storage and access
// list accesses of a step
func (c *storageCells) assign(region *Region, txID, callee, storage, accessList *witness.Rw) {
	r := region.Randomness()
	region.Assign(c.txID, txID.ValueAssignment(r))
	region.Assign(c.callee, callee.ValueAssignment(r))
	region.Assign(c.key, core.WordRLC(&storage.StorageKey, r))
	region.Assign(c.value, storage.ValueAssignment(r))
	region.Assign(c.committed, core.WordRLC(&storage.CommittedValue, r))
	region.AssignBool(c.isWarm, !accessList.ValuePrev.IsZero())
}

// SloadGadget reads a slot of the callee's storage and pushes it. The slot
// is warmed in the tx access list.
type SloadGadget struct {
	sameContext *SameContextGadget
	cells       storageCells
}

// NewSloadGadget configures SLOAD
func NewSloadGadget(cb *ConstraintBuilder) *SloadGadget {
	opcode := cb.QueryCell()
	c := queryStorageCells(cb)

	cb.CallContext(witness.CallContextTxID, c.txID.Expr())
	cb.CallContext(witness.CallContextCalleeAddress, c.callee.Expr())
	cb.StackPop(c.key.Expr())
	cb.AccountStorageRead(c.txID.Expr(), c.callee.Expr(), c.key.Expr(), c.value.Expr(), c.committed.Expr())
	cb.StackPush(c.value.Expr())
	cb.TxAccessListAccountStorageWrite(c.txID.Expr(), c.callee.Expr(), c.key.Expr(), Const(1), c.isWarm.Expr())

	gasCost := Select(c.isWarm.Expr(),
		Const(params.WarmStorageReadCostEIP2929),
		Const(params.ColdSloadCostEIP2929))

	transition := StepStateTransition{
		RwCounter:      DeltaInt(int64(cb.RwCounterOffset())),
		ProgramCounter: DeltaInt(1),
	}
	sameContext := NewSameContextGadget(cb, opcode, transition, gasCost)
	return &SloadGadget{sameContext: sameContext, cells: c}
}

// Name implements ExecutionGadget
func (g *SloadGadget) Name() string { return "SLOAD" }

// AssignExecStep implements ExecutionGadget
func (g *SloadGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	g.sameContext.AssignExecStep(region, step)

	rws, err := stepRws(block, step, 6)
	if err != nil {
		return err
	}
	g.cells.assign(region, rws[0], rws[1], rws[3], rws[5])
	return nil
}

// SstoreGadget writes a slot of the callee's storage. Gas follows EIP-2929
// and EIP-2200 net metering and the call must not be static.
type SstoreGadget struct {
	sameContext     *SameContextGadget
	cells           storageCells
	valuePrev       Cell
	valueEqPrev     *IsEqualGadget
	prevEqCommitted *IsEqualGadget
	committedIsZero *IsZeroGadget
}

// NewSstoreGadget configures SSTORE
func NewSstoreGadget(cb *ConstraintBuilder) *SstoreGadget {
	opcode := cb.QueryCell()
	c := queryStorageCells(cb)
	valuePrev := cb.QueryCell()

	cb.RequireInRange("sstore: gas left above sentry",
		cb.Curr.GasLeft.Expr().Sub(Const(params.SstoreSentryGasEIP2200+1)), gasBits)

	cb.CallContext(witness.CallContextTxID, c.txID.Expr())
	cb.CallContext(witness.CallContextIsStatic, Const(0))
	cb.CallContext(witness.CallContextCalleeAddress, c.callee.Expr())
	cb.StackPop(c.key.Expr())
	cb.StackPop(c.value.Expr())
	cb.AccountStorageWrite(c.txID.Expr(), c.callee.Expr(), c.key.Expr(), c.value.Expr(), valuePrev.Expr(), c.committed.Expr())
	cb.TxAccessListAccountStorageWrite(c.txID.Expr(), c.callee.Expr(), c.key.Expr(), Const(1), c.isWarm.Expr())

	g := &SstoreGadget{
		cells:           c,
		valuePrev:       valuePrev,
		valueEqPrev:     NewIsEqualGadget(cb, c.value.Expr(), valuePrev.Expr()),
		prevEqCommitted: NewIsEqualGadget(cb, valuePrev.Expr(), c.committed.Expr()),
		committedIsZero: NewIsZeroGadget(cb, c.committed.Expr()),
	}

	warmRead := Const(params.WarmStorageReadCostEIP2929)
	cleanSlot := Select(g.committedIsZero.Expr(),
		Const(params.SstoreSetGasEIP2200),
		Const(params.SstoreResetGasEIP2200-params.ColdSloadCostEIP2929))
	dirtyOrNoop := Select(g.prevEqCommitted.Expr(), cleanSlot, warmRead)
	gasCost := Select(g.valueEqPrev.Expr(), warmRead, dirtyOrNoop).
		Add(Not(c.isWarm.Expr()).Mul(Const(params.ColdSloadCostEIP2929)))

	transition := StepStateTransition{
		RwCounter:      DeltaInt(int64(cb.RwCounterOffset())),
		ProgramCounter: DeltaInt(1),
		StackPointer:   DeltaInt(2),
	}
	g.sameContext = NewSameContextGadget(cb, opcode, transition, gasCost)
	return g
}

// Name implements ExecutionGadget
func (g *SstoreGadget) Name() string { return "SSTORE" }

// AssignExecStep implements ExecutionGadget
func (g *SstoreGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	g.sameContext.AssignExecStep(region, step)

	rws, err := stepRws(block, step, 7)
	if err != nil {
		return err
	}
	storage := rws[5]
	g.cells.assign(region, rws[0], rws[2], storage, rws[6])

	r := region.Randomness()
	value := storage.ValueAssignment(r)
	prev := core.WordRLC(&storage.ValuePrev, r)
	committed := core.WordRLC(&storage.CommittedValue, r)
	region.Assign(g.valuePrev, prev)
	g.valueEqPrev.Assign(region, value, prev)
	g.prevEqCommitted.Assign(region, prev, committed)
	g.committedIsZero.Assign(region, committed)
	return nil
}
