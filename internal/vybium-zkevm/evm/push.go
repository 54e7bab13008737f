package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// PushGadget handles PUSH0 to PUSH32. The n immediate bytes following the
// opcode are read from the bytecode table as data and pushed as one word.
//
// selectors[j] is one iff j < n; value byte j comes from code[pc + n - j].
type PushGadget struct {
	sameContext *SameContextGadget
	value       *Word
	selectors   [core.WordBytes]Cell
	isPush0     *IsZeroGadget
}

// NewPushGadget configures PUSH0..PUSH32
func NewPushGadget(cb *ConstraintBuilder) *PushGadget {
	g := &PushGadget{}
	opcode := cb.QueryCell()
	g.value = cb.QueryWord()
	for j := range g.selectors {
		g.selectors[j] = cb.QueryBool()
	}

	numBytes := opcode.Expr().Sub(Const(uint64(vm.PUSH0)))
	pc := cb.Curr.ProgramCounter.Expr()

	sels := make([]Expr, core.WordBytes)
	for j, s := range g.selectors {
		sels[j] = s.Expr()
		if j > 0 {
			cb.Require(fmt.Sprintf("push: selector %d implies selector %d", j, j-1),
				s.Expr().Mul(Not(g.selectors[j-1].Expr())))
		}
		cb.Require(fmt.Sprintf("push: byte %d beyond length is zero", j),
			Not(s.Expr()).Mul(g.value.Byte(j).Expr()))

		index := pc.Add(numBytes).Sub(Const(uint64(j)))
		cb.Condition(s.Expr(), func() {
			cb.BytecodeLookup(fmt.Sprintf("push: data byte %d", j), index, g.value.Byte(j).Expr(), Const(0))
		})
	}
	cb.RequireEqual("push: selectors count the immediate bytes", Sum(sels...), numBytes)

	g.isPush0 = NewIsZeroGadget(cb, numBytes)
	cb.StackPush(g.value.Expr())

	transition := StepStateTransition{
		RwCounter:      DeltaInt(1),
		ProgramCounter: Delta(numBytes.Add(Const(1))),
		StackPointer:   DeltaInt(-1),
	}
	gasCost := Const(vm.GasFastestStep).Sub(g.isPush0.Expr())
	g.sameContext = NewSameContextGadget(cb, opcode, transition, gasCost)
	return g
}

// Name implements ExecutionGadget
func (g *PushGadget) Name() string { return "PUSH" }

// AssignExecStep implements ExecutionGadget
func (g *PushGadget) AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error {
	g.sameContext.AssignExecStep(region, step)

	rws, err := stepRws(block, step, 1)
	if err != nil {
		return err
	}
	n := uint64(step.Opcode) - uint64(vm.PUSH0)
	g.value.Assign(region, rws[0].StackValue())
	for j, s := range g.selectors {
		region.AssignBool(s, uint64(j) < n)
	}
	g.isPush0.Assign(region, field.New(n))
	return nil
}
