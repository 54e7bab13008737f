package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

func TestConfigure(t *testing.T) {
	rwCounts := map[witness.ExecutionState]int{
		witness.StateStop:    0,
		witness.StatePush:    1,
		witness.StatePop:     1,
		witness.StateDiv:     3,
		witness.StateSload:   6,
		witness.StateSstore:  7,
		witness.StateBeginTx: 6,
	}
	for _, state := range witness.ExecutionStates {
		t.Run(state.String(), func(t *testing.T) {
			cg := Configure(state)
			require.Equal(t, state, cg.CS.State)
			assert.Equal(t, rwCounts[state], cg.CS.RwCount)
			assert.NotEmpty(t, cg.CS.Lookups)
			assert.Equal(t, state.String(), cg.Gadget.Name())
		})
	}
}

func TestRequireStepStateTransition(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		cb := NewConstraintBuilder("missing", witness.StateDiv)
		require.Panics(t, func() { cb.Build() })
	})

	t.Run("twice", func(t *testing.T) {
		cb := NewConstraintBuilder("twice", witness.StateDiv)
		cb.RequireStepStateTransition(StepStateTransition{})
		require.Panics(t, func() { cb.RequireStepStateTransition(StepStateTransition{}) })
	})

	t.Run("constraint names", func(t *testing.T) {
		cb := NewConstraintBuilder("names", witness.StateDiv)
		cb.RequireStepStateTransition(StepStateTransition{
			RwCounter:      DeltaInt(2),
			ProgramCounter: To(Const(7)),
			GasLeft:        Any(),
		})
		cs := cb.Build()
		names := make([]string, 0, len(cs.Constraints))
		for _, c := range cs.Constraints {
			names = append(names, c.Name)
		}
		require.Equal(t, []string{
			"state transition: rw_counter Delta",
			"state transition: call_id Same",
			"state transition: program_counter To",
			"state transition: stack_pointer Same",
		}, names)
	})
}

func TestStackOffsets(t *testing.T) {
	cb := NewConstraintBuilder("stack", witness.StateDiv)
	cb.StackPop(Const(1))
	cb.StackPop(Const(2))
	cb.StackPush(Const(3))
	assert.Equal(t, 3, cb.RwCounterOffset())
	assert.Equal(t, int64(1), cb.StackPointerOffset())

	// the push lands on the slot of the second pop
	region := NewRegion(cb.width, testRandomness)
	region.AssignUint64(cb.Curr.StackPointer, 1000)
	region.AssignUint64(cb.Curr.RwCounter, 10)
	addresses := make([]uint64, 0, 3)
	counters := make([]uint64, 0, 3)
	for _, l := range cb.lookups {
		require.Equal(t, TableRw, l.Table)
		counters = append(counters, region.Eval(l.Inputs[witness.RwColCounter]).Value())
		addresses = append(addresses, region.Eval(l.Inputs[witness.RwColAddress]).Value())
	}
	assert.Equal(t, []uint64{1000, 1001, 1001}, addresses)
	assert.Equal(t, []uint64{10, 11, 12}, counters)
}

func TestRequireInRange(t *testing.T) {
	cb := NewConstraintBuilder("range", witness.StateDiv)
	require.Panics(t, func() { cb.RequireInRange("too wide", Const(0), 64) })

	assert.True(t, containsFixed(fixedRow(FixedRange, 8, 255)))
	assert.False(t, containsFixed(fixedRow(FixedRange, 8, 256)))
	assert.True(t, containsFixed(fixedRow(FixedResponsibleOpcode, uint64(witness.StateDiv), 0x04)))
	assert.False(t, containsFixed(fixedRow(FixedResponsibleOpcode, uint64(witness.StateDiv), 0x05)))
	assert.True(t, containsFixed(fixedRow(FixedResponsibleOpcode, uint64(witness.StatePush), 0x7f)))
	assert.False(t, containsFixed(fixedRow(FixedResponsibleOpcode, 99, 0x00)))
}

func fixedRow(tag FixedTableTag, a, b uint64) []field.Element {
	return []field.Element{field.New(uint64(tag)), field.New(a), field.New(b)}
}

func TestBytecodeMask(t *testing.T) {
	// PUSH2 0x60 0x01, PUSH0, PUSH1 0x00
	b := newBytecode([]byte{0x61, 0x60, 0x01, 0x5f, 0x60, 0x00})
	assert.Equal(t, []bool{true, false, false, true, true, false}, b.isCode)

	value, isCode, ok := b.row(6)
	require.True(t, ok)
	assert.Equal(t, byte(0x00), value)
	assert.True(t, isCode)

	_, _, ok = b.row(7)
	assert.False(t, ok)
}
