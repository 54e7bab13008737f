package state

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

var (
	testSender   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

// storageCode stores 0x2a at slot 1, loads slots 1 and 0x100, stores 0x2a
// at slot 1 again and clears slot 2
func storageCode() []byte {
	return []byte{
		byte(vm.PUSH1), 0x2a, byte(vm.PUSH1), 0x01, byte(vm.SSTORE),
		byte(vm.PUSH1), 0x01, byte(vm.SLOAD), byte(vm.POP),
		byte(vm.PUSH2), 0x01, 0x00, byte(vm.SLOAD), byte(vm.POP),
		byte(vm.PUSH1), 0x2a, byte(vm.PUSH1), 0x01, byte(vm.SSTORE),
		byte(vm.PUSH0), byte(vm.PUSH1), 0x02, byte(vm.SSTORE),
	}
}

func storageBlock(t *testing.T, txs int) *witness.Block {
	t.Helper()
	b := witness.NewBuilder().
		WithStorage(testContract, uint256.NewInt(2), uint256.NewInt(9)).
		WithStorage(testContract, uint256.NewInt(0x100), uint256.NewInt(3)).
		WithPrevStateRoot(field.New(100))
	for i := 0; i < txs; i++ {
		require.NoError(t, b.AddTx(witness.Tx{From: testSender, To: testContract, Code: storageCode(), Gas: 1_000_000}))
	}
	block := b.Build()
	require.NoError(t, block.Validate())
	return block
}

// logBlock wraps hand-written accesses, numbering their counters, under a
// single step claiming all of them
func logBlock(rws ...witness.Rw) *witness.Block {
	log := witness.NewRwLog(len(rws))
	step := witness.ExecStep{RwIndices: make([]int, 0, len(rws))}
	for _, rw := range rws {
		rw.RwCounter = log.NextCounter()
		step.RwIndices = append(step.RwIndices, log.Append(rw))
	}
	return &witness.Block{Steps: []witness.ExecStep{step}, Rws: log, Randomness: field.New(7)}
}

func relations(violations []*ConsistencyViolation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Relation)
	}
	return out
}

func TestVerifyRwTableBuilderBlock(t *testing.T) {
	block := storageBlock(t, 2)
	require.Empty(t, VerifyRwTable(block))
}

func TestVerifyRwTableCounters(t *testing.T) {
	block := storageBlock(t, 1)
	block.Rws.At(3).RwCounter = 99

	violations := VerifyRwTable(block)
	require.Contains(t, relations(violations), "rw counter")
	for _, v := range violations {
		assert.True(t, errors.Is(v, ErrConsistencyViolation))
	}
}

func TestVerifyRwTableOwnership(t *testing.T) {
	block := storageBlock(t, 1)
	block.Steps[1].RwIndices = append(block.Steps[1].RwIndices, block.Steps[0].RwIndices[0])

	require.Equal(t, []string{"rw ownership", "permutation"}, relations(VerifyRwTable(block)))
}

func TestVerifyRwTablePermutation(t *testing.T) {
	t.Run("unclaimed write", func(t *testing.T) {
		block := storageBlock(t, 1)
		block.Rws.Append(witness.Rw{
			Tag:        witness.RwAccountStorage,
			RwCounter:  block.Rws.NextCounter(),
			IsWrite:    true,
			ID:         1,
			Address:    testContract,
			StorageKey: *uint256.NewInt(5),
			Value:      *uint256.NewInt(7),
		})

		violations := VerifyRwTable(block)
		require.Equal(t, []string{"permutation"}, relations(violations))
		assert.Equal(t, uint64(block.Rws.Len()), violations[0].Counter)
		assert.Equal(t, "access claimed by no step", violations[0].Detail)
	})

	t.Run("dropped claim", func(t *testing.T) {
		block := storageBlock(t, 1)
		block.Steps[0].RwIndices = block.Steps[0].RwIndices[1:]

		require.Equal(t, []string{"permutation"}, relations(VerifyRwTable(block)))
	})

	t.Run("no steps", func(t *testing.T) {
		block := storageBlock(t, 1)
		block.Steps = nil

		require.Contains(t, relations(VerifyRwTable(block)), "permutation")
	})
}

func TestVerifyRwTableGroups(t *testing.T) {
	stack := func(write bool, sp uint64, v uint64) witness.Rw {
		return witness.Rw{Tag: witness.RwStack, IsWrite: write, ID: 1, StackPointer: sp, Value: *uint256.NewInt(v)}
	}
	memory := func(write bool, addr uint64, v uint64) witness.Rw {
		return witness.Rw{Tag: witness.RwMemory, IsWrite: write, ID: 1, MemoryAddress: addr, Value: *uint256.NewInt(v)}
	}
	storage := func(write bool, v, prev, committed uint64) witness.Rw {
		return witness.Rw{
			Tag: witness.RwAccountStorage, IsWrite: write, ID: 1, Address: testContract,
			StorageKey: *uint256.NewInt(1), Value: *uint256.NewInt(v),
			ValuePrev: *uint256.NewInt(prev), CommittedValue: *uint256.NewInt(committed),
		}
	}

	tests := []struct {
		name     string
		rws      []witness.Rw
		expected []string
	}{
		{
			name: "stack write then read",
			rws:  []witness.Rw{stack(true, 1023, 5), stack(false, 1023, 5)},
		},
		{
			name:     "stack read before write",
			rws:      []witness.Rw{stack(false, 1023, 0)},
			expected: []string{"stack read before write"},
		},
		{
			name:     "stale stack read",
			rws:      []witness.Rw{stack(true, 1023, 5), stack(true, 1023, 6), stack(false, 1023, 5)},
			expected: []string{"read after write"},
		},
		{
			name: "interleaved slots",
			rws:  []witness.Rw{stack(true, 1023, 5), stack(true, 1022, 6), stack(false, 1022, 6), stack(false, 1023, 5)},
		},
		{
			name: "fresh memory reads zero",
			rws:  []witness.Rw{memory(false, 64, 0), memory(true, 64, 9), memory(false, 64, 9)},
		},
		{
			name:     "fresh memory reads nonzero",
			rws:      []witness.Rw{memory(false, 64, 3)},
			expected: []string{"memory initial value"},
		},
		{
			name: "storage chain",
			rws:  []witness.Rw{storage(false, 4, 4, 4), storage(true, 5, 4, 4), storage(false, 5, 5, 4)},
		},
		{
			name:     "broken storage chain",
			rws:      []witness.Rw{storage(true, 5, 4, 4), storage(true, 6, 4, 4)},
			expected: []string{"value prev chain"},
		},
		{
			name:     "storage read changes value",
			rws:      []witness.Rw{storage(false, 5, 4, 4)},
			expected: []string{"read changes value"},
		},
		{
			name:     "committed value changes",
			rws:      []witness.Rw{storage(true, 5, 4, 4), storage(true, 6, 5, 5)},
			expected: []string{"committed value"},
		},
		{
			name: "call context write",
			rws: []witness.Rw{{
				Tag: witness.RwCallContext, IsWrite: true, ID: 1,
				FieldTag: uint64(witness.CallContextTxID), Value: *uint256.NewInt(1),
			}},
			expected: []string{"call context write"},
		},
		{
			name: "prewarmed slot",
			rws: []witness.Rw{{
				Tag: witness.RwTxAccessListAccountStorage, IsWrite: true, ID: 1, Address: testContract,
				Value: *uint256.NewInt(1), ValuePrev: *uint256.NewInt(1),
			}},
			expected: []string{"initial value"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := VerifyRwTable(logBlock(tt.rws...))
			if len(tt.expected) == 0 {
				require.Empty(t, violations)
				return
			}
			require.Equal(t, tt.expected, relations(violations))
		})
	}
}

func TestRwTableSorting(t *testing.T) {
	block := logBlock(
		witness.Rw{Tag: witness.RwAccount, Address: testSender, FieldTag: uint64(witness.AccountNonce), IsWrite: true, Value: *uint256.NewInt(1)},
		witness.Rw{Tag: witness.RwStack, ID: 1, StackPointer: 1023, IsWrite: true},
		witness.Rw{Tag: witness.RwStack, ID: 1, StackPointer: 1022, IsWrite: true},
		witness.Rw{Tag: witness.RwStack, ID: 1, StackPointer: 1023},
	)
	table := NewRwTable(block.Rws)
	require.Equal(t, 4, table.Len())

	var groups [][]int
	table.Groups(func(_ witness.RwKey, indices []int) {
		groups = append(groups, append([]int(nil), indices...))
	})
	// stack slots by pointer, then the account
	assert.Equal(t, [][]int{{2}, {1, 3}, {0}}, groups)
}
