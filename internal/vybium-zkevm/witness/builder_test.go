package witness

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testSender   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

// divCode is PUSH32 divisor, PUSH32 dividend, DIV, STOP
func divCode(dividend, divisor *uint256.Int) []byte {
	code := []byte{byte(vm.PUSH32)}
	d := divisor.Bytes32()
	code = append(code, d[:]...)
	code = append(code, byte(vm.PUSH32))
	n := dividend.Bytes32()
	code = append(code, n[:]...)
	return append(code, byte(vm.DIV), byte(vm.STOP))
}

func TestBuilderDiv(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: divCode(uint256.NewInt(0xFFFFFF), uint256.NewInt(0xABC)), Gas: 100}))
	block := b.Build()
	require.NoError(t, block.Validate())

	require.Len(t, block.Steps, 5)
	div := block.Steps[3]
	require.Equal(t, StateDiv, div.ExecutionState)
	require.Equal(t, vm.DIV, div.Opcode)
	require.Equal(t, uint64(StackLimit-2), div.StackPointer)
	require.Len(t, div.RwIndices, 3)

	// tx setup, two pushes, then the division accesses
	require.Equal(t, uint64(9), div.RwCounter)
	for k, idx := range div.RwIndices {
		rw := block.Rws.At(idx)
		require.Equal(t, div.RwCounter+uint64(k), rw.RwCounter)
		require.Equal(t, RwStack, rw.Tag)
	}
	dividend, divisor, quotient := block.Rws.At(div.RwIndices[0]), block.Rws.At(div.RwIndices[1]), block.Rws.At(div.RwIndices[2])
	require.False(t, dividend.IsWrite)
	require.False(t, divisor.IsWrite)
	require.True(t, quotient.IsWrite)
	require.Equal(t, uint64(0xFFFFFF), dividend.Value.Uint64())
	require.Equal(t, uint64(0xABC), divisor.Value.Uint64())
	require.Equal(t, uint64(0xFFFFFF/0xABC), quotient.Value.Uint64())
	require.Equal(t, div.StackPointer+1, quotient.StackPointer)

	stop := block.Steps[4]
	require.Equal(t, StateStop, stop.ExecutionState)
	require.Equal(t, uint64(100-3-3-5), stop.GasLeft)
	require.Equal(t, div.ProgramCounter+1, stop.ProgramCounter)
}

func TestBuilderBeginTx(t *testing.T) {
	b := NewBuilder().WithNonce(testSender, 4)
	code := divCode(uint256.NewInt(9), uint256.NewInt(3))
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: code, Gas: 100}))
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: code, Gas: 100}))
	block := b.Build()
	require.NoError(t, block.Validate())

	var begins []ExecStep
	for i, step := range block.Steps {
		if step.ExecutionState != StateBeginTx {
			continue
		}
		begins = append(begins, step)
		require.Greater(t, len(block.Steps), i+1)
		first := block.Steps[i+1]
		require.Equal(t, uint64(0), first.ProgramCounter)
		require.Equal(t, uint64(StackLimit), first.StackPointer)
		require.Equal(t, step.CallID, first.CallID)
		require.Equal(t, step.GasLeft, first.GasLeft)
		require.Equal(t, step.RwCounter+6, first.RwCounter)
	}
	require.Len(t, begins, 2)
	require.Equal(t, StateBeginTx, block.Steps[0].ExecutionState)
	require.Equal(t, StateEndBlock, block.NextExecutionState(len(block.Steps)-1))

	for tx, step := range begins {
		require.Equal(t, step.RwCounter, step.CallID)
		require.Len(t, step.RwIndices, 6)

		nonce := block.Rws.At(step.RwIndices[0])
		require.Equal(t, RwAccount, nonce.Tag)
		require.True(t, nonce.IsWrite)
		require.Equal(t, uint64(4+tx), nonce.ValuePrev.Uint64())
		require.Equal(t, uint64(5+tx), nonce.Value.Uint64())

		tags := make([]CallContextFieldTag, 0, 5)
		for _, idx := range step.RwIndices[1:] {
			rw := block.Rws.At(idx)
			require.Equal(t, RwCallContext, rw.Tag)
			require.Equal(t, step.CallID, rw.ID)
			tags = append(tags, CallContextFieldTag(rw.FieldTag))
		}
		require.Equal(t, []CallContextFieldTag{
			CallContextTxID, CallContextCallerAddress, CallContextCalleeAddress,
			CallContextIsStatic, CallContextCodeHash,
		}, tags)
		require.Equal(t, uint64(tx+1), block.Rws.At(step.RwIndices[1]).Value.Uint64())
		require.Equal(t, step.CodeHash, common.Hash(block.Rws.At(step.RwIndices[5]).Value.Bytes32()))
	}
	require.NotEqual(t, begins[0].CallID, begins[1].CallID)
}

func TestBuilderStorage(t *testing.T) {
	key := uint256.NewInt(7)
	code := []byte{
		byte(vm.PUSH1), 0x07, byte(vm.SLOAD), byte(vm.POP),
		byte(vm.PUSH1), 0x2a, byte(vm.PUSH1), 0x07, byte(vm.SSTORE),
		byte(vm.STOP),
	}
	b := NewBuilder().WithStorage(testContract, key, uint256.NewInt(5))
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: code, Gas: 50_000}))
	block := b.Build()
	require.NoError(t, block.Validate())

	var sload, sstore *ExecStep
	for i := range block.Steps {
		switch block.Steps[i].ExecutionState {
		case StateSload:
			sload = &block.Steps[i]
		case StateSstore:
			sstore = &block.Steps[i]
		}
	}
	require.NotNil(t, sload)
	require.NotNil(t, sstore)
	require.Len(t, sload.RwIndices, 6)
	require.Len(t, sstore.RwIndices, 7)

	read := block.Rws.At(sload.RwIndices[3])
	require.Equal(t, RwAccountStorage, read.Tag)
	require.Equal(t, uint64(5), read.Value.Uint64())
	require.Equal(t, uint64(5), read.CommittedValue.Uint64())

	write := block.Rws.At(sstore.RwIndices[5])
	require.True(t, write.IsWrite)
	require.Equal(t, uint64(42), write.Value.Uint64())
	require.Equal(t, uint64(5), write.ValuePrev.Uint64())

	// cold SLOAD, then a warm SSTORE resetting a committed nonzero slot
	require.Equal(t, sload.GasLeft-params.ColdSloadCostEIP2929, block.Steps[3].GasLeft)
	stop := block.Steps[len(block.Steps)-1]
	require.Equal(t, sstore.GasLeft-(params.SstoreResetGasEIP2200-params.ColdSloadCostEIP2929), stop.GasLeft)
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		gas  uint64
		err  error
	}{
		{"underflow", []byte{byte(vm.POP)}, 100, ErrStackUnderflow},
		{"unsupported", []byte{byte(vm.ADD)}, 100, ErrUnsupportedOpcode},
		{"truncated push", []byte{byte(vm.PUSH2), 0x01}, 100, ErrTruncatedPush},
		{"out of gas", []byte{byte(vm.PUSH1), 0x01, byte(vm.PUSH1), 0x01, byte(vm.DIV)}, 8, ErrOutOfGas},
		{"sstore sentry", []byte{byte(vm.PUSH1), 0x01, byte(vm.PUSH1), 0x01, byte(vm.SSTORE)}, 2306, ErrOutOfGas},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().AddTx(Tx{From: testSender, To: testContract, Code: tt.code, Gas: tt.gas})
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSstoreGasCost(t *testing.T) {
	zero, one, two := uint256.NewInt(0), uint256.NewInt(1), uint256.NewInt(2)
	tests := []struct {
		name                   string
		warm                   bool
		value, prev, committed *uint256.Int
		want                   uint64
	}{
		{"no-op warm", true, one, one, one, 100},
		{"no-op cold", false, one, one, one, 2200},
		{"fresh set", true, one, zero, zero, 20000},
		{"reset", true, two, one, one, 2900},
		{"dirty", true, two, one, zero, 100},
		{"cold fresh set", false, one, zero, zero, 22100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SstoreGasCost(tt.warm, tt.value, tt.prev, tt.committed))
		})
	}
}
