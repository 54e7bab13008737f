package evm

import (
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// bytecode is one code blob with its instruction mask
type bytecode struct {
	code   []byte
	isCode []bool
}

// newBytecode marks every byte that is an instruction rather than push data
func newBytecode(code []byte) *bytecode {
	isCode := make([]bool, len(code))
	for i := 0; i < len(code); {
		isCode[i] = true
		op := vm.OpCode(code[i])
		i++
		if op >= vm.PUSH1 && op <= vm.PUSH32 {
			i += int(op - vm.PUSH0)
		}
	}
	return &bytecode{code: code, isCode: isCode}
}

// row returns (value, is_code) at index. The byte past the end of code is an
// implicit STOP.
func (b *bytecode) row(index uint64) (value byte, isCode bool, ok bool) {
	switch {
	case index < uint64(len(b.code)):
		return b.code[index], b.isCode[index], true
	case index == uint64(len(b.code)):
		return byte(vm.STOP), true, true
	default:
		return 0, false, false
	}
}

// BlockTables answers lookups against the tables of one block
type BlockTables struct {
	rws       map[uint64][witness.NumRwColumns]field.Element
	bytecodes map[uint64]*bytecode
}

// NewBlockTables assembles the rw and bytecode tables of a block under its
// randomness
func NewBlockTables(block *witness.Block) *BlockTables {
	t := &BlockTables{
		rws:       make(map[uint64][witness.NumRwColumns]field.Element, block.Rws.Len()),
		bytecodes: make(map[uint64]*bytecode, len(block.Bytecodes)),
	}
	for i := range block.Rws.Rows() {
		rw := block.Rws.At(i)
		t.rws[rw.RwCounter] = rw.TableRow(block.Randomness)
	}
	for hash, code := range block.Bytecodes {
		t.bytecodes[core.HashRLC(hash, block.Randomness).Value()] = newBytecode(code)
	}
	return t
}

// Contains reports whether values is a row of table
func (t *BlockTables) Contains(table Table, values []field.Element) bool {
	switch table {
	case TableFixed:
		return containsFixed(values)
	case TableRw:
		return t.containsRw(values)
	case TableBytecode:
		return t.containsBytecode(values)
	default:
		return false
	}
}

func (t *BlockTables) containsRw(values []field.Element) bool {
	if len(values) != witness.NumRwColumns {
		return false
	}
	row, ok := t.rws[values[witness.RwColCounter].Value()]
	if !ok {
		return false
	}
	for i, v := range values {
		if !row[i].Equal(v) {
			return false
		}
	}
	return true
}

func (t *BlockTables) containsBytecode(values []field.Element) bool {
	if len(values) != NumBytecodeColumns {
		return false
	}
	b, ok := t.bytecodes[values[BytecodeColHash].Value()]
	if !ok {
		return false
	}
	value, isCode, ok := b.row(values[BytecodeColIndex].Value())
	if !ok {
		return false
	}
	return values[BytecodeColValue].Equal(field.New(uint64(value))) &&
		values[BytecodeColIsCode].Equal(core.Bool(isCode))
}

// containsFixed evaluates the fixed table instead of materializing it
func containsFixed(values []field.Element) bool {
	if len(values) != 3 {
		return false
	}
	switch FixedTableTag(values[0].Value()) {
	case FixedRange:
		bits := values[1].Value()
		return bits < 64 && values[2].Value() < uint64(1)<<bits
	case FixedResponsibleOpcode:
		state := values[1].Value()
		opcode := values[2].Value()
		if state >= uint64(len(witness.ExecutionStates)) || opcode > 0xff {
			return false
		}
		return witness.ExecutionState(state).Handles(vm.OpCode(opcode))
	default:
		return false
	}
}
