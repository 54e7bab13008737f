package witness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
)

// ExecutionState names the gadget responsible for a step
type ExecutionState int

const (
	StateStop ExecutionState = iota
	StatePush
	StatePop
	StateDiv
	StateSload
	StateSstore
	StateBeginTx

	// StateEndBlock follows the last step. It has no gadget and never
	// appears in a witness.
	StateEndBlock
)

// ExecutionStates lists every state with a gadget
var ExecutionStates = []ExecutionState{StateStop, StatePush, StatePop, StateDiv, StateSload, StateSstore, StateBeginTx}

// String returns the name of the execution state
func (s ExecutionState) String() string {
	switch s {
	case StateStop:
		return "STOP"
	case StatePush:
		return "PUSH"
	case StatePop:
		return "POP"
	case StateDiv:
		return "DIV"
	case StateSload:
		return "SLOAD"
	case StateSstore:
		return "SSTORE"
	case StateBeginTx:
		return "BEGIN_TX"
	case StateEndBlock:
		return "END_BLOCK"
	default:
		return fmt.Sprintf("ExecutionState(%d)", int(s))
	}
}

// ParseExecutionState is the inverse of ExecutionState.String
func ParseExecutionState(s string) (ExecutionState, error) {
	for _, st := range ExecutionStates {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown execution state %q", s)
}

// ResponsibleOpcodes returns the opcodes a state handles
func (s ExecutionState) ResponsibleOpcodes() []vm.OpCode {
	switch s {
	case StateStop:
		return []vm.OpCode{vm.STOP}
	case StatePush:
		ops := make([]vm.OpCode, 0, 33)
		for op := vm.PUSH0; op <= vm.PUSH32; op++ {
			ops = append(ops, op)
		}
		return ops
	case StatePop:
		return []vm.OpCode{vm.POP}
	case StateDiv:
		return []vm.OpCode{vm.DIV}
	case StateSload:
		return []vm.OpCode{vm.SLOAD}
	case StateSstore:
		return []vm.OpCode{vm.SSTORE}
	default:
		return nil
	}
}

// Handles reports whether op belongs to s
func (s ExecutionState) Handles(op vm.OpCode) bool {
	for _, o := range s.ResponsibleOpcodes() {
		if o == op {
			return true
		}
	}
	return false
}

// ExecutionStateOf maps an opcode to the state that handles it
func ExecutionStateOf(op vm.OpCode) (ExecutionState, bool) {
	for _, s := range ExecutionStates {
		if s.Handles(op) {
			return s, true
		}
	}
	return 0, false
}

// StepState is the machine state at the start of a step
type StepState struct {
	RwCounter      uint64
	CallID         uint64
	ProgramCounter uint64
	StackPointer   uint64
	GasLeft        uint64
	CodeHash       common.Hash
}

// ExecStep is one opcode execution. RwIndices point into the block's rw log
// in the order the gadget accesses them.
type ExecStep struct {
	StepState
	ExecutionState ExecutionState
	Opcode         vm.OpCode
	RwIndices      []int
}

// String returns a compact description of the step
func (s *ExecStep) String() string {
	if s.ExecutionState == StateBeginTx {
		return fmt.Sprintf("%s(rwc=%d call=%d gas=%d)", s.ExecutionState, s.RwCounter, s.CallID, s.GasLeft)
	}
	return fmt.Sprintf("%s(pc=%d sp=%d rwc=%d gas=%d)",
		s.Opcode, s.ProgramCounter, s.StackPointer, s.RwCounter, s.GasLeft)
}
