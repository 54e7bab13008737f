package evm

import (
	"fmt"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// Table identifies the table a lookup targets
type Table int

const (
	// TableFixed holds range and opcode tables evaluated by tag
	TableFixed Table = iota
	// TableRw is the block's read/write log
	TableRw
	// TableBytecode holds (code hash, index, byte, is_code) rows
	TableBytecode
)

// String returns the name of the table
func (t Table) String() string {
	switch t {
	case TableFixed:
		return "Fixed"
	case TableRw:
		return "Rw"
	case TableBytecode:
		return "Bytecode"
	default:
		return "Unknown"
	}
}

// FixedTableTag selects a sub-table of the fixed table
type FixedTableTag uint64

const (
	// FixedRange rows are (tag, bits, v) for every v < 2^bits
	FixedRange FixedTableTag = iota + 1
	// FixedResponsibleOpcode rows are (tag, execution state, opcode)
	FixedResponsibleOpcode
)

// Bytecode table columns, in lookup order
const (
	BytecodeColHash = iota
	BytecodeColIndex
	BytecodeColValue
	BytecodeColIsCode
	NumBytecodeColumns
)

// Constraint is a named polynomial that must vanish on the step row
type Constraint struct {
	Name string
	Expr Expr
}

// Lookup requires its inputs to form a row of Table whenever Condition is
// nonzero. A nil Condition is always enabled.
type Lookup struct {
	Name      string
	Table     Table
	Condition Expr
	Inputs    []Expr
}

// StepStateCells are the cells holding a step state. ExecutionState selects
// the gadget; for Next it is StateEndBlock past the last step.
type StepStateCells struct {
	ExecutionState Cell
	RwCounter      Cell
	CallID         Cell
	ProgramCounter Cell
	StackPointer   Cell
	GasLeft        Cell
	CodeHash       Cell
}

// ConstraintSystem is the frozen output of configuring one gadget
type ConstraintSystem struct {
	Name        string
	State       witness.ExecutionState
	Width       int
	Constraints []Constraint
	Lookups     []Lookup
	RwCount     int
	Randomness  Cell
	Curr, Next  StepStateCells
}

// ConstraintBuilder collects cells, constraints and lookups for a gadget
type ConstraintBuilder struct {
	name  string
	state witness.ExecutionState
	width int

	randomness Cell
	Curr       StepStateCells
	Next       StepStateCells

	constraints []Constraint
	lookups     []Lookup
	conditions  []Expr

	rwCounterOffset    int
	stackPointerOffset int64
	transitionSet      bool
}

// NewConstraintBuilder allocates the shared cells: the block randomness and
// the current and next step states.
func NewConstraintBuilder(name string, state witness.ExecutionState) *ConstraintBuilder {
	cb := &ConstraintBuilder{
		name:        name,
		state:       state,
		constraints: make([]Constraint, 0, 32),
		lookups:     make([]Lookup, 0, 64),
	}
	cb.randomness = cb.QueryCell()
	cb.Curr = cb.queryStepState()
	cb.Next = cb.queryStepState()
	return cb
}

func (cb *ConstraintBuilder) queryStepState() StepStateCells {
	return StepStateCells{
		ExecutionState: cb.QueryCell(),
		RwCounter:      cb.QueryCell(),
		CallID:         cb.QueryCell(),
		ProgramCounter: cb.QueryCell(),
		StackPointer:   cb.QueryCell(),
		GasLeft:        cb.QueryCell(),
		CodeHash:       cb.QueryCell(),
	}
}

// ExecutionState returns the state being configured
func (cb *ConstraintBuilder) ExecutionState() witness.ExecutionState {
	return cb.state
}

// Randomness returns the block randomness expression
func (cb *ConstraintBuilder) Randomness() Expr {
	return cb.randomness.Expr()
}

// QueryCell allocates an unconstrained cell
func (cb *ConstraintBuilder) QueryCell() Cell {
	c := Cell{column: cb.width}
	cb.width++
	return c
}

// QueryBool allocates a cell constrained to {0, 1}
func (cb *ConstraintBuilder) QueryBool() Cell {
	c := cb.QueryCell()
	cb.RequireBoolean("bool cell", c.Expr())
	return c
}

// QueryByte allocates a cell range checked to a byte
func (cb *ConstraintBuilder) QueryByte() Cell {
	c := cb.QueryCell()
	cb.RequireInRange("byte cell", c.Expr(), 8)
	return c
}

// QueryWord allocates 32 byte cells
func (cb *ConstraintBuilder) QueryWord() *Word {
	w := &Word{randomness: cb.Randomness()}
	for i := range w.cells {
		w.cells[i] = cb.QueryByte()
	}
	return w
}

// Condition enables the constraints and lookups added by fn only when cond
// is nonzero. Conditions nest multiplicatively.
func (cb *ConstraintBuilder) Condition(cond Expr, fn func()) {
	cb.conditions = append(cb.conditions, cond)
	fn()
	cb.conditions = cb.conditions[:len(cb.conditions)-1]
}

func (cb *ConstraintBuilder) condition() Expr {
	if len(cb.conditions) == 0 {
		return nil
	}
	return Product(append([]Expr(nil), cb.conditions...)...)
}

// Require adds the constraint e == 0
func (cb *ConstraintBuilder) Require(name string, e Expr) {
	if cond := cb.condition(); cond != nil {
		e = cond.Mul(e)
	}
	cb.constraints = append(cb.constraints, Constraint{Name: name, Expr: e})
}

// RequireEqual adds the constraint a == b
func (cb *ConstraintBuilder) RequireEqual(name string, a, b Expr) {
	cb.Require(name, a.Sub(b))
}

// RequireBoolean adds the constraint e * (1 - e) == 0
func (cb *ConstraintBuilder) RequireBoolean(name string, e Expr) {
	cb.Require(name, e.Mul(Not(e)))
}

// RequireInRange requires 0 <= e < 2^bits
func (cb *ConstraintBuilder) RequireInRange(name string, e Expr, bits uint) {
	if bits >= 64 {
		panic(fmt.Sprintf("evm: range of %d bits exceeds the field", bits))
	}
	cb.addLookup(name, TableFixed, Const(uint64(FixedRange)), Const(uint64(bits)), e)
}

func (cb *ConstraintBuilder) addLookup(name string, table Table, inputs ...Expr) {
	cb.lookups = append(cb.lookups, Lookup{
		Name:      name,
		Table:     table,
		Condition: cb.condition(),
		Inputs:    inputs,
	})
}

// RwCounterOffset returns the number of rw lookups issued so far
func (cb *ConstraintBuilder) RwCounterOffset() int {
	return cb.rwCounterOffset
}

// StackPointerOffset returns the net stack pointer movement so far
func (cb *ConstraintBuilder) StackPointerOffset() int64 {
	return cb.stackPointerOffset
}

type rwValues struct {
	id, address, fieldTag, storageKey, value, valuePrev, committed Expr
}

func (cb *ConstraintBuilder) rwLookup(name string, isWrite bool, tag witness.RwTag, v rwValues) {
	zero := Const(0)
	orZero := func(e Expr) Expr {
		if e == nil {
			return zero
		}
		return e
	}
	counter := cb.Curr.RwCounter.Expr().Add(Const(uint64(cb.rwCounterOffset)))
	write := Const(0)
	if isWrite {
		write = Const(1)
	}
	cb.addLookup(name, TableRw,
		counter,
		write,
		Const(uint64(tag)),
		orZero(v.id),
		orZero(v.address),
		orZero(v.fieldTag),
		orZero(v.storageKey),
		orZero(v.value),
		orZero(v.valuePrev),
		orZero(v.committed),
	)
	cb.rwCounterOffset++
}

func (cb *ConstraintBuilder) stackLookup(isWrite bool, value Expr) {
	name := "stack pop"
	if isWrite {
		name = "stack push"
	}
	cb.rwLookup(name, isWrite, witness.RwStack, rwValues{
		id:      cb.Curr.CallID.Expr(),
		address: cb.Curr.StackPointer.Expr().Add(ConstInt(cb.stackPointerOffset)),
		value:   value,
	})
}

// StackPop reads the top of the stack
func (cb *ConstraintBuilder) StackPop(value Expr) {
	cb.stackLookup(false, value)
	cb.stackPointerOffset++
}

// StackPush writes a new top of the stack
func (cb *ConstraintBuilder) StackPush(value Expr) {
	cb.stackPointerOffset--
	cb.stackLookup(true, value)
}

// CallContext reads a field of the current call
func (cb *ConstraintBuilder) CallContext(field witness.CallContextFieldTag, value Expr) {
	cb.rwLookup("call context "+field.String(), false, witness.RwCallContext, rwValues{
		id:       cb.Curr.CallID.Expr(),
		fieldTag: Const(uint64(field)),
		value:    value,
	})
}

// AccountWrite updates a field of the account at address
func (cb *ConstraintBuilder) AccountWrite(address Expr, tag witness.AccountFieldTag, value, valuePrev Expr) {
	cb.rwLookup("account write "+tag.String(), true, witness.RwAccount, rwValues{
		address:   address,
		fieldTag:  Const(uint64(tag)),
		value:     value,
		valuePrev: valuePrev,
	})
}

// AccountStorageRead reads a storage slot; a read leaves the value unchanged
func (cb *ConstraintBuilder) AccountStorageRead(txID, address, key, value, committed Expr) {
	cb.rwLookup("account storage read", false, witness.RwAccountStorage, rwValues{
		id:         txID,
		address:    address,
		storageKey: key,
		value:      value,
		valuePrev:  value,
		committed:  committed,
	})
}

// AccountStorageWrite writes a storage slot
func (cb *ConstraintBuilder) AccountStorageWrite(txID, address, key, value, valuePrev, committed Expr) {
	cb.rwLookup("account storage write", true, witness.RwAccountStorage, rwValues{
		id:         txID,
		address:    address,
		storageKey: key,
		value:      value,
		valuePrev:  valuePrev,
		committed:  committed,
	})
}

// TxAccessListAccountStorageWrite updates the warm flag of a slot
func (cb *ConstraintBuilder) TxAccessListAccountStorageWrite(txID, address, key, value, valuePrev Expr) {
	cb.rwLookup("tx access list storage write", true, witness.RwTxAccessListAccountStorage, rwValues{
		id:         txID,
		address:    address,
		storageKey: key,
		value:      value,
		valuePrev:  valuePrev,
	})
}

// BytecodeLookup requires code[index] == value in the current code
func (cb *ConstraintBuilder) BytecodeLookup(name string, index, value, isCode Expr) {
	cb.addLookup(name, TableBytecode, cb.Curr.CodeHash.Expr(), index, value, isCode)
}

// OpcodeLookup requires opcode to be the instruction at the program counter
func (cb *ConstraintBuilder) OpcodeLookup(opcode Expr) {
	cb.BytecodeLookup("opcode", cb.Curr.ProgramCounter.Expr(), opcode, Const(1))
}

// ResponsibleOpcodeLookup requires the execution state to handle opcode
func (cb *ConstraintBuilder) ResponsibleOpcodeLookup(opcode Expr) {
	cb.addLookup("responsible opcode", TableFixed,
		Const(uint64(FixedResponsibleOpcode)), Const(uint64(cb.state)), opcode)
}

// Build freezes the configuration
func (cb *ConstraintBuilder) Build() *ConstraintSystem {
	if !cb.transitionSet {
		panic(fmt.Sprintf("evm: %s never declares its step state transition", cb.name))
	}
	return &ConstraintSystem{
		Name:        cb.name,
		State:       cb.state,
		Width:       cb.width,
		Constraints: cb.constraints,
		Lookups:     cb.lookups,
		RwCount:     cb.rwCounterOffset,
		Randomness:  cb.randomness,
		Curr:        cb.Curr,
		Next:        cb.Next,
	}
}
