package witness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

// StackLimit is the initial stack pointer; pushes decrement it
const StackLimit = 1024

var (
	ErrUnsupportedOpcode = errors.New("witness: unsupported opcode")
	ErrStackUnderflow    = errors.New("witness: stack underflow")
	ErrStackOverflow     = errors.New("witness: stack overflow")
	ErrOutOfGas          = errors.New("witness: out of gas")
	ErrTruncatedPush     = errors.New("witness: push data runs past end of code")
)

// Tx is a single top-level call replayed by the Builder
type Tx struct {
	From common.Address
	To   common.Address
	Code []byte
	Gas  uint64
}

type slotKey struct {
	addr common.Address
	key  uint256.Int
}

// Builder produces block witnesses by replaying a small opcode subset
// (PUSH0-PUSH32, POP, DIV, SLOAD, SSTORE, STOP) over an in-memory storage
// pre-state. It records exactly the accesses the gadgets look up.
type Builder struct {
	rws        *RwLog
	steps      []ExecStep
	bytecodes  map[common.Hash][]byte
	storage    map[slotKey]uint256.Int
	nonces     map[common.Address]uint64
	txCount    uint64
	end        StepState
	randomness *field.Element
	prevRoot   field.Element
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		rws:       NewRwLog(64),
		bytecodes: make(map[common.Hash][]byte),
		storage:   make(map[slotKey]uint256.Int),
		nonces:    make(map[common.Address]uint64),
		prevRoot:  field.Zero,
	}
}

// WithStorage seeds a storage slot of the pre-state
func (b *Builder) WithStorage(addr common.Address, key, value *uint256.Int) *Builder {
	b.storage[slotKey{addr: addr, key: *key}] = *value
	return b
}

// WithNonce seeds an account nonce of the pre-state
func (b *Builder) WithNonce(addr common.Address, nonce uint64) *Builder {
	b.nonces[addr] = nonce
	return b
}

// WithRandomness fixes the compression randomness instead of deriving it
func (b *Builder) WithRandomness(r field.Element) *Builder {
	b.randomness = &r
	return b
}

// WithPrevStateRoot sets the commitment the block starts from
func (b *Builder) WithPrevStateRoot(root field.Element) *Builder {
	b.prevRoot = root
	return b
}

// Build finalizes the witness
func (b *Builder) Build() *Block {
	block := &Block{
		Steps:         b.steps,
		Rws:           b.rws,
		Bytecodes:     b.bytecodes,
		PrevStateRoot: b.prevRoot,
		End:           b.end,
	}
	if b.randomness != nil {
		block.Randomness = *b.randomness
	} else {
		block.Randomness = DeriveRandomness(b.rws)
	}
	return block
}

// AddTx replays tx and appends its steps and accesses
func (b *Builder) AddTx(tx Tx) error {
	b.txCount++
	r := &txReplay{
		b:         b,
		tx:        tx,
		txID:      b.txCount,
		codeHash:  crypto.Keccak256Hash(tx.Code),
		committed: make(map[slotKey]uint256.Int),
		warm:      make(map[slotKey]bool),
		sp:        StackLimit,
		gas:       tx.Gas,
	}
	b.bytecodes[r.codeHash] = common.CopyBytes(tx.Code)

	r.beginTx()
	if err := r.run(); err != nil {
		return fmt.Errorf("tx %d: %w", r.txID, err)
	}
	return nil
}

type txReplay struct {
	b         *Builder
	tx        Tx
	txID      uint64
	callID    uint64
	codeHash  common.Hash
	committed map[slotKey]uint256.Int
	warm      map[slotKey]bool
	stack     []uint256.Int
	pc        uint64
	sp        uint64
	gas       uint64
	step      *ExecStep
}

// beginTx records the step opening the tx: the sender's nonce bump and the
// call context fields the opcodes read back. The call id is the counter of
// the first access, which keeps ids unique across the block.
func (r *txReplay) beginTx() {
	r.callID = r.b.rws.NextCounter()
	r.step = &ExecStep{
		StepState:      r.stepState(),
		ExecutionState: StateBeginTx,
		Opcode:         vm.STOP,
	}

	nonce := r.b.nonces[r.tx.From]
	r.write(Rw{
		Tag:       RwAccount,
		Address:   r.tx.From,
		FieldTag:  uint64(AccountNonce),
		Value:     *uint256.NewInt(nonce + 1),
		ValuePrev: *uint256.NewInt(nonce),
	})
	r.b.nonces[r.tx.From] = nonce + 1

	r.callContext(CallContextTxID, uint256.NewInt(r.txID))
	r.callContext(CallContextCallerAddress, core.AddressWord(r.tx.From))
	r.callContext(CallContextCalleeAddress, core.AddressWord(r.tx.To))
	r.callContext(CallContextIsStatic, uint256.NewInt(0))
	r.callContext(CallContextCodeHash, core.HashWord(r.codeHash))

	r.b.steps = append(r.b.steps, *r.step)
	r.step = nil
}

func (r *txReplay) stepState() StepState {
	return StepState{
		RwCounter:      r.b.rws.NextCounter(),
		CallID:         r.callID,
		ProgramCounter: r.pc,
		StackPointer:   r.sp,
		GasLeft:        r.gas,
		CodeHash:       r.codeHash,
	}
}

func (r *txReplay) run() error {
	code := r.tx.Code
	for {
		op := vm.STOP
		if r.pc < uint64(len(code)) {
			op = vm.OpCode(code[r.pc])
		}
		state, ok := ExecutionStateOf(op)
		if !ok {
			return fmt.Errorf("%w: %s at pc %d", ErrUnsupportedOpcode, op, r.pc)
		}
		r.step = &ExecStep{
			StepState:      r.stepState(),
			ExecutionState: state,
			Opcode:         op,
		}

		cost, err := r.exec(op)
		if err != nil {
			return fmt.Errorf("%s at pc %d: %w", op, r.step.ProgramCounter, err)
		}
		if cost > r.step.GasLeft {
			return fmt.Errorf("%s at pc %d: %w", op, r.step.ProgramCounter, ErrOutOfGas)
		}
		r.gas = r.step.GasLeft - cost
		r.b.steps = append(r.b.steps, *r.step)

		if op == vm.STOP {
			r.b.end = r.stepState()
			return nil
		}
	}
}

// exec applies op and returns its gas cost
func (r *txReplay) exec(op vm.OpCode) (uint64, error) {
	switch {
	case op == vm.STOP:
		return 0, nil

	case op >= vm.PUSH0 && op <= vm.PUSH32:
		n := uint64(op - vm.PUSH0)
		if r.pc+1+n > uint64(len(r.tx.Code)) {
			return 0, ErrTruncatedPush
		}
		value := new(uint256.Int).SetBytes(r.tx.Code[r.pc+1 : r.pc+1+n])
		if err := r.push(value); err != nil {
			return 0, err
		}
		r.pc += n + 1
		if n == 0 {
			return vm.GasQuickStep, nil
		}
		return vm.GasFastestStep, nil

	case op == vm.POP:
		if _, err := r.pop(); err != nil {
			return 0, err
		}
		r.pc++
		return vm.GasQuickStep, nil

	case op == vm.DIV:
		dividend, err := r.pop()
		if err != nil {
			return 0, err
		}
		divisor, err := r.pop()
		if err != nil {
			return 0, err
		}
		if err := r.push(new(uint256.Int).Div(dividend, divisor)); err != nil {
			return 0, err
		}
		r.pc++
		return vm.GasFastStep, nil

	case op == vm.SLOAD:
		return r.sload()

	case op == vm.SSTORE:
		return r.sstore()
	}
	return 0, ErrUnsupportedOpcode
}

func (r *txReplay) sload() (uint64, error) {
	r.callContext(CallContextTxID, uint256.NewInt(r.txID))
	r.callContext(CallContextCalleeAddress, core.AddressWord(r.tx.To))
	key, err := r.pop()
	if err != nil {
		return 0, err
	}
	slot := r.touch(key)
	value := r.b.storage[slot]
	r.read(Rw{
		Tag:            RwAccountStorage,
		ID:             r.txID,
		Address:        r.tx.To,
		StorageKey:     *key,
		Value:          value,
		ValuePrev:      value,
		CommittedValue: r.committed[slot],
	})
	if err := r.push(&value); err != nil {
		return 0, err
	}
	isWarm := r.warmUp(slot)
	r.pc++
	if isWarm {
		return params.WarmStorageReadCostEIP2929, nil
	}
	return params.ColdSloadCostEIP2929, nil
}

func (r *txReplay) sstore() (uint64, error) {
	if r.step.GasLeft <= params.SstoreSentryGasEIP2200 {
		return 0, ErrOutOfGas
	}
	r.callContext(CallContextTxID, uint256.NewInt(r.txID))
	r.callContext(CallContextIsStatic, uint256.NewInt(0))
	r.callContext(CallContextCalleeAddress, core.AddressWord(r.tx.To))
	key, err := r.pop()
	if err != nil {
		return 0, err
	}
	value, err := r.pop()
	if err != nil {
		return 0, err
	}
	slot := r.touch(key)
	prev := r.b.storage[slot]
	committed := r.committed[slot]
	r.write(Rw{
		Tag:            RwAccountStorage,
		ID:             r.txID,
		Address:        r.tx.To,
		StorageKey:     *key,
		Value:          *value,
		ValuePrev:      prev,
		CommittedValue: committed,
	})
	r.b.storage[slot] = *value
	isWarm := r.warmUp(slot)
	r.pc++
	return SstoreGasCost(isWarm, value, &prev, &committed), nil
}

// SstoreGasCost prices an SSTORE under EIP-2929 and EIP-2200 net metering.
// Refunds are not tracked.
func SstoreGasCost(isWarm bool, value, prev, committed *uint256.Int) uint64 {
	var cost uint64
	if !isWarm {
		cost = params.ColdSloadCostEIP2929
	}
	switch {
	case value.Eq(prev):
		return cost + params.WarmStorageReadCostEIP2929
	case prev.Eq(committed) && committed.IsZero():
		return cost + params.SstoreSetGasEIP2200
	case prev.Eq(committed):
		return cost + params.SstoreResetGasEIP2200 - params.ColdSloadCostEIP2929
	default:
		return cost + params.WarmStorageReadCostEIP2929
	}
}

// touch records the committed value of a slot on its first access in the tx
func (r *txReplay) touch(key *uint256.Int) slotKey {
	slot := slotKey{addr: r.tx.To, key: *key}
	if _, ok := r.committed[slot]; !ok {
		r.committed[slot] = r.b.storage[slot]
	}
	return slot
}

// warmUp marks slot warm and returns whether it already was
func (r *txReplay) warmUp(slot slotKey) bool {
	was := r.warm[slot]
	r.warm[slot] = true
	r.write(Rw{
		Tag:        RwTxAccessListAccountStorage,
		ID:         r.txID,
		Address:    slot.addr,
		StorageKey: slot.key,
		Value:      *uint256.NewInt(1),
		ValuePrev:  *boolWord(was),
	})
	return was
}

func (r *txReplay) callContext(tag CallContextFieldTag, value *uint256.Int) {
	r.read(Rw{
		Tag:      RwCallContext,
		ID:       r.callID,
		FieldTag: uint64(tag),
		Value:    *value,
	})
}

func (r *txReplay) push(value *uint256.Int) error {
	if r.sp == 0 {
		return ErrStackOverflow
	}
	r.sp--
	r.stack = append(r.stack, *value)
	r.write(Rw{Tag: RwStack, ID: r.callID, StackPointer: r.sp, Value: *value})
	return nil
}

func (r *txReplay) pop() (*uint256.Int, error) {
	if len(r.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	value := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.read(Rw{Tag: RwStack, ID: r.callID, StackPointer: r.sp, Value: value})
	r.sp++
	return &value, nil
}

func (r *txReplay) read(rw Rw) {
	rw.IsWrite = false
	r.record(rw)
}

func (r *txReplay) write(rw Rw) {
	rw.IsWrite = true
	r.record(rw)
}

func (r *txReplay) record(rw Rw) {
	rw.RwCounter = r.b.rws.NextCounter()
	idx := r.b.rws.Append(rw)
	if r.step != nil {
		r.step.RwIndices = append(r.step.RwIndices, idx)
	}
}

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return uint256.NewInt(0)
}
