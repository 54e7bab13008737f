// Package witness defines the block witness consumed by the verifier: the
// execution steps of a replayed trace and the read/write log they index into.
package witness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

// RwTag identifies the kind of state an access touches
type RwTag uint64

const (
	// RwStart pads the table and carries no state
	RwStart RwTag = iota + 1

	// RwStack is a stack slot keyed by (call, stack pointer)
	RwStack

	// RwMemory is a memory byte keyed by (call, address)
	RwMemory

	// RwAccountStorage is a storage slot keyed by (tx, account, key)
	RwAccountStorage

	// RwAccount is an account field keyed by (account, field)
	RwAccount

	// RwCallContext is a call context field keyed by (call, field)
	RwCallContext

	// RwTxAccessListAccount is the warm flag of an account within a tx
	RwTxAccessListAccount

	// RwTxAccessListAccountStorage is the warm flag of a slot within a tx
	RwTxAccessListAccountStorage

	// RwTxRefund is the refund counter of a tx
	RwTxRefund
)

// String returns the name of the tag
func (t RwTag) String() string {
	switch t {
	case RwStart:
		return "Start"
	case RwStack:
		return "Stack"
	case RwMemory:
		return "Memory"
	case RwAccountStorage:
		return "AccountStorage"
	case RwAccount:
		return "Account"
	case RwCallContext:
		return "CallContext"
	case RwTxAccessListAccount:
		return "TxAccessListAccount"
	case RwTxAccessListAccountStorage:
		return "TxAccessListAccountStorage"
	case RwTxRefund:
		return "TxRefund"
	default:
		return "Unknown"
	}
}

// ParseRwTag is the inverse of RwTag.String
func ParseRwTag(s string) (RwTag, error) {
	for t := RwStart; t <= RwTxRefund; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown rw tag %q", s)
}

// AccountFieldTag selects an account field
type AccountFieldTag uint64

const (
	AccountNonce AccountFieldTag = iota + 1
	AccountBalance
	AccountCodeHash
)

// String returns the name of the account field
func (t AccountFieldTag) String() string {
	switch t {
	case AccountNonce:
		return "Nonce"
	case AccountBalance:
		return "Balance"
	case AccountCodeHash:
		return "CodeHash"
	default:
		return "Unknown"
	}
}

// CallContextFieldTag selects a call context field
type CallContextFieldTag uint64

const (
	CallContextTxID CallContextFieldTag = iota + 1
	CallContextCallerAddress
	CallContextCalleeAddress
	CallContextValue
	CallContextIsStatic
	CallContextIsSuccess
	CallContextDepth
	CallContextCodeHash
)

// String returns the name of the call context field
func (t CallContextFieldTag) String() string {
	switch t {
	case CallContextTxID:
		return "TxId"
	case CallContextCallerAddress:
		return "CallerAddress"
	case CallContextCalleeAddress:
		return "CalleeAddress"
	case CallContextValue:
		return "Value"
	case CallContextIsStatic:
		return "IsStatic"
	case CallContextIsSuccess:
		return "IsSuccess"
	case CallContextDepth:
		return "Depth"
	case CallContextCodeHash:
		return "CodeHash"
	default:
		return "Unknown"
	}
}

// IsWord reports whether the field holds a full word (compressed by RLC)
// rather than a small scalar.
func (t CallContextFieldTag) IsWord() bool {
	switch t {
	case CallContextCallerAddress, CallContextCalleeAddress, CallContextValue, CallContextCodeHash:
		return true
	default:
		return false
	}
}

// Columns of the rw table, in lookup order
const (
	RwColCounter = iota
	RwColIsWrite
	RwColTag
	RwColID
	RwColAddress
	RwColFieldTag
	RwColStorageKey
	RwColValue
	RwColValuePrev
	RwColCommitted
	NumRwColumns
)

// Rw is a single read or write of machine state. ID is the call id for
// stack, memory and call context accesses and the tx id for storage,
// access list and refund accesses.
type Rw struct {
	Tag            RwTag
	RwCounter      uint64
	IsWrite        bool
	ID             uint64
	Address        common.Address
	FieldTag       uint64
	StorageKey     uint256.Int
	StackPointer   uint64
	MemoryAddress  uint64
	Value          uint256.Int
	ValuePrev      uint256.Int
	CommittedValue uint256.Int
}

// RwKey identifies the state location of an access. Two accesses with the
// same key must observe a consistent sequence of values.
type RwKey struct {
	Tag        RwTag
	ID         uint64
	Address    common.Address
	FieldTag   uint64
	StorageKey uint256.Int
	Slot       uint64
}

// Key returns the state location touched by rw
func (rw *Rw) Key() RwKey {
	k := RwKey{Tag: rw.Tag}
	switch rw.Tag {
	case RwStack:
		k.ID, k.Slot = rw.ID, rw.StackPointer
	case RwMemory:
		k.ID, k.Slot = rw.ID, rw.MemoryAddress
	case RwAccountStorage, RwTxAccessListAccountStorage:
		k.ID, k.Address, k.StorageKey = rw.ID, rw.Address, rw.StorageKey
	case RwAccount:
		k.Address, k.FieldTag = rw.Address, rw.FieldTag
	case RwCallContext:
		k.ID, k.FieldTag = rw.ID, rw.FieldTag
	case RwTxAccessListAccount:
		k.ID, k.Address = rw.ID, rw.Address
	case RwTxRefund:
		k.ID = rw.ID
	}
	return k
}

// HasValuePrev reports whether the tag tracks the value before a write
func (t RwTag) HasValuePrev() bool {
	switch t {
	case RwAccountStorage, RwAccount, RwTxAccessListAccount, RwTxAccessListAccountStorage, RwTxRefund:
		return true
	default:
		return false
	}
}

// StackValue returns the word carried by a stack access
func (rw *Rw) StackValue() *uint256.Int {
	return new(uint256.Int).Set(&rw.Value)
}

// ValueAssignment compresses Value into a single field element
func (rw *Rw) ValueAssignment(r field.Element) field.Element {
	return rw.compress(&rw.Value, r)
}

// ValuePrevAssignment compresses ValuePrev. ok is false for tags that do not
// track a previous value.
func (rw *Rw) ValuePrevAssignment(r field.Element) (v field.Element, ok bool) {
	if !rw.Tag.HasValuePrev() {
		return field.Zero, false
	}
	return rw.compress(&rw.ValuePrev, r), true
}

func (rw *Rw) compress(w *uint256.Int, r field.Element) field.Element {
	switch rw.Tag {
	case RwMemory, RwTxAccessListAccount, RwTxAccessListAccountStorage, RwTxRefund:
		return core.Scalar(w.Uint64())
	case RwCallContext:
		if CallContextFieldTag(rw.FieldTag).IsWord() {
			return core.WordRLC(w, r)
		}
		return core.Scalar(w.Uint64())
	case RwAccount:
		if AccountFieldTag(rw.FieldTag) == AccountNonce {
			return core.Scalar(w.Uint64())
		}
		return core.WordRLC(w, r)
	default:
		return core.WordRLC(w, r)
	}
}

// TableRow returns the rw table columns for this access
func (rw *Rw) TableRow(r field.Element) [NumRwColumns]field.Element {
	var row [NumRwColumns]field.Element
	for i := range row {
		row[i] = field.Zero
	}
	row[RwColCounter] = core.Scalar(rw.RwCounter)
	row[RwColIsWrite] = core.Bool(rw.IsWrite)
	row[RwColTag] = core.Scalar(uint64(rw.Tag))
	if rw.Tag == RwStart {
		return row
	}
	row[RwColID] = core.Scalar(rw.ID)
	row[RwColFieldTag] = core.Scalar(rw.FieldTag)
	row[RwColValue] = rw.ValueAssignment(r)

	switch rw.Tag {
	case RwStack:
		row[RwColAddress] = core.Scalar(rw.StackPointer)
	case RwMemory:
		row[RwColAddress] = core.Scalar(rw.MemoryAddress)
	case RwAccount, RwTxAccessListAccount:
		row[RwColAddress] = core.AddressRLC(rw.Address, r)
	case RwAccountStorage, RwTxAccessListAccountStorage:
		row[RwColAddress] = core.AddressRLC(rw.Address, r)
		row[RwColStorageKey] = core.WordRLC(&rw.StorageKey, r)
	}
	if prev, ok := rw.ValuePrevAssignment(r); ok {
		row[RwColValuePrev] = prev
	}
	if rw.Tag == RwAccountStorage {
		row[RwColCommitted] = core.WordRLC(&rw.CommittedValue, r)
	}
	return row
}

// String returns a compact description of the access
func (rw *Rw) String() string {
	op := "read"
	if rw.IsWrite {
		op = "write"
	}
	return fmt.Sprintf("#%d %s %s value=%s", rw.RwCounter, rw.Tag, op, rw.Value.Hex())
}
