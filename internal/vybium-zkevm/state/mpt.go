package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/utils"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// MptKeyKind distinguishes account fields from storage slots
type MptKeyKind uint8

const (
	MptAccount MptKeyKind = iota + 1
	MptAccountStorage
)

// MptKey identifies a persistent state entry. Storage keys are scoped to the
// transaction that touched them.
type MptKey struct {
	Kind       MptKeyKind
	TxID       uint64
	Address    common.Address
	FieldTag   witness.AccountFieldTag
	StorageKey uint256.Int
}

// String returns a compact description of the key
func (k MptKey) String() string {
	if k.Kind == MptAccount {
		return fmt.Sprintf("account %s %s", k.Address.Hex(), k.FieldTag)
	}
	return fmt.Sprintf("storage tx=%d %s[%s]", k.TxID, k.Address.Hex(), k.StorageKey.Hex())
}

// mptKey returns the key of a persistent access
func mptKey(rw *witness.Rw) (MptKey, bool) {
	switch rw.Tag {
	case witness.RwAccount:
		return MptKey{Kind: MptAccount, Address: rw.Address, FieldTag: witness.AccountFieldTag(rw.FieldTag)}, true
	case witness.RwAccountStorage:
		return MptKey{Kind: MptAccountStorage, TxID: rw.ID, Address: rw.Address, StorageKey: rw.StorageKey}, true
	default:
		return MptKey{}, false
	}
}

// MptValue is the root and value transition claimed for one key
type MptValue struct {
	OldRoot  field.Element
	NewRoot  field.Element
	OldValue field.Element
	NewValue field.Element
}

// MptUpdate is the group of accesses to one key
type MptUpdate struct {
	Key      MptKey
	Value    MptValue
	ReadOnly bool

	// Indices are rw log indices in counter order
	Indices []int

	rwKey witness.RwKey
}

// RootOracle derives the state root after a key changes value
type RootOracle interface {
	Name() string
	NextRoot(oldRoot field.Element, key MptKey, value MptValue, randomness field.Element) field.Element
}

// PoseidonRootOracle chains roots by hashing the previous root with the
// updated entry
type PoseidonRootOracle struct{}

// Name implements RootOracle
func (PoseidonRootOracle) Name() string { return utils.RootSchemePoseidon }

// NextRoot implements RootOracle
func (PoseidonRootOracle) NextRoot(oldRoot field.Element, key MptKey, value MptValue, randomness field.Element) field.Element {
	return hash.PoseidonHash([]field.Element{
		oldRoot,
		core.AddressRLC(key.Address, randomness),
		core.Scalar(uint64(key.FieldTag)),
		core.WordRLC(&key.StorageKey, randomness),
		value.OldValue,
		value.NewValue,
	})
}

// SequentialRootOracle numbers roots: every changing update adds one
type SequentialRootOracle struct{}

// Name implements RootOracle
func (SequentialRootOracle) Name() string { return utils.RootSchemeSequential }

// NextRoot implements RootOracle
func (SequentialRootOracle) NextRoot(oldRoot field.Element, _ MptKey, _ MptValue, _ field.Element) field.Element {
	return oldRoot.Add(field.One)
}

// NewRootOracle returns the oracle for a configured root scheme
func NewRootOracle(scheme string) (RootOracle, error) {
	switch scheme {
	case utils.RootSchemePoseidon:
		return PoseidonRootOracle{}, nil
	case utils.RootSchemeSequential:
		return SequentialRootOracle{}, nil
	default:
		return nil, fmt.Errorf("state: unknown root scheme %q", scheme)
	}
}

// MptUpdates holds every update of a block in root chaining order
type MptUpdates struct {
	updates   []*MptUpdate
	prevRoot  field.Element
	finalRoot field.Element
}

// BuildMptUpdates groups the persistent accesses of block in one pass over
// the sorted rw table and chains their roots from the block's previous
// state root. Groups that leave the value unchanged keep the root.
func BuildMptUpdates(block *witness.Block, oracle RootOracle) *MptUpdates {
	m := &MptUpdates{
		prevRoot: block.PrevStateRoot,
	}
	r := block.Randomness
	root := block.PrevStateRoot

	NewRwTable(block.Rws).Groups(func(rwKey witness.RwKey, indices []int) {
		first := block.Rws.At(indices[0])
		key, ok := mptKey(first)
		if !ok {
			return
		}
		last := block.Rws.At(indices[len(indices)-1])
		oldValue, _ := first.ValuePrevAssignment(r)

		u := &MptUpdate{
			Key:      key,
			ReadOnly: true,
			Indices:  indices,
			rwKey:    rwKey,
			Value: MptValue{
				OldRoot:  root,
				OldValue: oldValue,
				NewValue: last.ValueAssignment(r),
			},
		}
		for _, idx := range indices {
			if block.Rws.At(idx).IsWrite {
				u.ReadOnly = false
				break
			}
		}
		if u.ReadOnly || u.Value.OldValue.Equal(u.Value.NewValue) {
			u.Value.NewRoot = root
		} else {
			u.Value.NewRoot = oracle.NextRoot(root, key, u.Value, r)
		}
		root = u.Value.NewRoot

		m.updates = append(m.updates, u)
	})
	m.finalRoot = root
	return m
}

// Updates returns the updates in chaining order
func (m *MptUpdates) Updates() []*MptUpdate {
	return m.updates
}

// Len returns the number of updated keys
func (m *MptUpdates) Len() int {
	return len(m.updates)
}

// FinalRoot returns the root after the last update
func (m *MptUpdates) FinalRoot() field.Element {
	return m.finalRoot
}

// VerifyMptUpdates checks root chaining, read-only groups, value continuity
// of storage slots across transactions and the claimed final root.
//
// BuildMptUpdates chains roots and keeps read-only roots by construction, so
// on its output the root chain and read-only root relations only fail for
// updates altered after building. The value relations and the final root
// claim are derived from the rw log and fail on inconsistent witnesses.
func VerifyMptUpdates(block *witness.Block, m *MptUpdates) []*ConsistencyViolation {
	var violations []*ConsistencyViolation
	fail := func(u *MptUpdate, relation, detail string) {
		counter := uint64(0)
		if len(u.Indices) > 0 {
			counter = block.Rws.At(u.Indices[0]).RwCounter
		}
		violations = append(violations, &ConsistencyViolation{
			Key: u.rwKey, Counter: counter, Relation: relation, Detail: detail,
		})
	}

	root := m.prevRoot
	type slot struct {
		address common.Address
		key     uint256.Int
	}
	lastInSlot := make(map[slot]*MptUpdate)
	for _, u := range m.updates {
		if !u.Value.OldRoot.Equal(root) {
			fail(u, "root chain", fmt.Sprintf("%s: old root %d, previous new root %d", u.Key, u.Value.OldRoot.Value(), root.Value()))
		}
		root = u.Value.NewRoot

		if u.ReadOnly && !u.Value.OldValue.Equal(u.Value.NewValue) {
			fail(u, "read only update", u.Key.String()+" changes value")
		}
		if u.ReadOnly && !u.Value.OldRoot.Equal(u.Value.NewRoot) {
			fail(u, "read only update", u.Key.String()+" changes root")
		}

		if u.Key.Kind != MptAccountStorage {
			continue
		}
		s := slot{address: u.Key.Address, key: u.Key.StorageKey}
		if prev, ok := lastInSlot[s]; ok {
			if !prev.Value.NewValue.Equal(u.Value.OldValue) {
				fail(u, "cross tx continuity", fmt.Sprintf("%s starts from a value tx %d did not leave", u.Key, prev.Key.TxID))
			}
			committed := block.Rws.At(u.Indices[0]).CommittedValue
			if !core.WordRLC(&committed, block.Randomness).Equal(prev.Value.NewValue) {
				fail(u, "cross tx continuity", fmt.Sprintf("%s committed value differs from tx %d result", u.Key, prev.Key.TxID))
			}
		}
		lastInSlot[s] = u
	}

	if block.StateRoot != nil && !block.StateRoot.Equal(root) {
		violations = append(violations, &ConsistencyViolation{
			Relation: "final state root",
			Detail:   fmt.Sprintf("claimed %d, derived %d", block.StateRoot.Value(), root.Value()),
		})
	}
	return violations
}
