// Package state implements the global consistency layer of the verifier.
//
// The rw table is the rw log sorted by access key and counter. Within a key
// every read observes the latest write, stack slots are written before they
// are read, memory defaults to zero and accesses with a prior value chain
// onto their predecessor. Persistent accesses are then grouped into MPT
// updates whose state roots chain from the block's initial commitment.
package state

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/utils"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// ErrConsistencyViolation matches every *ConsistencyViolation under errors.Is
var ErrConsistencyViolation = errors.New("state: consistency violation")

// ConsistencyViolation locates a broken relation between accesses
type ConsistencyViolation struct {
	Key      witness.RwKey
	Counter  uint64
	Relation string
	Detail   string
}

// Error implements error
func (v *ConsistencyViolation) Error() string {
	msg := fmt.Sprintf("rw #%d %s: %s", v.Counter, v.Key.Tag, v.Relation)
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}

// Is reports whether target is ErrConsistencyViolation
func (v *ConsistencyViolation) Is(target error) bool {
	return target == ErrConsistencyViolation
}

// RwTable is a view of the rw log sorted by (key, counter)
type RwTable struct {
	rws    *witness.RwLog
	sorted []int
}

// NewRwTable sorts the log. Accesses with equal keys keep their log order.
func NewRwTable(rws *witness.RwLog) *RwTable {
	sorted := make([]int, rws.Len())
	for i := range sorted {
		sorted[i] = i
	}
	slices.SortStableFunc(sorted, func(a, b int) int {
		ra, rb := rws.At(a), rws.At(b)
		if c := compareKeys(ra.Key(), rb.Key()); c != 0 {
			return c
		}
		return cmp.Compare(ra.RwCounter, rb.RwCounter)
	})
	return &RwTable{rws: rws, sorted: sorted}
}

func compareKeys(a, b witness.RwKey) int {
	if c := cmp.Compare(a.Tag, b.Tag); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Address[:], b.Address[:]); c != 0 {
		return c
	}
	if c := cmp.Compare(a.FieldTag, b.FieldTag); c != 0 {
		return c
	}
	if c := a.StorageKey.Cmp(&b.StorageKey); c != 0 {
		return c
	}
	return cmp.Compare(a.Slot, b.Slot)
}

// Len returns the number of accesses
func (t *RwTable) Len() int {
	return len(t.sorted)
}

// Row returns the i-th access in sorted order and its log index
func (t *RwTable) Row(i int) (*witness.Rw, int) {
	idx := t.sorted[i]
	return t.rws.At(idx), idx
}

// Groups calls fn with the log indices of every key in sorted order
func (t *RwTable) Groups(fn func(key witness.RwKey, indices []int)) {
	for start := 0; start < len(t.sorted); {
		key := t.rws.At(t.sorted[start]).Key()
		end := start + 1
		for end < len(t.sorted) && t.rws.At(t.sorted[end]).Key() == key {
			end++
		}
		fn(key, t.sorted[start:end])
		start = end
	}
}

// VerifyRwTable checks counters, step ownership and the per-key access
// relations of block
func VerifyRwTable(block *witness.Block) []*ConsistencyViolation {
	table := NewRwTable(block.Rws)
	violations := verifyCounters(block)
	violations = append(violations, verifyOwnership(block)...)
	table.Groups(func(key witness.RwKey, indices []int) {
		violations = append(violations, verifyGroup(block.Rws, key, indices)...)
	})
	violations = append(violations, table.verifyPermutation(block)...)
	return violations
}

// verifyCounters requires counters to be 1, 2, 3, ... in log order
func verifyCounters(block *witness.Block) []*ConsistencyViolation {
	var violations []*ConsistencyViolation
	for i, rw := range block.Rws.Rows() {
		if want := uint64(i) + 1; rw.RwCounter != want {
			violations = append(violations, &ConsistencyViolation{
				Key:      rw.Key(),
				Counter:  rw.RwCounter,
				Relation: "rw counter",
				Detail:   fmt.Sprintf("index %d has counter %d, want %d", i, rw.RwCounter, want),
			})
		}
	}
	return violations
}

// verifyOwnership requires every access to belong to at most one step
func verifyOwnership(block *witness.Block) []*ConsistencyViolation {
	owner := make(map[int]int)
	var violations []*ConsistencyViolation
	for s := range block.Steps {
		for _, idx := range block.Steps[s].RwIndices {
			prev, claimed := owner[idx]
			if !claimed {
				owner[idx] = s
				continue
			}
			rw, err := block.Rws.Get(idx)
			if err != nil {
				continue
			}
			violations = append(violations, &ConsistencyViolation{
				Key:      rw.Key(),
				Counter:  rw.RwCounter,
				Relation: "rw ownership",
				Detail:   fmt.Sprintf("claimed by steps %d and %d", prev, s),
			})
		}
	}
	return violations
}

func verifyGroup(rws *witness.RwLog, key witness.RwKey, indices []int) []*ConsistencyViolation {
	var violations []*ConsistencyViolation
	fail := func(rw *witness.Rw, relation, detail string) {
		violations = append(violations, &ConsistencyViolation{
			Key: key, Counter: rw.RwCounter, Relation: relation, Detail: detail,
		})
	}

	first := rws.At(indices[0])
	switch key.Tag {
	case witness.RwStart:
		return nil
	case witness.RwStack:
		if !first.IsWrite {
			fail(first, "stack read before write", "")
		}
	case witness.RwMemory:
		if !first.IsWrite && !first.Value.IsZero() {
			fail(first, "memory initial value", "unwritten memory reads zero")
		}
	case witness.RwTxAccessListAccount, witness.RwTxAccessListAccountStorage, witness.RwTxRefund:
		if !first.ValuePrev.IsZero() {
			fail(first, "initial value", "tx scoped values start at zero")
		}
	}
	if first.Tag == witness.RwCallContext && first.IsWrite {
		fail(first, "call context write", "call context is read only")
	}
	if first.Tag.HasValuePrev() && !first.IsWrite && !first.Value.Eq(&first.ValuePrev) {
		fail(first, "read changes value", "")
	}

	prev := first
	for _, idx := range indices[1:] {
		rw := rws.At(idx)
		switch {
		case rw.Tag == witness.RwCallContext && rw.IsWrite:
			fail(rw, "call context write", "call context is read only")
		case !rw.IsWrite && !rw.Value.Eq(&prev.Value):
			fail(rw, "read after write", fmt.Sprintf("read %s, last value %s", rw.Value.Hex(), prev.Value.Hex()))
		}
		if rw.Tag.HasValuePrev() && !rw.ValuePrev.Eq(&prev.Value) {
			fail(rw, "value prev chain", fmt.Sprintf("value prev %s, last value %s", rw.ValuePrev.Hex(), prev.Value.Hex()))
		}
		if rw.Tag == witness.RwAccountStorage && !rw.CommittedValue.Eq(&first.CommittedValue) {
			fail(rw, "committed value", "committed value changes within a tx")
		}
		prev = rw
	}
	return violations
}

// verifyPermutation checks with a running product argument that the rows
// the steps claim, in step order, are a permutation of the sorted table.
// An access no step claims, or one claimed twice, breaks the equality.
func (t *RwTable) verifyPermutation(block *witness.Block) []*ConsistencyViolation {
	if len(t.sorted) == 0 && len(block.Steps) == 0 {
		return nil
	}
	channel := utils.NewChannel("vybium-zkevm/rw-permutation")
	channel.Send(binary.BigEndian.AppendUint64(nil, block.Randomness.Value()))
	indeterminate := channel.ReceiveRandomElement()
	weight := channel.ReceiveRandomElement()

	claims := make(map[int]int, len(t.sorted))
	stepProduct := field.One
	for s := range block.Steps {
		for _, idx := range block.Steps[s].RwIndices {
			rw, err := block.Rws.Get(idx)
			if err != nil {
				continue
			}
			claims[idx]++
			stepProduct = stepProduct.Mul(indeterminate.Sub(compressRow(rw, block.Randomness, weight)))
		}
	}
	tableProduct := field.One
	for i := range t.sorted {
		row, _ := t.Row(i)
		tableProduct = tableProduct.Mul(indeterminate.Sub(compressRow(row, block.Randomness, weight)))
	}
	if stepProduct.Equal(tableProduct) {
		return nil
	}

	violation := &ConsistencyViolation{
		Relation: "permutation",
		Detail:   "claimed rows are not a permutation of the table",
	}
	for i := range t.sorted {
		row, idx := t.Row(i)
		if claims[idx] == 0 || i == 0 {
			violation.Key, violation.Counter = row.Key(), row.RwCounter
		}
		if claims[idx] == 0 {
			violation.Detail = "access claimed by no step"
			break
		}
	}
	return []*ConsistencyViolation{violation}
}

func compressRow(rw *witness.Rw, randomness, weight field.Element) field.Element {
	row := rw.TableRow(randomness)
	acc := field.Zero
	for i := len(row) - 1; i >= 0; i-- {
		acc = acc.Mul(weight).Add(row[i])
	}
	return acc
}
