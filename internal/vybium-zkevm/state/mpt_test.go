package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/utils"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

func storageKey(tx uint64, slot uint64) MptKey {
	return MptKey{Kind: MptAccountStorage, TxID: tx, Address: testContract, StorageKey: *uint256.NewInt(slot)}
}

func findUpdate(m *MptUpdates, key MptKey) (MptValue, bool) {
	for _, u := range m.Updates() {
		if u.Key == key {
			return u.Value, true
		}
	}
	return MptValue{}, false
}

func TestBuildMptUpdatesSequential(t *testing.T) {
	block := storageBlock(t, 2)
	m := BuildMptUpdates(block, SequentialRootOracle{})

	// three slots in each tx plus the sender nonce
	require.Equal(t, 7, m.Len())
	assert.Equal(t, uint64(103), m.FinalRoot().Value())
	require.Empty(t, VerifyMptUpdates(block, m))

	r := block.Randomness
	tests := []struct {
		name             string
		key              MptKey
		oldRoot, newRoot uint64
		oldValue         uint64
		newValue         uint64
	}{
		{"first store", storageKey(1, 1), 100, 101, 0, 0x2a},
		{"clear", storageKey(1, 2), 101, 102, 9, 0},
		{"read only", storageKey(1, 0x100), 102, 102, 3, 3},
		{"unchanged store", storageKey(2, 1), 102, 102, 0x2a, 0x2a},
		{"unchanged clear", storageKey(2, 2), 102, 102, 0, 0},
		{"nonce", MptKey{Kind: MptAccount, Address: testSender, FieldTag: witness.AccountNonce}, 102, 103, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := findUpdate(m, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.oldRoot, v.OldRoot.Value())
			assert.Equal(t, tt.newRoot, v.NewRoot.Value())
			assert.True(t, core.WordRLC(uint256.NewInt(tt.oldValue), r).Equal(v.OldValue))
			assert.True(t, core.WordRLC(uint256.NewInt(tt.newValue), r).Equal(v.NewValue))
		})
	}

	_, ok := findUpdate(m, storageKey(3, 1))
	assert.False(t, ok)
}

func TestBuildMptUpdatesPoseidon(t *testing.T) {
	oracle, err := NewRootOracle(utils.RootSchemePoseidon)
	require.NoError(t, err)

	block := storageBlock(t, 2)
	m := BuildMptUpdates(block, oracle)
	require.Empty(t, VerifyMptUpdates(block, m))
	assert.False(t, m.FinalRoot().Equal(block.PrevStateRoot))

	again := BuildMptUpdates(storageBlock(t, 2), oracle)
	assert.True(t, m.FinalRoot().Equal(again.FinalRoot()))

	// one fewer transaction leaves a different state
	shorter := BuildMptUpdates(storageBlock(t, 1), oracle)
	assert.False(t, m.FinalRoot().Equal(shorter.FinalRoot()))

	_, err = NewRootOracle("merkle")
	require.Error(t, err)
}

func TestVerifyMptUpdates(t *testing.T) {
	t.Run("claimed final root", func(t *testing.T) {
		block := storageBlock(t, 2)
		good := field.New(103)
		block.StateRoot = &good
		require.Empty(t, VerifyMptUpdates(block, BuildMptUpdates(block, SequentialRootOracle{})))

		bad := field.New(104)
		block.StateRoot = &bad
		require.Equal(t, []string{"final state root"},
			relations(VerifyMptUpdates(block, BuildMptUpdates(block, SequentialRootOracle{}))))
	})

	t.Run("root chain", func(t *testing.T) {
		block := storageBlock(t, 1)
		m := BuildMptUpdates(block, SequentialRootOracle{})
		m.Updates()[1].Value.OldRoot = field.New(5)
		require.Equal(t, []string{"root chain"}, relations(VerifyMptUpdates(block, m)))
	})

	t.Run("read only", func(t *testing.T) {
		block := storageBlock(t, 1)
		for i := range block.Rws.Rows() {
			rw := block.Rws.At(i)
			if rw.Tag == witness.RwAccountStorage && rw.StorageKey.Uint64() == 0x100 {
				rw.Value = *uint256.NewInt(4)
			}
		}
		m := BuildMptUpdates(block, SequentialRootOracle{})
		require.Equal(t, []string{"read only update"}, relations(VerifyMptUpdates(block, m)))
	})

	t.Run("cross tx continuity", func(t *testing.T) {
		block := storageBlock(t, 2)
		for i := range block.Rws.Rows() {
			rw := block.Rws.At(i)
			if rw.Tag == witness.RwAccountStorage && rw.ID == 2 && rw.StorageKey.Uint64() == 1 {
				rw.ValuePrev = *uint256.NewInt(7)
				rw.CommittedValue = *uint256.NewInt(7)
				break
			}
		}
		m := BuildMptUpdates(block, SequentialRootOracle{})
		require.Equal(t, []string{"cross tx continuity", "cross tx continuity"}, relations(VerifyMptUpdates(block, m)))
	})
}
