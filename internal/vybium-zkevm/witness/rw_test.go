package witness

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
)

func TestRwTagNames(t *testing.T) {
	for tag := RwStart; tag <= RwTxRefund; tag++ {
		parsed, err := ParseRwTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}
	_, err := ParseRwTag("Bogus")
	require.Error(t, err)
}

func TestRwKey(t *testing.T) {
	a := Rw{Tag: RwStack, ID: 1, StackPointer: 1023, Value: *uint256.NewInt(5)}
	b := Rw{Tag: RwStack, ID: 1, StackPointer: 1023, Value: *uint256.NewInt(9), IsWrite: true}
	c := Rw{Tag: RwStack, ID: 2, StackPointer: 1023}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())

	s1 := Rw{Tag: RwAccountStorage, ID: 1, Address: testContract, StorageKey: *uint256.NewInt(1)}
	s2 := Rw{Tag: RwAccountStorage, ID: 2, Address: testContract, StorageKey: *uint256.NewInt(1)}
	assert.NotEqual(t, s1.Key(), s2.Key(), "storage keys are scoped by tx")
}

func TestTableRow(t *testing.T) {
	r := field.New(11)

	t.Run("stack", func(t *testing.T) {
		rw := Rw{Tag: RwStack, RwCounter: 3, IsWrite: true, ID: 1, StackPointer: 1022, Value: *uint256.NewInt(300)}
		row := rw.TableRow(r)
		assert.Equal(t, uint64(3), row[RwColCounter].Value())
		assert.Equal(t, uint64(1), row[RwColIsWrite].Value())
		assert.Equal(t, uint64(RwStack), row[RwColTag].Value())
		assert.Equal(t, uint64(1022), row[RwColAddress].Value())
		assert.Equal(t, core.WordRLC(uint256.NewInt(300), r).Value(), row[RwColValue].Value())
		assert.True(t, row[RwColValuePrev].IsZero())
	})

	t.Run("call context scalar", func(t *testing.T) {
		rw := Rw{Tag: RwCallContext, ID: 1, FieldTag: uint64(CallContextTxID), Value: *uint256.NewInt(70000)}
		assert.Equal(t, uint64(70000), rw.TableRow(r)[RwColValue].Value())
	})

	t.Run("account nonce scalar", func(t *testing.T) {
		rw := Rw{
			Tag: RwAccount, IsWrite: true, Address: testSender, FieldTag: uint64(AccountNonce),
			Value: *uint256.NewInt(70001), ValuePrev: *uint256.NewInt(70000),
		}
		row := rw.TableRow(r)
		assert.Equal(t, uint64(70001), row[RwColValue].Value())
		assert.Equal(t, uint64(70000), row[RwColValuePrev].Value())

		rw.FieldTag = uint64(AccountBalance)
		assert.Equal(t, core.WordRLC(uint256.NewInt(70001), r).Value(), rw.TableRow(r)[RwColValue].Value())
	})

	t.Run("storage", func(t *testing.T) {
		rw := Rw{
			Tag: RwAccountStorage, ID: 2, Address: testContract, StorageKey: *uint256.NewInt(9),
			Value: *uint256.NewInt(1000), ValuePrev: *uint256.NewInt(2000), CommittedValue: *uint256.NewInt(3000),
		}
		row := rw.TableRow(r)
		assert.Equal(t, core.AddressRLC(testContract, r).Value(), row[RwColAddress].Value())
		assert.Equal(t, uint64(9), row[RwColStorageKey].Value())
		assert.Equal(t, core.WordRLC(uint256.NewInt(2000), r).Value(), row[RwColValuePrev].Value())
		assert.Equal(t, core.WordRLC(uint256.NewInt(3000), r).Value(), row[RwColCommitted].Value())
	})
}

func TestRwLog(t *testing.T) {
	log := NewRwLog(0)
	require.Equal(t, uint64(1), log.NextCounter())
	idx := log.Append(Rw{Tag: RwStart, RwCounter: 1})
	require.Equal(t, 0, idx)
	require.Equal(t, uint64(2), log.NextCounter())

	_, err := log.Get(1)
	require.Error(t, err)
	rw, err := log.Get(0)
	require.NoError(t, err)
	require.Equal(t, RwStart, rw.Tag)
}

func TestDeriveRandomness(t *testing.T) {
	build := func(value uint64) *Block {
		b := NewBuilder()
		code := []byte{0x60, byte(value), 0x50, 0x00} // PUSH1 value, POP, STOP
		require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: code, Gas: 100}))
		return b.Build()
	}
	x, y, z := build(1), build(1), build(2)
	require.True(t, x.Randomness.Equal(y.Randomness))
	require.False(t, x.Randomness.Equal(z.Randomness))
	require.True(t, DeriveRandomness(x.Rws).Equal(x.Randomness))
}

func TestBlockJSON(t *testing.T) {
	b := NewBuilder().WithStorage(testContract, uint256.NewInt(1), uint256.NewInt(77))
	code := []byte{0x60, 0x01, 0x54, 0x50, 0x00} // PUSH1 1, SLOAD, POP, STOP
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: code, Gas: 5000}))
	block := b.Build()
	root := field.New(99)
	block.StateRoot = &root

	var buf bytes.Buffer
	require.NoError(t, EncodeBlock(&buf, block))
	decoded, err := DecodeBlock(&buf)
	require.NoError(t, err)

	require.Equal(t, block.Steps, decoded.Steps)
	require.Equal(t, block.Rws.Rows(), decoded.Rws.Rows())
	require.Equal(t, block.Bytecodes, decoded.Bytecodes)
	require.Equal(t, block.End, decoded.End)
	require.Equal(t, block.Randomness.Value(), decoded.Randomness.Value())
	require.NotNil(t, decoded.StateRoot)
	require.Equal(t, uint64(99), decoded.StateRoot.Value())
}

func TestValidate(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddTx(Tx{From: testSender, To: testContract, Code: []byte{0x00}, Gas: 1}))
	block := b.Build()
	require.NoError(t, block.Validate())

	block.Steps[0].RwIndices = []int{42}
	require.ErrorIs(t, block.Validate(), ErrMalformedBlock)
}
