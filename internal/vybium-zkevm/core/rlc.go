package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// RLC computes the random linear combination sum(le[i] * r^i).
func RLC(le []byte, r field.Element) field.Element {
	acc := field.Zero
	for i := len(le) - 1; i >= 0; i-- {
		acc = acc.Mul(r).Add(field.New(uint64(le[i])))
	}
	return acc
}

// WordRLC compresses a word with the block randomness.
func WordRLC(w *uint256.Int, r field.Element) field.Element {
	le := LE(w)
	return RLC(le[:], r)
}

// AddressRLC compresses an address. It agrees with WordRLC of the widened
// address since the high zero bytes contribute nothing.
func AddressRLC(addr common.Address, r field.Element) field.Element {
	return WordRLC(AddressWord(addr), r)
}

// HashRLC compresses a 32-byte hash read as a big-endian word.
func HashRLC(h common.Hash, r field.Element) field.Element {
	return WordRLC(HashWord(h), r)
}

// Scalar lifts a small integer into the field.
func Scalar(v uint64) field.Element {
	return field.New(v)
}

// Signed lifts a signed integer, mapping negatives to p - |v|.
func Signed(v int64) field.Element {
	if v < 0 {
		return field.Zero.Sub(field.New(uint64(-v)))
	}
	return field.New(uint64(v))
}

// Bool maps true to one and false to zero.
func Bool(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}
