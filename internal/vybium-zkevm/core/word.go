// Package core provides the field and word primitives shared by the witness,
// gadget and state layers of the verifier.
//
// EVM words are 256 bits wide and do not fit in a single Goldilocks element.
// They are carried through the constraint system either as 32 byte cells
// compressed by a random linear combination, or as 16 limbs of 16 bits each
// so that limb products stay far below the field modulus.
package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// WordBytes is the number of bytes in an EVM word
	WordBytes = 32

	// NumLimbs is the number of 16-bit limbs in an EVM word
	NumLimbs = 16

	// LimbBits is the width of a single limb
	LimbBits = 16
)

// LE returns the little-endian byte representation of w.
func LE(w *uint256.Int) [WordBytes]byte {
	be := w.Bytes32()
	var le [WordBytes]byte
	for i := 0; i < WordBytes; i++ {
		le[i] = be[WordBytes-1-i]
	}
	return le
}

// Limbs splits w into 16-bit limbs, least significant first.
// limb k is byte(2k) + 256*byte(2k+1) of the little-endian encoding.
func Limbs(w *uint256.Int) [NumLimbs]uint64 {
	var limbs [NumLimbs]uint64
	for i := 0; i < NumLimbs; i++ {
		limbs[i] = (w[i/4] >> (LimbBits * (i % 4))) & 0xffff
	}
	return limbs
}

// AddressWord widens an address into a word.
func AddressWord(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes20(addr.Bytes())
}

// HashWord interprets a 32-byte hash as a big-endian word.
func HashWord(h common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(h.Bytes())
}
