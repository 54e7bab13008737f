// Package precompile executes the precompiled contracts at addresses 0x01
// to 0x08. Malformed input yields empty output rather than an error; only
// dispatching to an address outside the set is a programming error.
package precompile

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	//lint:ignore SA1019 Needed for precompile
	"golang.org/x/crypto/ripemd160"
)

// Addresses of the supported precompiles
var (
	EcRecoverAddress = common.BytesToAddress([]byte{0x01})
	Sha256Address    = common.BytesToAddress([]byte{0x02})
	Ripemd160Address = common.BytesToAddress([]byte{0x03})
	IdentityAddress  = common.BytesToAddress([]byte{0x04})
	ModExpAddress    = common.BytesToAddress([]byte{0x05})
	Bn256AddAddress  = common.BytesToAddress([]byte{0x06})
	Bn256MulAddress  = common.BytesToAddress([]byte{0x07})
	Bn256PairAddress = common.BytesToAddress([]byte{0x08})
)

type contract interface {
	requiredGas(input []byte) uint64
	run(input []byte) []byte
}

// lookup dispatches on the low byte of addr
func lookup(addr common.Address) contract {
	switch addr[common.AddressLength-1] {
	case 0x01:
		return ecrecover{}
	case 0x02:
		return sha256hash{}
	case 0x03:
		return ripemd160hash{}
	case 0x04:
		return dataCopy{}
	case 0x05:
		return bigModExp{}
	case 0x06:
		return bn256Add{}
	case 0x07:
		return bn256ScalarMul{}
	case 0x08:
		return bn256Pairing{}
	default:
		panic(fmt.Sprintf("precompile: no contract at %s", addr.Hex()))
	}
}

// Execute runs the precompile at addr on input. It panics when addr is not a
// precompile.
func Execute(addr common.Address, input []byte) []byte {
	return lookup(addr).run(input)
}

// RequiredGas prices a call under Berlin rules. It panics when addr is not a
// precompile.
func RequiredGas(addr common.Address, input []byte) uint64 {
	return lookup(addr).requiredGas(input)
}

// IsPrecompile reports whether addr is one of the supported precompiles
func IsPrecompile(addr common.Address) bool {
	for _, b := range addr[:common.AddressLength-1] {
		if b != 0 {
			return false
		}
	}
	low := addr[common.AddressLength-1]
	return low >= 0x01 && low <= 0x08
}

func wordGas(input []byte, perWord, base uint64) uint64 {
	return uint64(len(input)+31)/32*perWord + base
}

type ecrecover struct{}

func (ecrecover) requiredGas([]byte) uint64 {
	return params.EcrecoverGas
}

func (ecrecover) run(input []byte) []byte {
	const inputLength = 128
	input = common.RightPadBytes(input, inputLength)

	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	v := input[63] - 27

	// v is a single byte inside a 32-byte word
	if !allZero(input[32:63]) || !crypto.ValidateSignatureValues(v, r, s, false) {
		return []byte{}
	}
	sig := make([]byte, 65)
	copy(sig, input[64:128])
	sig[64] = v
	pubKey, err := crypto.Ecrecover(input[:32], sig)
	if err != nil {
		return []byte{}
	}
	return common.LeftPadBytes(crypto.Keccak256(pubKey[1:])[12:], 32)
}

type sha256hash struct{}

func (sha256hash) requiredGas(input []byte) uint64 {
	return wordGas(input, params.Sha256PerWordGas, params.Sha256BaseGas)
}

func (sha256hash) run(input []byte) []byte {
	h := sha256.Sum256(input)
	return h[:]
}

type ripemd160hash struct{}

func (ripemd160hash) requiredGas(input []byte) uint64 {
	return wordGas(input, params.Ripemd160PerWordGas, params.Ripemd160BaseGas)
}

func (ripemd160hash) run(input []byte) []byte {
	h := ripemd160.New()
	h.Write(input)
	return common.LeftPadBytes(h.Sum(nil), 32)
}

type dataCopy struct{}

func (dataCopy) requiredGas(input []byte) uint64 {
	return wordGas(input, params.IdentityPerWordGas, params.IdentityBaseGas)
}

func (dataCopy) run(input []byte) []byte {
	return common.CopyBytes(input)
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
