package precompile

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const modExpHeaderLength = 96

type bigModExp struct{}

// modExpLengths parses the three 32-byte big-endian operand lengths. ok is
// false when the header is short or the operands run past the input.
func modExpLengths(input []byte) (baseLen, expLen, modLen uint64, ok bool) {
	if len(input) < modExpHeaderLength {
		return 0, 0, 0, false
	}
	lens := [3]*big.Int{
		new(big.Int).SetBytes(input[0:32]),
		new(big.Int).SetBytes(input[32:64]),
		new(big.Int).SetBytes(input[64:96]),
	}
	total := new(big.Int).SetUint64(modExpHeaderLength)
	for _, l := range lens {
		total.Add(total, l)
	}
	if total.Cmp(big.NewInt(int64(len(input)))) > 0 {
		return 0, 0, 0, false
	}
	return lens[0].Uint64(), lens[1].Uint64(), lens[2].Uint64(), true
}

// run computes base^exp mod modulus. The input must carry all operands; a
// short input yields empty output. A modulus of zero or one yields zero.
func (bigModExp) run(input []byte) []byte {
	baseLen, expLen, modLen, ok := modExpLengths(input)
	if !ok {
		return []byte{}
	}
	data := input[modExpHeaderLength:]
	var (
		base = new(big.Int).SetBytes(data[:baseLen])
		exp  = new(big.Int).SetBytes(data[baseLen : baseLen+expLen])
		mod  = new(big.Int).SetBytes(data[baseLen+expLen : baseLen+expLen+modLen])
	)
	if mod.BitLen() == 0 || mod.Cmp(big.NewInt(1)) == 0 {
		return make([]byte, modLen)
	}
	return common.LeftPadBytes(base.Exp(base, exp, mod).Bytes(), int(modLen))
}

// requiredGas follows EIP-2565
func (bigModExp) requiredGas(input []byte) uint64 {
	var (
		baseLen = new(big.Int).SetBytes(common.RightPadBytes(sliceFrom(input, 0, 32), 32))
		expLen  = new(big.Int).SetBytes(common.RightPadBytes(sliceFrom(input, 32, 32), 32))
		modLen  = new(big.Int).SetBytes(common.RightPadBytes(sliceFrom(input, 64, 32), 32))
	)
	data := sliceFrom(input, modExpHeaderLength, len(input))

	// the adjusted exponent length uses the first 32 bytes of the exponent
	expHead := new(big.Int)
	if baseLen.IsUint64() && uint64(len(data)) > baseLen.Uint64() {
		n := uint64(32)
		if expLen.IsUint64() && expLen.Uint64() < n {
			n = expLen.Uint64()
		}
		expHead.SetBytes(common.RightPadBytes(sliceFrom(data, int(baseLen.Uint64()), int(n)), int(n)))
	}
	var msb int
	if bitlen := expHead.BitLen(); bitlen > 0 {
		msb = bitlen - 1
	}
	adjExpLen := new(big.Int)
	if expLen.Cmp(big.NewInt(32)) > 0 {
		adjExpLen.Sub(expLen, big.NewInt(32))
		adjExpLen.Mul(adjExpLen, big.NewInt(8))
	}
	adjExpLen.Add(adjExpLen, big.NewInt(int64(msb)))

	gas := new(big.Int).Set(bigMax(modLen, baseLen))
	gas.Add(gas, big.NewInt(7))
	gas.Div(gas, big.NewInt(8))
	gas.Mul(gas, gas)
	gas.Mul(gas, bigMax(adjExpLen, big.NewInt(1)))
	gas.Div(gas, big.NewInt(3))
	if gas.BitLen() > 64 {
		return math.MaxUint64
	}
	return max(gas.Uint64(), 200)
}

// sliceFrom returns up to n bytes of b starting at start
func sliceFrom(b []byte, start, n int) []byte {
	if start >= len(b) {
		return nil
	}
	end := min(start+n, len(b))
	return b[start:end]
}

func bigMax(x, y *big.Int) *big.Int {
	if x.Cmp(y) < 0 {
		return y
	}
	return x
}
