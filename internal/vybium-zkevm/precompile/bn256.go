package precompile

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/bn256"
	"github.com/ethereum/go-ethereum/params"
)

const pairingChunk = 192

var (
	true32Byte  = common.LeftPadBytes([]byte{1}, 32)
	false32Byte = make([]byte, 32)
)

func newCurvePoint(blob []byte) (*bn256.G1, bool) {
	p := new(bn256.G1)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, false
	}
	return p, true
}

func newTwistPoint(blob []byte) (*bn256.G2, bool) {
	p := new(bn256.G2)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, false
	}
	return p, true
}

type bn256Add struct{}

func (bn256Add) requiredGas([]byte) uint64 {
	return params.Bn256AddGasIstanbul
}

func (bn256Add) run(input []byte) []byte {
	input = common.RightPadBytes(input, 128)
	x, ok := newCurvePoint(input[0:64])
	if !ok {
		return []byte{}
	}
	y, ok := newCurvePoint(input[64:128])
	if !ok {
		return []byte{}
	}
	sum := new(bn256.G1)
	sum.Add(x, y)
	return sum.Marshal()
}

type bn256ScalarMul struct{}

func (bn256ScalarMul) requiredGas([]byte) uint64 {
	return params.Bn256ScalarMulGasIstanbul
}

func (bn256ScalarMul) run(input []byte) []byte {
	input = common.RightPadBytes(input, 96)
	p, ok := newCurvePoint(input[0:64])
	if !ok {
		return []byte{}
	}
	product := new(bn256.G1)
	product.ScalarMult(p, new(big.Int).SetBytes(input[64:96]))
	return product.Marshal()
}

type bn256Pairing struct{}

func (bn256Pairing) requiredGas(input []byte) uint64 {
	return params.Bn256PairingBaseGasIstanbul + uint64(len(input)/pairingChunk)*params.Bn256PairingPerPointGasIstanbul
}

func (bn256Pairing) run(input []byte) []byte {
	if len(input)%pairingChunk != 0 {
		return []byte{}
	}
	var (
		cs []*bn256.G1
		ts []*bn256.G2
	)
	for i := 0; i < len(input); i += pairingChunk {
		c, ok := newCurvePoint(input[i : i+64])
		if !ok {
			return []byte{}
		}
		t, ok := newTwistPoint(input[i+64 : i+pairingChunk])
		if !ok {
			return []byte{}
		}
		cs = append(cs, c)
		ts = append(ts, t)
	}
	if bn256.PairingCheck(cs, ts) {
		return common.CopyBytes(true32Byte)
	}
	return common.CopyBytes(false32Byte)
}
