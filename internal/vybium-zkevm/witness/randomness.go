package witness

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/utils"
)

const randomnessDomain = "vybium-zkevm/rw-randomness"

// DeriveRandomness binds the compression randomness to the rw log contents
// by absorbing every access into a Fiat-Shamir channel.
func DeriveRandomness(rws *RwLog) field.Element {
	ch := utils.NewChannel(randomnessDomain)
	for i := range rws.rows {
		ch.Send(encodeRw(&rws.rows[i]))
	}
	return ch.ReceiveRandomElement()
}

func encodeRw(rw *Rw) []byte {
	buf := make([]byte, 0, 8*6+1+20+32*4)
	buf = binary.BigEndian.AppendUint64(buf, uint64(rw.Tag))
	buf = binary.BigEndian.AppendUint64(buf, rw.RwCounter)
	if rw.IsWrite {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint64(buf, rw.ID)
	buf = append(buf, rw.Address.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, rw.FieldTag)
	buf = binary.BigEndian.AppendUint64(buf, rw.StackPointer)
	buf = binary.BigEndian.AppendUint64(buf, rw.MemoryAddress)
	for _, w := range []*uint256.Int{&rw.StorageKey, &rw.Value, &rw.ValuePrev, &rw.CommittedValue} {
		b := w.Bytes32()
		buf = append(buf, b[:]...)
	}
	return buf
}
