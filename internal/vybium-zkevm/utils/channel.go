package utils

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Channel is a Fiat-Shamir transcript. Everything sent into it is absorbed
// into a keccak state, and challenges are squeezed from that state.
type Channel struct {
	state      []byte
	transcript []string
}

// NewChannel creates a new Fiat-Shamir channel bound to a domain label
func NewChannel(domain string) *Channel {
	c := &Channel{
		state:      []byte{0},
		transcript: make([]string, 0, 64),
	}
	if domain != "" {
		c.Send([]byte(domain))
	}
	return c
}

// Send absorbs data into the channel state
func (c *Channel) Send(data []byte) {
	c.transcript = append(c.transcript, fmt.Sprintf("send:%s", hex.EncodeToString(data)))
	c.state = keccak(append(c.state, data...))
}

// ReceiveRandomInt draws an integer in [min, max].
// Returns nil if min > max.
func (c *Channel) ReceiveRandomInt(min, max *big.Int) *big.Int {
	if min.Cmp(max) > 0 {
		return nil
	}

	stateAsInt := new(big.Int).SetBytes(c.state)

	rangeSize := new(big.Int).Sub(max, min)
	rangeSize.Add(rangeSize, big.NewInt(1))

	random := new(big.Int).Mod(stateAsInt, rangeSize)
	random.Add(random, min)

	c.transcript = append(c.transcript, fmt.Sprintf("receiveRandInt:%s", random.String()))
	c.state = keccak(c.state)

	return random
}

// ReceiveRandomElement draws a nonzero Goldilocks element
func (c *Channel) ReceiveRandomElement() field.Element {
	max := new(big.Int).SetUint64(field.P - 1)
	random := c.ReceiveRandomInt(big.NewInt(1), max)
	return field.New(random.Uint64())
}

// State returns the current channel state
func (c *Channel) State() []byte {
	return append([]byte(nil), c.state...)
}

// Transcript returns the operations recorded so far
func (c *Channel) Transcript() []string {
	return append([]string(nil), c.transcript...)
}

// String returns a string representation of the transcript
func (c *Channel) String() string {
	return strings.Join(c.transcript, " ")
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
