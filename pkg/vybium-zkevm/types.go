package vybiumzkevm

import (
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/evm"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/precompile"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/state"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/utils"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// Block is a complete block witness
type Block = witness.Block

// Builder produces block witnesses by replaying PUSH, POP, DIV, SLOAD,
// SSTORE and STOP over an in-memory storage pre-state
type Builder = witness.Builder

// Tx is one transaction replayed by a Builder
type Tx = witness.Tx

// Config represents the verifier configuration
type Config = utils.Config

// ConstraintViolation locates a failed step constraint
type ConstraintViolation = evm.ConstraintViolation

// ConsistencyViolation locates a failed rw table or mpt relation
type ConsistencyViolation = state.ConsistencyViolation

// Layer names a verification layer
type Layer string

const (
	LayerWitness Layer = "witness"
	LayerStep    Layer = "step"
	LayerRwTable Layer = "rw_table"
	LayerMpt     Layer = "mpt"
)

// Violation is one failed check. Err holds the layer's typed violation.
type Violation struct {
	Layer   Layer  `json:"layer"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// String returns the layer and message
func (v Violation) String() string {
	return string(v.Layer) + ": " + v.Message
}

// MptClaim is the root and value transition of one persistent key. Values
// are the canonical field representations.
type MptClaim struct {
	Key      string `json:"key"`
	ReadOnly bool   `json:"read_only"`
	OldRoot  uint64 `json:"old_root"`
	NewRoot  uint64 `json:"new_root"`
	OldValue uint64 `json:"old_value"`
	NewValue uint64 `json:"new_value"`
}

// Result represents the outcome of verifying one block
type Result struct {
	// Whether every enabled layer passed
	Valid bool `json:"valid"`

	// Number of steps checked by the step layer
	Steps int `json:"steps"`

	// Failed checks, step layer first
	Violations []Violation `json:"violations,omitempty"`

	// Persistent updates in root chaining order (mpt layer only)
	MptClaims []MptClaim `json:"mpt_claims,omitempty"`

	// Root after the last update (mpt layer only)
	FinalRoot uint64 `json:"final_root"`

	// Wall time of the verification
	Duration time.Duration `json:"duration_ns"`
}

// Err summarizes the result as a *VerifierError, nil when valid. The code
// is that of the first violation's layer.
func (r *Result) Err() error {
	if r.Valid || len(r.Violations) == 0 {
		return nil
	}
	first := r.Violations[0]
	code := ErrStateVerification
	switch first.Layer {
	case LayerStep:
		code = ErrStepVerification
	case LayerWitness:
		code = ErrRandomnessMismatch
	}
	return &VerifierError{Code: code, Message: first.Message, Cause: first.Err}
}

// DefaultConfig returns a configuration with every layer enabled and
// Poseidon roots
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// NewBuilder creates an empty witness builder
func NewBuilder() *Builder {
	return witness.NewBuilder()
}

// DecodeBlock reads a JSON block witness
func DecodeBlock(r io.Reader) (*Block, error) {
	block, err := witness.DecodeBlock(r)
	if err != nil {
		return nil, &VerifierError{Code: ErrInvalidWitness, Message: "failed to decode block witness", Cause: err}
	}
	return block, nil
}

// EncodeBlock writes a block witness as JSON
func EncodeBlock(w io.Writer, block *Block) error {
	return witness.EncodeBlock(w, block)
}

// ExecutePrecompile runs the precompiled contract at addr. Malformed input
// yields empty output; addr outside 0x01-0x08 panics.
func ExecutePrecompile(addr common.Address, input []byte) []byte {
	return precompile.Execute(addr, input)
}

// PrecompileGas prices a precompile call under Berlin rules
func PrecompileGas(addr common.Address, input []byte) uint64 {
	return precompile.RequiredGas(addr, input)
}

// IsPrecompile reports whether addr is a supported precompile
func IsPrecompile(addr common.Address) bool {
	return precompile.IsPrecompile(addr)
}
