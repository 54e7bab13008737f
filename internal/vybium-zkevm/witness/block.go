package witness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

var (
	// ErrMalformedBlock is returned when the witness is structurally broken
	ErrMalformedBlock = errors.New("witness: malformed block")
)

// Block is the complete witness for one verification run
type Block struct {
	Steps []ExecStep
	Rws   *RwLog

	// Bytecodes maps code hash to code
	Bytecodes map[common.Hash][]byte

	// Randomness compresses words into single field elements
	Randomness field.Element

	// PrevStateRoot is the state commitment before the block
	PrevStateRoot field.Element

	// StateRoot optionally claims the commitment after the block
	StateRoot *field.Element

	// End is the state after the last step
	End StepState
}

// NextState returns the state the step at idx transitions into
func (b *Block) NextState(idx int) StepState {
	if idx+1 < len(b.Steps) {
		return b.Steps[idx+1].StepState
	}
	return b.End
}

// NextExecutionState returns the state of the step after idx, or
// StateEndBlock past the last step
func (b *Block) NextExecutionState(idx int) ExecutionState {
	if idx+1 < len(b.Steps) {
		return b.Steps[idx+1].ExecutionState
	}
	return StateEndBlock
}

// Code returns the bytecode for a code hash
func (b *Block) Code(hash common.Hash) ([]byte, bool) {
	code, ok := b.Bytecodes[hash]
	return code, ok
}

// Validate checks the structural invariants the verifier relies on: every
// rw index resolves, every referenced bytecode is present and hashes to its
// key. Semantic consistency is left to the constraint layers.
func (b *Block) Validate() error {
	if b.Rws == nil {
		return fmt.Errorf("%w: missing rw log", ErrMalformedBlock)
	}
	for hash, code := range b.Bytecodes {
		if got := crypto.Keccak256Hash(code); got != hash {
			return fmt.Errorf("%w: bytecode keyed %s hashes to %s", ErrMalformedBlock, hash, got)
		}
	}
	for i := range b.Steps {
		step := &b.Steps[i]
		for _, idx := range step.RwIndices {
			if _, err := b.Rws.Get(idx); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrMalformedBlock, i, err)
			}
		}
		if _, ok := b.Code(step.CodeHash); !ok {
			return fmt.Errorf("%w: step %d: unknown code hash %s", ErrMalformedBlock, i, step.CodeHash)
		}
	}
	return nil
}
