package witness

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// JSON wire format of a block witness. Words are decimal or 0x-prefixed hex
// strings, field elements are plain integers below the field modulus.

type rwJSON struct {
	Tag            string         `json:"tag"`
	RwCounter      uint64         `json:"rwc"`
	IsWrite        bool           `json:"isWrite"`
	ID             uint64         `json:"id,omitempty"`
	Address        common.Address `json:"address"`
	FieldTag       uint64         `json:"fieldTag,omitempty"`
	StorageKey     *uint256.Int   `json:"storageKey,omitempty"`
	StackPointer   uint64         `json:"sp,omitempty"`
	MemoryAddress  uint64         `json:"memoryAddress,omitempty"`
	Value          *uint256.Int   `json:"value"`
	ValuePrev      *uint256.Int   `json:"valuePrev,omitempty"`
	CommittedValue *uint256.Int   `json:"committedValue,omitempty"`
}

type stepStateJSON struct {
	RwCounter      uint64      `json:"rwc"`
	CallID         uint64      `json:"callId"`
	ProgramCounter uint64      `json:"pc"`
	StackPointer   uint64      `json:"sp"`
	GasLeft        uint64      `json:"gas"`
	CodeHash       common.Hash `json:"codeHash"`
}

type stepJSON struct {
	stepStateJSON
	State     string `json:"state"`
	Opcode    string `json:"opcode"`
	RwIndices []int  `json:"rwIndices"`
}

type blockJSON struct {
	Steps         []stepJSON                    `json:"steps"`
	Rws           []rwJSON                      `json:"rws"`
	Bytecodes     map[common.Hash]hexutil.Bytes `json:"bytecodes"`
	Randomness    uint64                        `json:"randomness"`
	PrevStateRoot uint64                        `json:"prevStateRoot"`
	StateRoot     *uint64                       `json:"stateRoot,omitempty"`
	End           stepStateJSON                 `json:"end"`
}

// DecodeBlock reads a JSON block witness
func DecodeBlock(r io.Reader) (*Block, error) {
	var b Block
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}

// EncodeBlock writes b as indented JSON
func EncodeBlock(w io.Writer, b *Block) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// MarshalJSON implements json.Marshaler
func (b *Block) MarshalJSON() ([]byte, error) {
	out := blockJSON{
		Steps:         make([]stepJSON, len(b.Steps)),
		Bytecodes:     make(map[common.Hash]hexutil.Bytes, len(b.Bytecodes)),
		Randomness:    b.Randomness.Value(),
		PrevStateRoot: b.PrevStateRoot.Value(),
		End:           toStepStateJSON(b.End),
	}
	if b.StateRoot != nil {
		root := b.StateRoot.Value()
		out.StateRoot = &root
	}
	for hash, code := range b.Bytecodes {
		out.Bytecodes[hash] = code
	}
	for i := range b.Steps {
		s := &b.Steps[i]
		out.Steps[i] = stepJSON{
			stepStateJSON: toStepStateJSON(s.StepState),
			State:         s.ExecutionState.String(),
			Opcode:        s.Opcode.String(),
			RwIndices:     s.RwIndices,
		}
	}
	if b.Rws != nil {
		out.Rws = make([]rwJSON, b.Rws.Len())
		for i := range b.Rws.rows {
			rw := &b.Rws.rows[i]
			out.Rws[i] = rwJSON{
				Tag:           rw.Tag.String(),
				RwCounter:     rw.RwCounter,
				IsWrite:       rw.IsWrite,
				ID:            rw.ID,
				Address:       rw.Address,
				FieldTag:      rw.FieldTag,
				StackPointer:  rw.StackPointer,
				MemoryAddress: rw.MemoryAddress,
				Value:         new(uint256.Int).Set(&rw.Value),
			}
			if !rw.StorageKey.IsZero() {
				out.Rws[i].StorageKey = new(uint256.Int).Set(&rw.StorageKey)
			}
			if rw.Tag.HasValuePrev() {
				out.Rws[i].ValuePrev = new(uint256.Int).Set(&rw.ValuePrev)
			}
			if rw.Tag == RwAccountStorage {
				out.Rws[i].CommittedValue = new(uint256.Int).Set(&rw.CommittedValue)
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (b *Block) UnmarshalJSON(data []byte) error {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for _, v := range []uint64{in.Randomness, in.PrevStateRoot} {
		if v >= field.P {
			return fmt.Errorf("field element %d out of range", v)
		}
	}

	*b = Block{
		Steps:         make([]ExecStep, len(in.Steps)),
		Rws:           NewRwLog(len(in.Rws)),
		Bytecodes:     make(map[common.Hash][]byte, len(in.Bytecodes)),
		Randomness:    field.New(in.Randomness),
		PrevStateRoot: field.New(in.PrevStateRoot),
		End:           fromStepStateJSON(in.End),
	}
	if in.StateRoot != nil {
		if *in.StateRoot >= field.P {
			return fmt.Errorf("state root %d out of range", *in.StateRoot)
		}
		root := field.New(*in.StateRoot)
		b.StateRoot = &root
	}
	for hash, code := range in.Bytecodes {
		b.Bytecodes[hash] = code
	}
	for i, s := range in.Steps {
		state, err := ParseExecutionState(s.State)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		op := vm.StringToOp(s.Opcode)
		if op.String() != s.Opcode {
			return fmt.Errorf("step %d: unknown opcode %q", i, s.Opcode)
		}
		b.Steps[i] = ExecStep{
			StepState:      fromStepStateJSON(s.stepStateJSON),
			ExecutionState: state,
			Opcode:         op,
			RwIndices:      s.RwIndices,
		}
	}
	for i, r := range in.Rws {
		tag, err := ParseRwTag(r.Tag)
		if err != nil {
			return fmt.Errorf("rw %d: %w", i, err)
		}
		rw := Rw{
			Tag:           tag,
			RwCounter:     r.RwCounter,
			IsWrite:       r.IsWrite,
			ID:            r.ID,
			Address:       r.Address,
			FieldTag:      r.FieldTag,
			StackPointer:  r.StackPointer,
			MemoryAddress: r.MemoryAddress,
		}
		copyWord(&rw.StorageKey, r.StorageKey)
		copyWord(&rw.Value, r.Value)
		copyWord(&rw.ValuePrev, r.ValuePrev)
		copyWord(&rw.CommittedValue, r.CommittedValue)
		b.Rws.Append(rw)
	}
	return nil
}

func copyWord(dst, src *uint256.Int) {
	if src != nil {
		dst.Set(src)
	}
}

func toStepStateJSON(s StepState) stepStateJSON {
	return stepStateJSON{
		RwCounter:      s.RwCounter,
		CallID:         s.CallID,
		ProgramCounter: s.ProgramCounter,
		StackPointer:   s.StackPointer,
		GasLeft:        s.GasLeft,
		CodeHash:       s.CodeHash,
	}
}

func fromStepStateJSON(s stepStateJSON) StepState {
	return StepState{
		RwCounter:      s.RwCounter,
		CallID:         s.CallID,
		ProgramCounter: s.ProgramCounter,
		StackPointer:   s.StackPointer,
		GasLeft:        s.GasLeft,
		CodeHash:       s.CodeHash,
	}
}
