package evm

import (
	"fmt"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// ExecutionGadget constrains the steps of one execution state
type ExecutionGadget interface {
	// Name is used in violation reports
	Name() string

	// AssignExecStep fills the gadget's cells for step. The step state
	// cells are assigned by the caller.
	AssignExecStep(region *Region, block *witness.Block, step *witness.ExecStep) error
}

// configureGadget dispatches on the execution state
func configureGadget(cb *ConstraintBuilder) ExecutionGadget {
	switch cb.ExecutionState() {
	case witness.StateStop:
		return NewStopGadget(cb)
	case witness.StatePush:
		return NewPushGadget(cb)
	case witness.StatePop:
		return NewPopGadget(cb)
	case witness.StateDiv:
		return NewDivGadget(cb)
	case witness.StateSload:
		return NewSloadGadget(cb)
	case witness.StateSstore:
		return NewSstoreGadget(cb)
	case witness.StateBeginTx:
		return NewBeginTxGadget(cb)
	default:
		panic(fmt.Sprintf("evm: no gadget for execution state %s", cb.ExecutionState()))
	}
}

// ConfiguredGadget pairs a gadget with its frozen constraint system
type ConfiguredGadget struct {
	Gadget ExecutionGadget
	CS     *ConstraintSystem
}

// Configure builds the constraint system of one execution state
func Configure(state witness.ExecutionState) *ConfiguredGadget {
	cb := NewConstraintBuilder(state.String(), state)
	g := configureGadget(cb)
	return &ConfiguredGadget{Gadget: g, CS: cb.Build()}
}

// stepRws resolves the first n rw entries of a step
func stepRws(block *witness.Block, step *witness.ExecStep, n int) ([]*witness.Rw, error) {
	if len(step.RwIndices) < n {
		return nil, fmt.Errorf("step has %d rw indices, need %d", len(step.RwIndices), n)
	}
	rws := make([]*witness.Rw, n)
	for i := 0; i < n; i++ {
		rw, err := block.Rws.Get(step.RwIndices[i])
		if err != nil {
			return nil, err
		}
		rws[i] = rw
	}
	return rws, nil
}
