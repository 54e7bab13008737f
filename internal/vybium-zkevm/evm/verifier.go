package evm

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/log"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/core"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// ErrConstraintViolation matches every *ConstraintViolation under errors.Is
var ErrConstraintViolation = errors.New("evm: constraint violation")

// ConstraintViolation locates a failed constraint or lookup
type ConstraintViolation struct {
	Step       int
	State      witness.ExecutionState
	Constraint string
	Detail     string
}

// Error implements error
func (v *ConstraintViolation) Error() string {
	msg := fmt.Sprintf("step %d (%s): %s", v.Step, v.State, v.Constraint)
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}

// Is reports whether target is ErrConstraintViolation
func (v *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}

// Verifier checks every step of a block against the constraint system of
// its execution state
type Verifier struct {
	gadgets map[witness.ExecutionState]*ConfiguredGadget
	workers int
}

// NewVerifier configures every execution state. workers bounds the number
// of steps checked concurrently; zero means GOMAXPROCS.
func NewVerifier(workers int) *Verifier {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	v := &Verifier{
		gadgets: make(map[witness.ExecutionState]*ConfiguredGadget, len(witness.ExecutionStates)),
		workers: workers,
	}
	for _, state := range witness.ExecutionStates {
		v.gadgets[state] = Configure(state)
	}
	return v
}

// VerifyBlock checks all steps in parallel and returns the violations in
// step order. The error is non-nil only when ctx is cancelled.
func (v *Verifier) VerifyBlock(ctx context.Context, block *witness.Block) ([]*ConstraintViolation, error) {
	tables := NewBlockTables(block)
	results := make([][]*ConstraintViolation, len(block.Steps))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i := range block.Steps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = v.VerifyStep(tables, block, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var violations []*ConstraintViolation
	for _, vs := range results {
		violations = append(violations, vs...)
	}
	log.Debug("Verified execution steps", "steps", len(block.Steps), "violations", len(violations))
	return violations, nil
}

// VerifyStep checks the step at idx
func (v *Verifier) VerifyStep(tables *BlockTables, block *witness.Block, idx int) []*ConstraintViolation {
	step := &block.Steps[idx]
	violation := func(constraint, detail string) *ConstraintViolation {
		log.Trace("Step constraint violated", "step", idx, "state", step.ExecutionState, "constraint", constraint)
		return &ConstraintViolation{Step: idx, State: step.ExecutionState, Constraint: constraint, Detail: detail}
	}

	cg, ok := v.gadgets[step.ExecutionState]
	if !ok {
		return []*ConstraintViolation{violation("execution state", "no gadget")}
	}
	cs := cg.CS

	if vs := checkRwIndices(block, step, cs.RwCount, violation); len(vs) > 0 {
		return vs
	}

	region := NewRegion(cs.Width, block.Randomness)
	region.Assign(cs.Randomness, block.Randomness)
	assignStepState(region, cs.Curr, step.ExecutionState, step.StepState, block.Randomness)
	assignStepState(region, cs.Next, block.NextExecutionState(idx), block.NextState(idx), block.Randomness)
	if err := cg.Gadget.AssignExecStep(region, block, step); err != nil {
		return []*ConstraintViolation{violation("assignment", err.Error())}
	}

	var violations []*ConstraintViolation
	if idx == 0 && step.ExecutionState != witness.StateBeginTx {
		violations = append(violations, violation("first step begins a tx", ""))
	}
	for _, c := range cs.Constraints {
		if !region.Eval(c.Expr).IsZero() {
			violations = append(violations, violation(c.Name, ""))
		}
	}
	for _, l := range cs.Lookups {
		if l.Condition != nil && region.Eval(l.Condition).IsZero() {
			continue
		}
		values := make([]field.Element, len(l.Inputs))
		for i, in := range l.Inputs {
			values[i] = region.Eval(in)
		}
		if !tables.Contains(l.Table, values) {
			violations = append(violations, violation("lookup "+l.Name, l.Table.String()+" table"))
		}
	}
	return violations
}

// checkRwIndices requires the step to reference exactly its own accesses:
// the k-th index resolves to the access with counter rw_counter + k.
func checkRwIndices(block *witness.Block, step *witness.ExecStep, count int,
	violation func(constraint, detail string) *ConstraintViolation) []*ConstraintViolation {
	if len(step.RwIndices) != count {
		return []*ConstraintViolation{violation("rw indices",
			fmt.Sprintf("have %d, need %d", len(step.RwIndices), count))}
	}
	var violations []*ConstraintViolation
	for k, idx := range step.RwIndices {
		rw, err := block.Rws.Get(idx)
		if err != nil {
			violations = append(violations, violation("rw indices", err.Error()))
			continue
		}
		if want := step.RwCounter + uint64(k); rw.RwCounter != want {
			violations = append(violations, violation("rw indices",
				fmt.Sprintf("index %d has counter %d, want %d", k, rw.RwCounter, want)))
		}
	}
	return violations
}

func assignStepState(region *Region, cells StepStateCells, state witness.ExecutionState, s witness.StepState, r field.Element) {
	region.AssignUint64(cells.ExecutionState, uint64(state))
	region.AssignUint64(cells.RwCounter, s.RwCounter)
	region.AssignUint64(cells.CallID, s.CallID)
	region.AssignUint64(cells.ProgramCounter, s.ProgramCounter)
	region.AssignUint64(cells.StackPointer, s.StackPointer)
	region.AssignUint64(cells.GasLeft, s.GasLeft)
	region.Assign(cells.CodeHash, core.HashRLC(s.CodeHash, r))
}
