package evm

import "fmt"

// TransitionKind describes how a step state field may change
type TransitionKind int

const (
	// TransitionSame keeps the field unchanged; the zero value
	TransitionSame TransitionKind = iota
	// TransitionDelta adds a value to the field
	TransitionDelta
	// TransitionTo sets the field to a value
	TransitionTo
	// TransitionAny leaves the field unconstrained
	TransitionAny
)

// String returns the name of the transition kind
func (k TransitionKind) String() string {
	switch k {
	case TransitionSame:
		return "Same"
	case TransitionDelta:
		return "Delta"
	case TransitionTo:
		return "To"
	case TransitionAny:
		return "Any"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// Transition is a declared change of one step state field
type Transition struct {
	Kind  TransitionKind
	Value Expr
}

// Same keeps the field unchanged
func Same() Transition {
	return Transition{Kind: TransitionSame}
}

// Delta adds e to the field
func Delta(e Expr) Transition {
	return Transition{Kind: TransitionDelta, Value: e}
}

// DeltaInt adds a constant, possibly negative, to the field
func DeltaInt(n int64) Transition {
	return Delta(ConstInt(n))
}

// To sets the field to e
func To(e Expr) Transition {
	return Transition{Kind: TransitionTo, Value: e}
}

// Any leaves the field unconstrained
func Any() Transition {
	return Transition{Kind: TransitionAny}
}

// StepStateTransition declares how each step state field moves from the
// current step to the next. Unset fields default to Same.
type StepStateTransition struct {
	RwCounter      Transition
	CallID         Transition
	ProgramCounter Transition
	StackPointer   Transition
	GasLeft        Transition
}

// RequireStepStateTransition constrains next against curr for every field.
// Gadgets call it exactly once, usually through SameContextGadget.
func (cb *ConstraintBuilder) RequireStepStateTransition(t StepStateTransition) {
	if cb.transitionSet {
		panic(fmt.Sprintf("evm: %s declares its step state transition twice", cb.name))
	}
	cb.transitionSet = true

	fields := []struct {
		name       string
		curr, next Cell
		t          Transition
	}{
		{"rw_counter", cb.Curr.RwCounter, cb.Next.RwCounter, t.RwCounter},
		{"call_id", cb.Curr.CallID, cb.Next.CallID, t.CallID},
		{"program_counter", cb.Curr.ProgramCounter, cb.Next.ProgramCounter, t.ProgramCounter},
		{"stack_pointer", cb.Curr.StackPointer, cb.Next.StackPointer, t.StackPointer},
		{"gas_left", cb.Curr.GasLeft, cb.Next.GasLeft, t.GasLeft},
	}
	for _, f := range fields {
		name := fmt.Sprintf("state transition: %s %s", f.name, f.t.Kind)
		switch f.t.Kind {
		case TransitionSame:
			cb.RequireEqual(name, f.next.Expr(), f.curr.Expr())
		case TransitionDelta:
			cb.RequireEqual(name, f.next.Expr(), f.curr.Expr().Add(f.t.Value))
		case TransitionTo:
			cb.RequireEqual(name, f.next.Expr(), f.t.Value)
		case TransitionAny:
		}
	}
}
