package vybiumzkevm

import "fmt"

// ErrorCode represents a verifier error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrInvalidWitness represents a structurally broken block witness
	ErrInvalidWitness

	// ErrStepVerification represents a failed step constraint or lookup
	ErrStepVerification

	// ErrStateVerification represents a failed rw table or mpt check
	ErrStateVerification

	// ErrRandomnessMismatch represents a block randomness not derived from
	// its rw log
	ErrRandomnessMismatch
)

// String returns the code name
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidConfig:
		return "invalid config"
	case ErrInvalidWitness:
		return "invalid witness"
	case ErrStepVerification:
		return "step verification"
	case ErrStateVerification:
		return "state verification"
	case ErrRandomnessMismatch:
		return "randomness mismatch"
	default:
		return "unknown"
	}
}

// VerifierError represents a vybium-zkevm error
type VerifierError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *VerifierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-zkevm error [%s]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-zkevm error [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *VerifierError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *VerifierError) Is(target error) bool {
	t, ok := target.(*VerifierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
