package vybiumzkevm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/evm"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/state"
	"github.com/vybium/vybium-zkevm/internal/vybium-zkevm/witness"
)

// Options carries optional verifier dependencies
type Options struct {
	// Registerer receives the verifier metrics; nil leaves them unregistered
	Registerer prometheus.Registerer
}

// Verifier checks block witnesses. It is safe for concurrent use.
type Verifier struct {
	config  *Config
	steps   *evm.Verifier
	oracle  state.RootOracle
	metrics *metrics
}

// NewVerifier creates a verifier. A nil config means DefaultConfig.
func NewVerifier(config *Config, opts *Options) (*Verifier, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, &VerifierError{Code: ErrInvalidConfig, Message: "invalid configuration", Cause: err}
	}

	oracle, err := state.NewRootOracle(config.RootScheme)
	if err != nil {
		return nil, &VerifierError{Code: ErrInvalidConfig, Message: "invalid root scheme", Cause: err}
	}

	var reg prometheus.Registerer
	if opts != nil {
		reg = opts.Registerer
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, &VerifierError{Code: ErrInvalidConfig, Message: "failed to register metrics", Cause: err}
	}

	return &Verifier{
		config:  config.Clone(),
		steps:   evm.NewVerifier(config.EffectiveWorkers()),
		oracle:  oracle,
		metrics: m,
	}, nil
}

// Verify runs the enabled layers over block. Failed checks are reported in
// the result; the error is non-nil only for a malformed witness or a
// cancelled context.
func (v *Verifier) Verify(ctx context.Context, block *Block) (*Result, error) {
	start := time.Now()
	if block == nil {
		return nil, &VerifierError{Code: ErrInvalidWitness, Message: "nil block"}
	}
	if err := block.Validate(); err != nil {
		return nil, &VerifierError{Code: ErrInvalidWitness, Message: "malformed block witness", Cause: err}
	}

	result := &Result{}
	if v.config.BindRandomness {
		if derived := witness.DeriveRandomness(block.Rws); !derived.Equal(block.Randomness) {
			msg := fmt.Sprintf("randomness %d is not derived from the rw log (want %d)", block.Randomness.Value(), derived.Value())
			result.Violations = append(result.Violations, Violation{
				Layer:   LayerWitness,
				Message: msg,
				Err:     &VerifierError{Code: ErrRandomnessMismatch, Message: msg},
			})
		}
	}

	if v.config.CheckSteps {
		violations, err := v.steps.VerifyBlock(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("verify steps: %w", err)
		}
		result.Steps = len(block.Steps)
		for _, cv := range violations {
			result.Violations = append(result.Violations, Violation{Layer: LayerStep, Message: cv.Error(), Err: cv})
		}
	}

	if v.config.CheckRwTable {
		for _, cv := range state.VerifyRwTable(block) {
			result.Violations = append(result.Violations, Violation{Layer: LayerRwTable, Message: cv.Error(), Err: cv})
		}
	}

	if v.config.CheckMpt {
		updates := state.BuildMptUpdates(block, v.oracle)
		for _, cv := range state.VerifyMptUpdates(block, updates) {
			result.Violations = append(result.Violations, Violation{Layer: LayerMpt, Message: cv.Error(), Err: cv})
		}
		for _, u := range updates.Updates() {
			result.MptClaims = append(result.MptClaims, MptClaim{
				Key:      u.Key.String(),
				ReadOnly: u.ReadOnly,
				OldRoot:  u.Value.OldRoot.Value(),
				NewRoot:  u.Value.NewRoot.Value(),
				OldValue: u.Value.OldValue.Value(),
				NewValue: u.Value.NewValue.Value(),
			})
		}
		result.FinalRoot = updates.FinalRoot().Value()
	}

	result.Valid = len(result.Violations) == 0
	result.Duration = time.Since(start)
	v.metrics.observe(result)

	log.Info("Verified block", "steps", len(block.Steps), "rws", block.Rws.Len(),
		"valid", result.Valid, "violations", len(result.Violations), "elapsed", common.PrettyDuration(result.Duration))
	return result, nil
}
