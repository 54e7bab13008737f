package utils

import (
	"fmt"
	"runtime"
)

// Root schemes understood by the state layer
const (
	RootSchemePoseidon   = "poseidon"
	RootSchemeSequential = "sequential"
)

// Config represents the configuration for block verification
type Config struct {
	// Number of steps verified concurrently (0 = GOMAXPROCS)
	Workers int

	// Layers to run
	CheckSteps   bool
	CheckRwTable bool
	CheckMpt     bool

	// Recompute the block randomness from the rw log and reject a mismatch
	BindRandomness bool

	// Root derivation for persistent state updates: "poseidon" or "sequential"
	RootScheme string
}

// DefaultConfig returns a configuration with every layer enabled
func DefaultConfig() *Config {
	return &Config{
		Workers:        0,
		CheckSteps:     true,
		CheckRwTable:   true,
		CheckMpt:       true,
		BindRandomness: true,
		RootScheme:     RootSchemePoseidon,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}

	if !c.CheckSteps && !c.CheckRwTable && !c.CheckMpt {
		return fmt.Errorf("at least one verification layer must be enabled")
	}

	if c.RootScheme != RootSchemePoseidon && c.RootScheme != RootSchemeSequential {
		return fmt.Errorf("root scheme must be '%s' or '%s', got '%s'",
			RootSchemePoseidon, RootSchemeSequential, c.RootScheme)
	}

	return nil
}

// EffectiveWorkers resolves the worker count
func (c *Config) EffectiveWorkers() int {
	if c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// WithWorkers sets the step worker pool size
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithLayers selects which verification layers run
func (c *Config) WithLayers(steps, rwTable, mpt bool) *Config {
	c.CheckSteps = steps
	c.CheckRwTable = rwTable
	c.CheckMpt = mpt
	return c
}

// WithBindRandomness toggles the randomness binding check
func (c *Config) WithBindRandomness(bind bool) *Config {
	c.BindRandomness = bind
	return c
}

// WithRootScheme sets the root derivation scheme
func (c *Config) WithRootScheme(scheme string) *Config {
	c.RootScheme = scheme
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
