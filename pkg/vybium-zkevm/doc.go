// Package vybiumzkevm verifies EVM execution traces against a zkEVM-style
// constraint system.
//
// A block witness lists execution steps, the read/write accesses they made
// (the rw log) and the bytecodes they ran. Verification runs three layers:
//
//   - step layer: every step satisfies the constraints of its execution
//     state (BEGIN_TX, DIV, PUSH, POP, SLOAD, SSTORE, STOP) and its lookups
//     into the rw, bytecode and fixed tables
//   - rw table layer: the rw log is internally consistent once sorted by key
//   - mpt layer: persistent accesses group into per-key updates whose roots
//     chain from the previous state root
//
// # Quick Start
//
//	block, err := vybiumzkevm.DecodeBlock(file)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	verifier, err := vybiumzkevm.NewVerifier(vybiumzkevm.DefaultConfig(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := verifier.Verify(ctx, block)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !result.Valid {
//		for _, v := range result.Violations {
//			fmt.Println(v)
//		}
//	}
//
// # Architecture
//
//   - pkg/vybium-zkevm/: Public API (this package)
//   - internal/vybium-zkevm/witness: block witness, rw log, witness builder
//   - internal/vybium-zkevm/evm: constraint builder, gadgets, step verifier
//   - internal/vybium-zkevm/state: rw table and mpt update checks
//   - internal/vybium-zkevm/precompile: precompiled contracts 0x01-0x08
//
// Field arithmetic is over the Goldilocks prime 2^64 - 2^32 + 1. Words are
// compressed into single field elements by a random linear combination whose
// randomness is derived from the rw log.
package vybiumzkevm
