package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"
	"github.com/ethereum/go-ethereum/log"

	vybiumzkevm "github.com/vybium/vybium-zkevm/pkg/vybium-zkevm"
)

var args struct {
	Witness        string `arg:"-w,--witness" help:"Block witness JSON file (reads stdin when omitted)"`
	Workers        int    `arg:"--workers" default:"0" help:"Steps verified concurrently (0 = GOMAXPROCS)"`
	Verbosity      int    `arg:"-v,--verbosity" default:"3" help:"Log level (0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace)"`
	RootScheme     string `arg:"--root-scheme" default:"poseidon" help:"State root derivation: poseidon or sequential"`
	BindRandomness bool   `arg:"--bind-randomness" default:"true" help:"Reject a block randomness not derived from the rw log"`
	SkipSteps      bool   `arg:"--skip-steps" help:"Do not check step constraints"`
	SkipRwTable    bool   `arg:"--skip-rw-table" help:"Do not check rw table consistency"`
	SkipMpt        bool   `arg:"--skip-mpt" help:"Do not check mpt updates"`
}

const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	arg.MustParse(&args)
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(args.Verbosity), true)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := run(ctx, os.Stdout)
	if err != nil {
		log.Error("Verification failed", "err", err)
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, out io.Writer) (int, error) {
	block, err := readBlock(args.Witness)
	if err != nil {
		return exitError, err
	}

	config := vybiumzkevm.DefaultConfig().
		WithWorkers(args.Workers).
		WithRootScheme(args.RootScheme).
		WithBindRandomness(args.BindRandomness).
		WithLayers(!args.SkipSteps, !args.SkipRwTable, !args.SkipMpt)
	verifier, err := vybiumzkevm.NewVerifier(config, nil)
	if err != nil {
		return exitError, err
	}

	log.Debug("Loaded block witness", "steps", len(block.Steps), "rws", block.Rws.Len(), "bytecodes", len(block.Bytecodes))
	result, err := verifier.Verify(ctx, block)
	if err != nil {
		return exitError, err
	}
	for _, v := range result.Violations {
		log.Warn("Violation", "layer", v.Layer, "msg", v.Message)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return exitError, fmt.Errorf("failed to write result: %w", err)
	}
	if !result.Valid {
		return exitInvalid, nil
	}
	return exitValid, nil
}

func readBlock(path string) (*vybiumzkevm.Block, error) {
	if path == "" {
		return vybiumzkevm.DecodeBlock(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vybiumzkevm.DecodeBlock(f)
}
