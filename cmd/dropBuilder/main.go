package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/merkledrop/merkledrop-go/pkg/builder"
	"github.com/merkledrop/merkledrop-go/pkg/config"
	"github.com/merkledrop/merkledrop-go/pkg/logger"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "drop-builder",
		Usage: "Build a sharded merkle airdrop from an allocation list",
		Description: `Partitions (address, balance) allocations into shards by address prefix,
builds one merkle tree per shard plus a root tree over the shard roots, and
writes the manifest (root.json) and per-shard files to the output directory.

The manifest root is the single value the token contract stores; claimants
only ever download their own shard file.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "JSON file mapping addresses to decimal balances",
				EnvVars:  []string{config.EnvDropInputFile},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Directory to write root.json and shard files into",
				EnvVars:  []string{config.EnvDropOutputDir},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "shard-nybbles",
				Aliases: []string{"n"},
				Value:   1,
				Usage:   "Address prefix length in hex nybbles (1 = 16 shards, 2 = 256 shards)",
				EnvVars: []string{config.EnvDropShardNybbles},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runBuilder,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runBuilder(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := &config.BuilderConfig{
		InputFile:    c.String("input"),
		OutputDir:    c.String("output"),
		ShardNybbles: c.Int("shard-nybbles"),
		Verbose:      c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	allocations, err := readAllocations(cfg.InputFile)
	if err != nil {
		return err
	}

	result, err := builder.Build(allocations, cfg.ShardNybbles, l)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := result.Write(cfg.OutputDir); err != nil {
		return fmt.Errorf("failed to write airdrop directory: %w", err)
	}

	l.Sugar().Infow("Airdrop directory written",
		"output", cfg.OutputDir,
		"root", result.Manifest.Root.Hex(),
		"shards", len(result.Shards),
		"total", result.Manifest.Total.String())

	return nil
}

// readAllocations parses the input file: a JSON object mapping addresses
// to decimal balance strings.
func readAllocations(path string) ([]*types.Allocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
	}

	allocations := make([]*types.Allocation, 0, len(raw))
	for addrStr, balanceStr := range raw {
		if !common.IsHexAddress(addrStr) {
			return nil, fmt.Errorf("invalid address in input: %q", addrStr)
		}
		balance, err := types.NewBalanceFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid balance for %s: %w", addrStr, err)
		}
		allocations = append(allocations, &types.Allocation{
			Address: common.HexToAddress(addrStr),
			Balance: balance,
		})
	}

	return allocations, nil
}
