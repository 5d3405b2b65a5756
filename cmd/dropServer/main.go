package main

import (
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/merkledrop/merkledrop-go/pkg/claims"
	"github.com/merkledrop/merkledrop-go/pkg/claimstore"
	badgerstore "github.com/merkledrop/merkledrop-go/pkg/claimstore/badger"
	"github.com/merkledrop/merkledrop-go/pkg/claimstore/memory"
	redisstore "github.com/merkledrop/merkledrop-go/pkg/claimstore/redis"
	"github.com/merkledrop/merkledrop-go/pkg/config"
	"github.com/merkledrop/merkledrop-go/pkg/logger"
	"github.com/merkledrop/merkledrop-go/pkg/prover"
	"github.com/merkledrop/merkledrop-go/pkg/server"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "drop-server",
		Usage: "Serve merkle airdrop proofs and claims",
		Description: `Serves an airdrop directory produced by drop-builder:

- GET /manifest returns the root manifest
- GET /proof?address=0x... returns an allocation and its full proof
- POST /claim verifies a proof and releases tokens exactly once per entry
- GET /health reports claim store health

Claim state persists in memory, badger or redis.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "airdrop-dir",
				Aliases:  []string{"d"},
				Usage:    "Directory holding root.json and the shard files",
				EnvVars:  []string{config.EnvDropAirdropDir},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceTypeMemory),
				Usage:   "Claim store backend: memory, badger or redis",
				EnvVars: []string{config.EnvDropPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Badger database directory (badger persistence)",
				EnvVars: []string{config.EnvDropDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address host:port (redis persistence)",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.StringFlag{
				Name:    "reserve",
				Usage:   "Vault reserve as a decimal token amount (default: manifest total)",
				EnvVars: []string{config.EnvDropReserve},
			},
			&cli.Float64Flag{
				Name:    "claim-rate",
				Value:   10,
				Usage:   "Maximum sustained claim requests per second",
				EnvVars: []string{config.EnvDropClaimRate},
			},
			&cli.IntFlag{
				Name:    "claim-burst",
				Value:   20,
				Usage:   "Maximum claim request burst",
				EnvVars: []string{config.EnvDropClaimBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := &config.ServerConfig{
		AirdropDir:      c.String("airdrop-dir"),
		Port:            c.Int("port"),
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		DataDir:         c.String("data-dir"),
		RedisAddress:    c.String("redis-address"),
		Reserve:         c.String("reserve"),
		ClaimRate:       c.Float64("claim-rate"),
		ClaimBurst:      c.Int("claim-burst"),
		Verbose:         c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	manifest, err := prover.LoadManifest(cfg.AirdropDir)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	l.Sugar().Infow("Loaded airdrop manifest",
		"root", manifest.Root.Hex(),
		"shard_nybbles", manifest.ShardNybbles,
		"total", manifest.Total.String())

	store, err := newClaimStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create claim store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("claim store is unhealthy: %w", err)
	}

	reserve := new(big.Int).Set(&manifest.Total.Int)
	if cfg.Reserve != "" {
		parsed, err := types.NewBalanceFromString(cfg.Reserve)
		if err != nil {
			return fmt.Errorf("invalid reserve: %w", err)
		}
		reserve.Set(&parsed.Int)
	}
	vault := claims.NewMemoryVault(reserve)

	p := prover.NewProver(manifest, prover.NewFileSystemFetcher(cfg.AirdropDir), l)
	distributor := claims.NewDistributor(manifest.Root, store, vault, l)

	srv := server.NewServer(&server.Config{
		Port:       cfg.Port,
		ClaimRate:  cfg.ClaimRate,
		ClaimBurst: cfg.ClaimBurst,
	}, p, distributor, l)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Drop server running",
		"port", cfg.Port,
		"persistence", cfg.PersistenceType,
		"reserve", reserve.String())
	l.Sugar().Infow("Available endpoints",
		"manifest", "GET /manifest",
		"proof", "GET /proof?address=0x...",
		"claim", "POST /claim",
		"health", "GET /health")

	// Keep the server running
	select {}
}

func newClaimStore(cfg *config.ServerConfig, l *zap.Logger) (claimstore.IClaimStore, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeBadger:
		return badgerstore.NewBadgerClaimStore(cfg.DataDir, l)
	case config.PersistenceTypeRedis:
		return redisstore.NewRedisClaimStore(&redisstore.RedisConfig{Address: cfg.RedisAddress}, l)
	default:
		return memory.NewMemoryClaimStore(), nil
	}
}
