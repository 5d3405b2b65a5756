package config

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/merkledrop/merkledrop-go/pkg/types"
)

// Environment variable names for the merkledrop tools
const (
	EnvDropInputFile       = "DROP_INPUT_FILE"
	EnvDropOutputDir       = "DROP_OUTPUT_DIR"
	EnvDropShardNybbles    = "DROP_SHARD_NYBBLES"
	EnvDropAirdropDir      = "DROP_AIRDROP_DIR"
	EnvDropPort            = "DROP_PORT"
	EnvDropPersistenceType = "DROP_PERSISTENCE_TYPE"
	EnvDropDataDir         = "DROP_DATA_DIR"
	EnvDropRedisAddress    = "DROP_REDIS_ADDRESS"
	EnvDropReserve         = "DROP_RESERVE"
	EnvDropClaimRate       = "DROP_CLAIM_RATE"
	EnvDropClaimBurst      = "DROP_CLAIM_BURST"
	EnvDropVerbose         = "DROP_VERBOSE"
)

// PersistenceType selects the claim store backing the server.
type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

func (p PersistenceType) String() string {
	return string(p)
}

// ParsePersistenceType validates a persistence type string.
func ParsePersistenceType(s string) (PersistenceType, error) {
	switch PersistenceType(s) {
	case PersistenceTypeMemory, PersistenceTypeBadger, PersistenceTypeRedis:
		return PersistenceType(s), nil
	default:
		return "", fmt.Errorf("unsupported persistence type %q (supported: memory, badger, redis)", s)
	}
}

// BuilderConfig configures the dropBuilder tool.
type BuilderConfig struct {
	// InputFile is a JSON object mapping addresses to decimal balances
	InputFile string `json:"input_file"`

	// OutputDir receives the manifest and shard files
	OutputDir string `json:"output_dir"`

	// ShardNybbles is the address-prefix length used for sharding:
	// 1 for small/test datasets (16 shards), 2 for production (256 shards)
	ShardNybbles int `json:"shard_nybbles"`

	Verbose bool `json:"verbose"`
}

// Validate validates the builder configuration.
func (c *BuilderConfig) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.ShardNybbles < 1 || c.ShardNybbles > 4 {
		return fmt.Errorf("shard nybble count must be between 1 and 4, got %d", c.ShardNybbles)
	}
	return nil
}

// ServerConfig configures the dropServer service.
type ServerConfig struct {
	// AirdropDir is the directory holding root.json and the shard files
	AirdropDir string `json:"airdrop_dir"`

	Port int `json:"port"`

	// PersistenceType selects the claim store: memory, badger or redis
	PersistenceType PersistenceType `json:"persistence_type"`

	// DataDir is the badger database path (badger persistence only)
	DataDir string `json:"data_dir"`

	// RedisAddress is the host:port of Redis (redis persistence only)
	RedisAddress string `json:"redis_address"`

	// Reserve is the vault's distributable balance as a decimal string.
	// Empty means the manifest total.
	Reserve string `json:"reserve"`

	// ClaimRate and ClaimBurst bound the claim endpoint's request rate
	ClaimRate  float64 `json:"claim_rate"`
	ClaimBurst int     `json:"claim_burst"`

	Verbose bool `json:"verbose"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.AirdropDir == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("airdropDir"), "airdrop directory is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}
	if _, err := ParsePersistenceType(c.PersistenceType.String()); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis)}))
	}
	if c.PersistenceType == PersistenceTypeBadger && c.DataDir == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "data directory is required for badger persistence"))
	}
	if c.PersistenceType == PersistenceTypeRedis && c.RedisAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis address is required for redis persistence"))
	}
	if c.Reserve != "" {
		if _, err := types.NewBalanceFromString(c.Reserve); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("reserve"), c.Reserve, err.Error()))
		}
	}
	if c.ClaimRate <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("claimRate"), c.ClaimRate, "claim rate must be positive"))
	}
	if c.ClaimBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("claimBurst"), c.ClaimBurst, "claim burst must be at least 1"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
