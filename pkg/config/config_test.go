package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServerConfig() *ServerConfig {
	return &ServerConfig{
		AirdropDir:      "/var/lib/drop/airdrop",
		Port:            8080,
		PersistenceType: PersistenceTypeMemory,
		ClaimRate:       10,
		ClaimBurst:      20,
	}
}

func TestParsePersistenceType(t *testing.T) {
	testCases := []struct {
		input   string
		want    PersistenceType
		wantErr bool
	}{
		{"memory", PersistenceTypeMemory, false},
		{"badger", PersistenceTypeBadger, false},
		{"redis", PersistenceTypeRedis, false},
		{"", "", true},
		{"postgres", "", true},
		{"Memory", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParsePersistenceType(tc.input)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestBuilderConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*BuilderConfig)
		wantErr string
	}{
		{
			name:   "Valid config",
			mutate: func(c *BuilderConfig) {},
		},
		{
			name:    "Missing input file",
			mutate:  func(c *BuilderConfig) { c.InputFile = "" },
			wantErr: "input file",
		},
		{
			name:    "Missing output dir",
			mutate:  func(c *BuilderConfig) { c.OutputDir = "" },
			wantErr: "output directory",
		},
		{
			name:    "Shard nybbles too small",
			mutate:  func(c *BuilderConfig) { c.ShardNybbles = 0 },
			wantErr: "shard nybble",
		},
		{
			name:    "Shard nybbles too large",
			mutate:  func(c *BuilderConfig) { c.ShardNybbles = 5 },
			wantErr: "shard nybble",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &BuilderConfig{
				InputFile:    "allocations.json",
				OutputDir:    "airdrop",
				ShardNybbles: 2,
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestServerConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:   "Valid memory config",
			mutate: func(c *ServerConfig) {},
		},
		{
			name: "Valid badger config",
			mutate: func(c *ServerConfig) {
				c.PersistenceType = PersistenceTypeBadger
				c.DataDir = "/var/lib/drop/claims"
			},
		},
		{
			name: "Valid redis config",
			mutate: func(c *ServerConfig) {
				c.PersistenceType = PersistenceTypeRedis
				c.RedisAddress = "localhost:6379"
			},
		},
		{
			name:    "Missing airdrop dir",
			mutate:  func(c *ServerConfig) { c.AirdropDir = "" },
			wantErr: "airdropDir",
		},
		{
			name:    "Port out of range",
			mutate:  func(c *ServerConfig) { c.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "Unsupported persistence type",
			mutate:  func(c *ServerConfig) { c.PersistenceType = "postgres" },
			wantErr: "persistenceType",
		},
		{
			name:    "Badger without data dir",
			mutate:  func(c *ServerConfig) { c.PersistenceType = PersistenceTypeBadger },
			wantErr: "dataDir",
		},
		{
			name:    "Redis without address",
			mutate:  func(c *ServerConfig) { c.PersistenceType = PersistenceTypeRedis },
			wantErr: "redisAddress",
		},
		{
			name:    "Malformed reserve",
			mutate:  func(c *ServerConfig) { c.Reserve = "12x4" },
			wantErr: "reserve",
		},
		{
			name:    "Non-positive claim rate",
			mutate:  func(c *ServerConfig) { c.ClaimRate = 0 },
			wantErr: "claimRate",
		},
		{
			name:    "Zero claim burst",
			mutate:  func(c *ServerConfig) { c.ClaimBurst = 0 },
			wantErr: "claimBurst",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validServerConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestServerConfigValidate_CollectsAllErrors(t *testing.T) {
	cfg := &ServerConfig{}
	err := cfg.Validate()
	require.Error(t, err)

	// Several independent problems reported at once
	assert.Contains(t, err.Error(), "airdropDir")
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "claimRate")
}
