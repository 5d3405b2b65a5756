package prover

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/merkledrop/merkledrop-go/pkg/types"
)

// FileSystemFetcher loads shard files from an airdrop directory produced
// by the builder.
type FileSystemFetcher struct {
	dir string
}

// NewFileSystemFetcher creates a fetcher reading <shardKey>.json files
// from the given directory.
func NewFileSystemFetcher(dir string) *FileSystemFetcher {
	return &FileSystemFetcher{dir: dir}
}

// FetchShard reads and parses one shard file.
func (f *FileSystemFetcher) FetchShard(_ context.Context, shardKey string) (*types.ShardFile, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, shardKey+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrShardNotFound, "shard file %s.json does not exist", shardKey)
		}
		return nil, errors.Wrapf(ErrShardNotFound, "failed to read shard %q: %v", shardKey, err)
	}

	var shard types.ShardFile
	if err := json.Unmarshal(data, &shard); err != nil {
		return nil, errors.Wrapf(ErrShardNotFound, "shard %q is corrupt: %v", shardKey, err)
	}

	return &shard, nil
}

// MemoryFetcher serves shard files from an in-memory map. Intended for
// tests and for provers built directly from a BuildResult.
type MemoryFetcher struct {
	shards map[string]*types.ShardFile
}

// NewMemoryFetcher creates a fetcher over the given shard map.
func NewMemoryFetcher(shards map[string]*types.ShardFile) *MemoryFetcher {
	return &MemoryFetcher{shards: shards}
}

// FetchShard returns the shard from the map.
func (m *MemoryFetcher) FetchShard(_ context.Context, shardKey string) (*types.ShardFile, error) {
	shard, ok := m.shards[shardKey]
	if !ok {
		return nil, errors.Wrapf(ErrShardNotFound, "no shard %q", shardKey)
	}
	return shard, nil
}

// LoadManifest reads the manifest from an airdrop directory.
func LoadManifest(dir string) (*types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, types.ManifestFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest from %s", dir)
	}

	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}

	return &manifest, nil
}
