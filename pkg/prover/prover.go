package prover

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop/merkledrop-go/pkg/builder"
	"github.com/merkledrop/merkledrop-go/pkg/merkle"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

var (
	// ErrNotFound is returned when an address has no entry in its shard.
	ErrNotFound = errors.New("address not found")

	// ErrShardNotFound is returned when a shard file is missing or corrupt.
	// The query may be retried once the file is made available.
	ErrShardNotFound = errors.New("shard not found")
)

// ShardFetcher loads one shard file by shard key. Implementations may read
// from the local filesystem, memory, or a remote store; the Prover only
// sees this capability.
type ShardFetcher interface {
	FetchShard(ctx context.Context, shardKey string) (*types.ShardFile, error)
}

// Prover answers proof queries for single addresses without loading the
// whole dataset. Shards are fetched lazily on first access and cached for
// the lifetime of the Prover; at 16 or 256 shards no eviction is needed.
// Safe for concurrent use.
type Prover struct {
	manifest *types.Manifest
	fetcher  ShardFetcher
	logger   *zap.Logger

	mu     sync.RWMutex
	shards map[string]*shardState
}

// shardState is a fully parsed, tree-built shard held in the cache.
type shardState struct {
	file *types.ShardFile
	tree *merkle.Tree

	// positions maps normalized address -> leaf index in the shard tree
	positions map[string]int
}

// NewProver creates a prover over a manifest and a shard source.
func NewProver(manifest *types.Manifest, fetcher ShardFetcher, logger *zap.Logger) *Prover {
	return &Prover{
		manifest: manifest,
		fetcher:  fetcher,
		logger:   logger,
		shards:   make(map[string]*shardState),
	}
}

// Manifest returns the manifest the prover was created with.
func (p *Prover) Manifest() *types.Manifest {
	return p.manifest
}

// GetProof returns the entry for an address together with its full proof:
// the shard-internal sibling path for the entry's leaf followed by the
// shard's precomputed root-tree path. Folding the proof from the entry's
// leaf hash with the sorted-pair rule yields the manifest root.
func (p *Prover) GetProof(ctx context.Context, addr common.Address) (*types.Entry, []common.Hash, error) {
	key := types.ShardKeyForAddress(addr, p.manifest.ShardNybbles)

	state, err := p.loadShard(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	normalized := types.NormalizeAddress(addr)
	pos, ok := state.positions[normalized]
	if !ok {
		return nil, nil, errors.Wrapf(ErrNotFound, "address %s has no entry in shard %q", normalized, key)
	}

	shardPath, err := state.tree.GenerateProof(pos)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to derive shard proof for %s", normalized)
	}

	proof := make([]common.Hash, 0, len(shardPath)+len(state.file.Proof))
	for _, h := range shardPath {
		proof = append(proof, common.Hash(h))
	}
	proof = append(proof, state.file.Proof...)

	return state.file.Entries[normalized], proof, nil
}

// loadShard returns the cached shard state, fetching and indexing the
// shard on first access. Repeated queries for the same shard never
// re-fetch.
func (p *Prover) loadShard(ctx context.Context, key string) (*shardState, error) {
	p.mu.RLock()
	state, ok := p.shards[key]
	p.mu.RUnlock()
	if ok {
		return state, nil
	}

	// Fetch and build outside the lock; shards are independent so
	// concurrent loads of different shards proceed in parallel.
	file, err := p.fetcher.FetchShard(ctx, key)
	if err != nil {
		return nil, err
	}

	tree, addresses, err := builder.BuildShardTree(file.Entries)
	if err != nil {
		return nil, errors.Wrapf(ErrShardNotFound, "shard %q is unusable: %v", key, err)
	}

	positions := make(map[string]int, len(addresses))
	for i, addr := range addresses {
		positions[addr] = i
	}

	state = &shardState{
		file:      file,
		tree:      tree,
		positions: positions,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another goroutine may have raced the fetch; keep the first insert.
	if existing, ok := p.shards[key]; ok {
		return existing, nil
	}
	p.shards[key] = state

	p.logger.Sugar().Debugw("Loaded shard", "shard", key, "entries", len(addresses))

	return state, nil
}
