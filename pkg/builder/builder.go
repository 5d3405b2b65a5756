package builder

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop/merkledrop-go/pkg/merkle"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

// ErrMalformedInput is returned when the allocation list cannot be built
// into a tree: duplicate addresses, missing or negative balances.
// A build that fails this way is fatal to the run; nothing is written.
var ErrMalformedInput = errors.New("malformed input")

// BuildResult holds the fully derived airdrop artifacts: the manifest and
// one shard file per populated shard key. Immutable once built.
type BuildResult struct {
	Manifest *types.Manifest
	Shards   map[string]*types.ShardFile
}

// Build partitions allocations into shards by address prefix, builds one
// merkle tree per shard and a second-level tree over the shard roots, and
// returns the manifest plus per-shard files with their precomputed
// root-tree proof paths.
//
// The global root is a pure function of the allocation set and the shard
// nybble count: input order is irrelevant because every shard's entries are
// sorted by address before hashing and root-tree leaves are ordered by
// shard key. Rebuilding from the same allocations reproduces byte-identical
// output.
//
// Duplicate addresses are rejected with ErrMalformedInput rather than
// summed or overwritten.
func Build(allocations []*types.Allocation, shardNybbles int, logger *zap.Logger) (*BuildResult, error) {
	if shardNybbles < 1 || shardNybbles > 4 {
		return nil, fmt.Errorf("shard nybble count must be between 1 and 4, got %d", shardNybbles)
	}

	// Bucket by shard key, rejecting duplicates
	shards := make(map[string]map[string]*types.Entry)
	seen := make(map[common.Address]struct{}, len(allocations))
	total := new(big.Int)

	for _, alloc := range allocations {
		if alloc == nil {
			return nil, errors.Wrap(ErrMalformedInput, "nil allocation")
		}
		if alloc.Balance == nil {
			return nil, errors.Wrapf(ErrMalformedInput, "allocation for %s has no balance", alloc.Address.Hex())
		}
		if alloc.Balance.Sign() < 0 {
			return nil, errors.Wrapf(ErrMalformedInput, "allocation for %s has negative balance", alloc.Address.Hex())
		}
		if _, dup := seen[alloc.Address]; dup {
			return nil, errors.Wrapf(ErrMalformedInput, "duplicate address %s", alloc.Address.Hex())
		}
		seen[alloc.Address] = struct{}{}

		key := types.ShardKeyForAddress(alloc.Address, shardNybbles)
		if shards[key] == nil {
			shards[key] = make(map[string]*types.Entry)
		}
		shards[key][types.NormalizeAddress(alloc.Address)] = &types.Entry{
			Balance: types.NewBalance(&alloc.Balance.Int),
		}
		total.Add(total, &alloc.Balance.Int)
	}

	// Degenerate case: nothing to claim. The manifest carries the zero root
	// and no shard files are produced.
	if len(shards) == 0 {
		logger.Sugar().Warnw("Building airdrop from empty allocation list")
		return &BuildResult{
			Manifest: &types.Manifest{
				Root:         common.Hash{},
				ShardNybbles: shardNybbles,
				Total:        types.NewBalance(total),
			},
			Shards: map[string]*types.ShardFile{},
		}, nil
	}

	// Per-shard trees, ordered by shard key
	shardKeys := make([]string, 0, len(shards))
	for key := range shards {
		shardKeys = append(shardKeys, key)
	}
	sort.Strings(shardKeys)

	shardRoots := make([][32]byte, len(shardKeys))
	for i, key := range shardKeys {
		tree, _, err := BuildShardTree(shards[key])
		if err != nil {
			return nil, fmt.Errorf("failed to build tree for shard %q: %w", key, err)
		}
		shardRoots[i] = tree.Root()
	}

	// Second-level tree over the shard roots
	rootTree, err := merkle.BuildTree(shardRoots)
	if err != nil {
		return nil, fmt.Errorf("failed to build root tree: %w", err)
	}
	root := rootTree.Root()

	// Precompute each shard's root-tree sibling path
	shardFiles := make(map[string]*types.ShardFile, len(shardKeys))
	for i, key := range shardKeys {
		proof, err := rootTree.GenerateProof(i)
		if err != nil {
			return nil, fmt.Errorf("failed to derive root-tree proof for shard %q: %w", key, err)
		}
		shardFiles[key] = &types.ShardFile{
			Proof:   hashesToCommon(proof),
			Entries: shards[key],
		}
	}

	logger.Sugar().Infow("Built sharded merkle tree",
		"entries", len(allocations),
		"shards", len(shardKeys),
		"shard_nybbles", shardNybbles,
		"root", common.Hash(root).Hex(),
		"total", total.String())

	return &BuildResult{
		Manifest: &types.Manifest{
			Root:         common.Hash(root),
			ShardNybbles: shardNybbles,
			Total:        types.NewBalance(total),
		},
		Shards: shardFiles,
	}, nil
}

// BuildAndWrite builds the airdrop and persists it in one step.
func BuildAndWrite(allocations []*types.Allocation, shardNybbles int, dir string, logger *zap.Logger) (*BuildResult, error) {
	result, err := Build(allocations, shardNybbles, logger)
	if err != nil {
		return nil, err
	}
	if err := result.Write(dir); err != nil {
		return nil, err
	}
	return result, nil
}

// BuildShardTree builds the merkle tree over one shard's entries.
// Entries are sorted by address so the shard root is deterministic
// regardless of map iteration order. The returned address list is parallel
// to the tree's leaves.
func BuildShardTree(entries map[string]*types.Entry) (*merkle.Tree, []string, error) {
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("shard has no entries")
	}

	addresses := make([]string, 0, len(entries))
	for addr := range entries {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	leaves := make([][32]byte, len(addresses))
	for i, addr := range addresses {
		entry := entries[addr]
		if entry == nil || entry.Balance == nil {
			return nil, nil, fmt.Errorf("entry for %s has no balance", addr)
		}
		leaves[i] = merkle.HashLeaf(common.HexToAddress(addr), &entry.Balance.Int)
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, nil, err
	}
	return tree, addresses, nil
}

// Write persists the build result to a directory: the manifest as
// root.json and one <shardKey>.json per shard. Output is deterministic;
// JSON object keys are emitted in sorted order.
func (r *BuildResult) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	manifestData, err := json.Marshal(r.Manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, types.ManifestFileName), manifestData, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	for key, shard := range r.Shards {
		data, err := json.Marshal(shard)
		if err != nil {
			return fmt.Errorf("failed to marshal shard %q: %w", key, err)
		}
		if err := os.WriteFile(filepath.Join(dir, key+".json"), data, 0o644); err != nil {
			return fmt.Errorf("failed to write shard %q: %w", key, err)
		}
	}

	return nil
}

func hashesToCommon(hashes [][32]byte) []common.Hash {
	out := make([]common.Hash, len(hashes))
	for i, h := range hashes {
		out[i] = common.Hash(h)
	}
	return out
}
