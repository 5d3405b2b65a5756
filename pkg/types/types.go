package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is an unsigned 256-bit token amount. It serializes to JSON as a
// quoted decimal string so shard files stay readable and avoid float
// precision loss in downstream tooling.
type Balance struct {
	big.Int
}

// NewBalance creates a Balance from a big.Int. The value is copied.
func NewBalance(v *big.Int) *Balance {
	b := &Balance{}
	if v != nil {
		b.Set(v)
	}
	return b
}

// NewBalanceFromString parses a decimal string into a Balance.
func NewBalanceFromString(s string) (*Balance, error) {
	b := &Balance{}
	if _, ok := b.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid decimal balance: %q", s)
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("balance cannot be negative: %q", s)
	}
	return b, nil
}

// MarshalJSON encodes the balance as a quoted decimal string.
func (b *Balance) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(b.String())), nil
}

// UnmarshalJSON decodes a quoted decimal string into the balance.
func (b *Balance) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("balance must be a JSON string: %w", err)
	}
	parsed, err := NewBalanceFromString(s)
	if err != nil {
		return err
	}
	b.Set(&parsed.Int)
	return nil
}

// Allocation is one claimable (address, balance) pair fed to the builder.
type Allocation struct {
	Address common.Address `json:"address"`
	Balance *Balance       `json:"balance"`
}

// Entry is the per-address record stored inside a shard file.
// Only the balance participates in the leaf hash.
type Entry struct {
	Balance *Balance `json:"balance"`
}

// Manifest is the root file written once at build time and read once at
// deploy time. Root is the single on-chain value; ShardNybbles records the
// sharding granularity needed to locate an address's shard file.
type Manifest struct {
	Root         common.Hash `json:"root"`
	ShardNybbles int         `json:"shardNybbles"`
	Total        *Balance    `json:"total"`
}

// ShardFile is the persisted form of one shard: the shard's precomputed
// sibling path within the root tree plus every entry bucketed into it,
// keyed by lowercase 0x-prefixed address.
type ShardFile struct {
	Proof   []common.Hash     `json:"proof"`
	Entries map[string]*Entry `json:"entries"`
}

// ManifestFileName is the name of the manifest within an airdrop directory.
const ManifestFileName = "root.json"

// NormalizeAddress renders an address in the lowercase 0x-prefixed form
// used for shard file entry keys.
func NormalizeAddress(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ShardKeyForAddress returns the shard key for an address: the first
// shardNybbles lowercase hex characters of the address.
func ShardKeyForAddress(addr common.Address, shardNybbles int) string {
	return hex.EncodeToString(addr[:])[:shardNybbles]
}

// ValidShardKey reports whether s is a plausible shard key for the given
// nybble count: correct length, lowercase hex only.
func ValidShardKey(s string, shardNybbles int) bool {
	if len(s) != shardNybbles {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}
