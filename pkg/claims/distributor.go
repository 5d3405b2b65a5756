package claims

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop/merkledrop-go/pkg/claimstore"
	"github.com/merkledrop/merkledrop-go/pkg/merkle"
)

var (
	// ErrInvalidProof is returned when folding the proof does not reproduce
	// the stored root. Pure rejection: no state changes, safe to retry with
	// a corrected proof.
	ErrInvalidProof = errors.New("invalid proof")

	// ErrAlreadyClaimed is returned when the claim bit for the proven index
	// is already set. Never retried to success.
	ErrAlreadyClaimed = errors.New("already claimed")
)

// ClaimReceipt records one successful claim.
type ClaimReceipt struct {
	ID        string         `json:"id"`
	Address   common.Address `json:"address"`
	Amount    *big.Int       `json:"amount"`
	Index     uint64         `json:"index"`
	ClaimedAt time.Time      `json:"claimed_at"`
}

// Distributor is the claim state machine: it verifies proofs against the
// stored global root and releases tokens exactly once per leaf index.
// Each index is Unclaimed until its first successful claim and Claimed
// forever after.
type Distributor struct {
	root  [32]byte
	store claimstore.IClaimStore
	vault TokenVault

	// mu serializes the check-then-set claim sequence; without it two
	// concurrent claims for the same index could both observe Unclaimed
	// before either sets the bit.
	mu sync.Mutex

	logger *zap.Logger
}

// NewDistributor creates a distributor for the given global root, backed
// by a claim store and a token vault.
func NewDistributor(root common.Hash, store claimstore.IClaimStore, vault TokenVault, logger *zap.Logger) *Distributor {
	return &Distributor{
		root:   root,
		store:  store,
		vault:  vault,
		logger: logger,
	}
}

// Root returns the global root claims are verified against.
func (d *Distributor) Root() common.Hash {
	return d.root
}

// Claim verifies that (addr, balance) is a leaf under the stored root and,
// if its index has not been claimed before, transfers balance tokens to
// addr and marks the index claimed. The transfer destination is the proven
// address, so any caller may submit the claim.
//
// All-or-nothing: a failed verification or transfer leaves the bitmap and
// vault untouched. Calling twice with the same valid proof succeeds once
// and then fails with ErrAlreadyClaimed.
func (d *Distributor) Claim(addr common.Address, balance *big.Int, proof []common.Hash) (*ClaimReceipt, error) {
	leaf := merkle.HashLeaf(addr, balance)

	index, ok := merkle.VerifyProof(leaf, hashesFromCommon(proof), d.root)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidProof, "proof for %s does not match root %s", addr.Hex(), common.Hash(d.root).Hex())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	claimed, err := d.store.IsClaimed(index)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read claim state for index %d", index)
	}
	if claimed {
		return nil, errors.Wrapf(ErrAlreadyClaimed, "index %d", index)
	}

	// Transfer before setting the bit: a failed transfer must leave the
	// index claimable.
	if err := d.vault.Transfer(addr, balance); err != nil {
		return nil, err
	}

	if err := d.store.SetClaimed(index); err != nil {
		// The tokens are out but the bit is not set; surface loudly so the
		// operator can reconcile before the index is claimed again.
		d.logger.Sugar().Errorw("Transfer succeeded but claim bit could not be set",
			"address", addr.Hex(), "index", index, "error", err)
		return nil, errors.Wrapf(err, "failed to record claim for index %d", index)
	}

	receipt := &ClaimReceipt{
		ID:        uuid.New().String(),
		Address:   addr,
		Amount:    new(big.Int).Set(balance),
		Index:     index,
		ClaimedAt: time.Now().UTC(),
	}

	d.logger.Sugar().Infow("Tokens claimed",
		"receipt_id", receipt.ID,
		"address", addr.Hex(),
		"amount", balance.String(),
		"index", index)

	return receipt, nil
}

// HealthCheck reports whether the underlying claim store is operational.
func (d *Distributor) HealthCheck() error {
	return d.store.HealthCheck()
}

func hashesFromCommon(hashes []common.Hash) [][32]byte {
	out := make([][32]byte, len(hashes))
	for i, h := range hashes {
		out[i] = h
	}
	return out
}
