package claims

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merkledrop/merkledrop-go/pkg/builder"
	"github.com/merkledrop/merkledrop-go/pkg/claimstore/memory"
	"github.com/merkledrop/merkledrop-go/pkg/merkle"
	"github.com/merkledrop/merkledrop-go/pkg/prover"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

type testDrop struct {
	allocations []*types.Allocation
	prover      *prover.Prover
	vault       *MemoryVault
	distributor *Distributor
}

func newTestDrop(t *testing.T, reserve int64) *testDrop {
	t.Helper()

	addresses := []string{
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1",
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2",
		"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb3",
		"0xc444444444444444444444444444444444444444",
	}
	allocations := make([]*types.Allocation, len(addresses))
	for i, addr := range addresses {
		allocations[i] = &types.Allocation{
			Address: common.HexToAddress(addr),
			Balance: types.NewBalance(big.NewInt(int64((i + 1) * 100))),
		}
	}

	result, err := builder.Build(allocations, 1, zap.NewNop())
	require.NoError(t, err)

	p := prover.NewProver(result.Manifest, prover.NewMemoryFetcher(result.Shards), zap.NewNop())
	vault := NewMemoryVault(big.NewInt(reserve))
	d := NewDistributor(result.Manifest.Root, memory.NewMemoryClaimStore(), vault, zap.NewNop())

	return &testDrop{
		allocations: allocations,
		prover:      p,
		vault:       vault,
		distributor: d,
	}
}

func (td *testDrop) proofFor(t *testing.T, addr common.Address) (*big.Int, []common.Hash) {
	t.Helper()
	entry, proof, err := td.prover.GetProof(context.Background(), addr)
	require.NoError(t, err)
	return &entry.Balance.Int, proof
}

// TestClaim_Success tests a valid claim transfers exactly the balance
func TestClaim_Success(t *testing.T) {
	td := newTestDrop(t, 1000)
	addr := td.allocations[0].Address
	balance, proof := td.proofFor(t, addr)

	receipt, err := td.distributor.Claim(addr, balance, proof)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, addr, receipt.Address)
	assert.Equal(t, balance.String(), receipt.Amount.String())

	assert.Equal(t, balance.String(), td.vault.BalanceOf(addr).String())
	assert.Equal(t, "900", td.vault.Reserve().String())
}

// TestClaim_Idempotence tests the second claim with the same proof fails
// and transfers nothing further
func TestClaim_Idempotence(t *testing.T) {
	td := newTestDrop(t, 1000)
	addr := td.allocations[0].Address
	balance, proof := td.proofFor(t, addr)

	_, err := td.distributor.Claim(addr, balance, proof)
	require.NoError(t, err)

	_, err = td.distributor.Claim(addr, balance, proof)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAlreadyClaimed))

	// No double transfer
	assert.Equal(t, balance.String(), td.vault.BalanceOf(addr).String())
}

// TestClaim_AllEntries claims every allocation once
func TestClaim_AllEntries(t *testing.T) {
	td := newTestDrop(t, 10000)

	for _, a := range td.allocations {
		balance, proof := td.proofFor(t, a.Address)
		receipt, err := td.distributor.Claim(a.Address, balance, proof)
		require.NoError(t, err)
		require.NotNil(t, receipt)
	}

	// 100+200+300+400 drawn from the reserve
	assert.Equal(t, "9000", td.vault.Reserve().String())
}

// TestClaim_InvalidProof tests rejection without state change
func TestClaim_InvalidProof(t *testing.T) {
	td := newTestDrop(t, 1000)
	addr := td.allocations[0].Address
	balance, proof := td.proofFor(t, addr)

	t.Run("Tampered proof element", func(t *testing.T) {
		tampered := make([]common.Hash, len(proof))
		copy(tampered, proof)
		tampered[0][5] ^= 0xFF
		_, err := td.distributor.Claim(addr, balance, tampered)
		require.True(t, errors.Is(err, ErrInvalidProof))
	})

	t.Run("Wrong balance", func(t *testing.T) {
		_, err := td.distributor.Claim(addr, big.NewInt(999999), proof)
		require.True(t, errors.Is(err, ErrInvalidProof))
	})

	t.Run("Wrong address", func(t *testing.T) {
		_, err := td.distributor.Claim(common.HexToAddress("0xdead000000000000000000000000000000000000"), balance, proof)
		require.True(t, errors.Is(err, ErrInvalidProof))
	})

	// The failed attempts must not have consumed the claim
	_, err := td.distributor.Claim(addr, balance, proof)
	require.NoError(t, err)
}

// TestClaim_InsufficientReserve tests a claim larger than the reserve is
// rejected and stays claimable
func TestClaim_InsufficientReserve(t *testing.T) {
	td := newTestDrop(t, 50) // first allocation is 100
	addr := td.allocations[0].Address
	balance, proof := td.proofFor(t, addr)

	_, err := td.distributor.Claim(addr, balance, proof)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInsufficientReserve))

	// Bit must not be set: topping up the reserve makes the claim succeed
	claimed, storeErr := td.distributor.store.IsClaimed(indexOf(t, td, addr, balance, proof))
	require.NoError(t, storeErr)
	assert.False(t, claimed)

	td.vault.Deposit(big.NewInt(100))
	_, err = td.distributor.Claim(addr, balance, proof)
	require.NoError(t, err)
}

// TestClaim_Concurrent tests that racing claims for the same entry succeed
// exactly once
func TestClaim_Concurrent(t *testing.T) {
	td := newTestDrop(t, 1000)
	addr := td.allocations[0].Address
	balance, proof := td.proofFor(t, addr)

	const racers = 16
	var wg sync.WaitGroup
	successes := make(chan *ClaimReceipt, racers)
	failures := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := td.distributor.Claim(addr, balance, proof)
			if err != nil {
				failures <- err
			} else {
				successes <- receipt
			}
		}()
	}
	wg.Wait()
	close(successes)
	close(failures)

	assert.Len(t, successes, 1)
	assert.Len(t, failures, racers-1)
	for err := range failures {
		assert.True(t, errors.Is(err, ErrAlreadyClaimed))
	}

	// Exactly one transfer happened
	assert.Equal(t, balance.String(), td.vault.BalanceOf(addr).String())
}

// TestMemoryVault tests reserve accounting
func TestMemoryVault(t *testing.T) {
	vault := NewMemoryVault(big.NewInt(100))
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, vault.Transfer(addr, big.NewInt(60)))
	assert.Equal(t, "40", vault.Reserve().String())
	assert.Equal(t, "60", vault.BalanceOf(addr).String())

	err := vault.Transfer(addr, big.NewInt(50))
	require.True(t, errors.Is(err, ErrInsufficientReserve))
	assert.Equal(t, "40", vault.Reserve().String())
}

// indexOf recomputes the bitmap index a proof folds to
func indexOf(t *testing.T, td *testDrop, addr common.Address, balance *big.Int, proof []common.Hash) uint64 {
	t.Helper()
	leaf := merkle.HashLeaf(addr, balance)
	index, ok := merkle.VerifyProof(leaf, hashesFromCommon(proof), td.distributor.root)
	require.True(t, ok)
	return index
}
