package claims

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrInsufficientReserve is returned when the vault's distributing balance
// is lower than the requested claim amount.
var ErrInsufficientReserve = errors.New("insufficient reserve")

// TokenVault is the token-transfer collaborator the distributor draws
// from. On-chain this is the token contract holding the airdrop supply;
// off-chain implementations ledger the transfers themselves.
type TokenVault interface {
	// Transfer moves amount tokens from the reserve to the recipient.
	// Returns ErrInsufficientReserve if the reserve cannot cover it.
	Transfer(to common.Address, amount *big.Int) error

	// Reserve returns the remaining distributable balance.
	Reserve() *big.Int
}

// MemoryVault is an in-memory TokenVault keeping a simple per-address
// ledger. Thread-safe.
type MemoryVault struct {
	mu       sync.Mutex
	reserve  *big.Int
	balances map[common.Address]*big.Int
}

// NewMemoryVault creates a vault with the given initial reserve.
func NewMemoryVault(reserve *big.Int) *MemoryVault {
	return &MemoryVault{
		reserve:  new(big.Int).Set(reserve),
		balances: make(map[common.Address]*big.Int),
	}
}

// Transfer deducts amount from the reserve and credits the recipient.
func (v *MemoryVault) Transfer(to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.reserve.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientReserve, "reserve %s < claim %s", v.reserve.String(), amount.String())
	}

	v.reserve.Sub(v.reserve, amount)

	balance, ok := v.balances[to]
	if !ok {
		balance = new(big.Int)
		v.balances[to] = balance
	}
	balance.Add(balance, amount)

	return nil
}

// Deposit adds amount to the distributable reserve.
func (v *MemoryVault) Deposit(amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.reserve.Add(v.reserve, amount)
}

// Reserve returns the remaining distributable balance.
func (v *MemoryVault) Reserve() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return new(big.Int).Set(v.reserve)
}

// BalanceOf returns the amount credited to an address so far.
func (v *MemoryVault) BalanceOf(addr common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	balance, ok := v.balances[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}
