package memory

import (
	"fmt"
	"sync"
)

// MemoryClaimStore is an in-memory claim bitmap.
// All bits are lost when the process exits, so this is only suitable for
// tests and ephemeral deployments. Thread-safe using sync.RWMutex.
type MemoryClaimStore struct {
	mu sync.RWMutex

	// words is the growable bitmap, 64 bits per word
	words []uint64

	closed bool
}

// NewMemoryClaimStore creates an empty in-memory claim bitmap.
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{}
}

// IsClaimed reports whether the bit at index is set.
func (m *MemoryClaimStore) IsClaimed(index uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	word := index / 64
	if word >= uint64(len(m.words)) {
		return false, nil
	}
	return m.words[word]&(1<<(index%64)) != 0, nil
}

// SetClaimed sets the bit at index, growing the bitmap as needed.
func (m *MemoryClaimStore) SetClaimed(index uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	word := index / 64
	for uint64(len(m.words)) <= word {
		m.words = append(m.words, 0)
	}
	m.words[word] |= 1 << (index % 64)
	return nil
}

// Close shuts down the store.
func (m *MemoryClaimStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryClaimStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}
	return nil
}
