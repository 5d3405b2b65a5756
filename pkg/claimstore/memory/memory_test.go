package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaimStore_SetAndGet(t *testing.T) {
	store := NewMemoryClaimStore()
	defer store.Close()

	claimed, err := store.IsClaimed(0)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, store.SetClaimed(0))

	claimed, err = store.IsClaimed(0)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Neighbors untouched
	claimed, err = store.IsClaimed(1)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestMemoryClaimStore_SparseIndexes(t *testing.T) {
	store := NewMemoryClaimStore()
	defer store.Close()

	// Indexes spanning several bitmap words, including word boundaries
	indexes := []uint64{0, 1, 63, 64, 65, 127, 128, 1000000}
	for _, index := range indexes {
		require.NoError(t, store.SetClaimed(index))
	}

	for _, index := range indexes {
		claimed, err := store.IsClaimed(index)
		require.NoError(t, err)
		assert.True(t, claimed, "index %d should be claimed", index)
	}

	for _, index := range []uint64{2, 62, 66, 129, 999999, 1000001} {
		claimed, err := store.IsClaimed(index)
		require.NoError(t, err)
		assert.False(t, claimed, "index %d should not be claimed", index)
	}
}

func TestMemoryClaimStore_SetIdempotent(t *testing.T) {
	store := NewMemoryClaimStore()
	defer store.Close()

	require.NoError(t, store.SetClaimed(42))
	require.NoError(t, store.SetClaimed(42))

	claimed, err := store.IsClaimed(42)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryClaimStore_Closed(t *testing.T) {
	store := NewMemoryClaimStore()
	require.NoError(t, store.Close())

	_, err := store.IsClaimed(0)
	require.Error(t, err)

	err = store.SetClaimed(0)
	require.Error(t, err)

	require.Error(t, store.HealthCheck())
}

func TestMemoryClaimStore_HealthCheck(t *testing.T) {
	store := NewMemoryClaimStore()
	defer store.Close()

	require.NoError(t, store.HealthCheck())
}

func TestMemoryClaimStore_Concurrent(t *testing.T) {
	store := NewMemoryClaimStore()
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(index uint64) {
			defer wg.Done()
			assert.NoError(t, store.SetClaimed(index))
			claimed, err := store.IsClaimed(index)
			assert.NoError(t, err)
			assert.True(t, claimed)
		}(uint64(i * 100))
	}
	wg.Wait()
}
