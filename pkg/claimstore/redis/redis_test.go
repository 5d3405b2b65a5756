package redis

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStore connects to the Redis instance named by REDIS_TEST_ADDRESS,
// skipping the test when none is configured. Each test gets a unique key
// prefix so runs do not interfere.
func newTestStore(t *testing.T) *RedisClaimStore {
	t.Helper()

	address := os.Getenv("REDIS_TEST_ADDRESS")
	if address == "" {
		t.Skipf("REDIS_TEST_ADDRESS not set, skipping Redis claim store tests")
	}

	store, err := NewRedisClaimStore(&RedisConfig{
		Address:   address,
		KeyPrefix: fmt.Sprintf("test:%d:", time.Now().UnixNano()),
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestRedisClaimStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	claimed, err := store.IsClaimed(5)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, store.SetClaimed(5))

	claimed, err = store.IsClaimed(5)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.IsClaimed(6)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRedisClaimStore_HighIndex(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	// SETBIT grows the bitmap; a few MB is the realistic ceiling for an
	// airdrop's leaf count
	require.NoError(t, store.SetClaimed(10_000_000))

	claimed, err := store.IsClaimed(10_000_000)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisClaimStore_Closed(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.IsClaimed(0)
	require.Error(t, err)

	err = store.SetClaimed(0)
	require.Error(t, err)

	require.Error(t, store.HealthCheck())
}

func TestRedisClaimStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	require.NoError(t, store.HealthCheck())
}

func TestNewRedisClaimStore_InvalidConfig(t *testing.T) {
	_, err := NewRedisClaimStore(nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewRedisClaimStore(&RedisConfig{}, zap.NewNop())
	require.Error(t, err)
}
