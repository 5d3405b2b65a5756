package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixClaim       = "claim:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerClaimStore is a durable claim bitmap backed by Badger.
// Each set bit is stored as one key so the bitmap can grow without bound
// and survives restarts with fsync-on-write durability.
type BadgerClaimStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerClaimStore opens (or creates) a Badger-backed claim store at the
// given path. SyncWrites is enabled: a claim acknowledged to the caller
// must never be lost, or a crash could allow a double payout.
// A background goroutine is started for value log garbage collection.
func NewBadgerClaimStore(dataPath string, logger *zap.Logger) (*BadgerClaimStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerClaimStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger claim store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerClaimStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerClaimStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// IsClaimed reports whether the bit at index is set.
func (b *BadgerClaimStore) IsClaimed(index uint64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	var claimed bool
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(claimKey(index))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read claim bit %d: %w", index, err)
	}

	return claimed, nil
}

// SetClaimed sets the bit at index.
func (b *BadgerClaimStore) SetClaimed(index uint64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(claimKey(index), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("failed to set claim bit %d: %w", index, err)
	}

	return nil
}

// Close stops background GC and closes the database.
func (b *BadgerClaimStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is operational.
func (b *BadgerClaimStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("health check read failed: %w", err)
		}
		return nil
	})
}

// claimKey encodes an index as a fixed-width big-endian key so keys sort
// in index order.
func claimKey(index uint64) []byte {
	key := make([]byte, len(keyPrefixClaim)+8)
	copy(key, keyPrefixClaim)
	binary.BigEndian.PutUint64(key[len(keyPrefixClaim):], index)
	return key
}
