package claimstore

// IClaimStore is the persistent claim bitmap: one bit per leaf index, with
// all shards combined into one global index space. A bit transitions 0->1
// exactly once per successful claim and is never reset.
//
// All implementations must be thread-safe. The store only records bits;
// the check-then-set claim sequence is serialized by the Distributor.
type IClaimStore interface {
	// IsClaimed reports whether the bit at index is set.
	// Returns error only on storage failure.
	IsClaimed(index uint64) (bool, error)

	// SetClaimed sets the bit at index.
	// Idempotent - setting an already-set bit is not an error.
	SetClaimed(index uint64) error

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
