// Package kvstore defines the storage abstraction used by swrcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Set.
//
// Stores never interpret keys or values; freshness bookkeeping lives entirely
// in the swrcache envelope. A store therefore needs no TTL support of its own.
package kvstore

import "context"

// Store is a minimal byte store. Must be safe for concurrent use.
// All operations are best-effort from the cache's point of view: the cache
// absorbs store errors and treats them as misses/no-ops, so implementations
// should return honest errors rather than panicking.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key owned by this store.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
