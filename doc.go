// Package swrcache implements a store-agnostic, key-scoped cache with TTL
// freshness and stale-while-revalidate reads. Expired entries keep serving
// while a single background refresh per key brings them up to date.
//
// Components:
//   - kvstore.Store: byte store (in-process Memory, Redis, BigCache, Ristretto).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - pool: bounded-concurrency task runner for batching independent fetches.
//   - pager: incremental-list pagination with dedup-merge and a loading
//     state machine.
//
// Keys:
//
//	entry:<ns>:<key> - cache entries (envelope carries writtenAt + ttl)
//
// SWR pattern:
//
//	res, err := cache.Revalidate(ctx, "posts-page-1", fetchPosts, swrcache.RevalidateOptions{
//	    TTL:                  time.Minute,
//	    StaleWhileRevalidate: true,
//	})
//	// res.Stale == true means a background refresh is running for the key
package swrcache
