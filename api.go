package swrcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	kv "github.com/unkn0wn-root/swrcache/kvstore"
)

// Entry is a cached value together with its freshness bookkeeping.
// Entries are immutable once written; Set replaces them wholesale.
type Entry[V any] struct {
	Key       string
	Data      V
	WrittenAt time.Time
	TTL       time.Duration // freshness window recorded at Set time; 0 = none recorded
}

// FetchFunc produces a fresh value for a key. Supplied by the caller;
// the cache imposes no timeout, so the function owns its own deadline and
// backoff policy.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// RevalidateOptions tune one Revalidate call. They are never persisted.
type RevalidateOptions struct {
	// TTL is the freshness window; 0 => Options.DefaultTTL.
	TTL time.Duration

	// StaleWhileRevalidate serves an expired entry immediately and refreshes
	// it in the background. When false, an expired entry blocks on a fetch.
	StaleWhileRevalidate bool
}

// Result is what Revalidate hands back: the value plus whether it came from
// an expired entry (a background refresh is then running or about to).
type Result[V any] struct {
	Data  V
	Stale bool
}

// Cache is the high-level, store-agnostic stale-while-revalidate cache API.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Direct entry access. Reads absorb store and decode failures and report
	// a miss; a broken cache must never break the caller.
	Get(ctx context.Context, key string) (v V, ok bool)
	GetEntry(ctx context.Context, key string) (e Entry[V], ok bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// IsStale reports whether e has outlived ttl on the cache's clock.
	// ttl == 0 falls back to the TTL recorded on the entry.
	IsStale(e Entry[V], ttl time.Duration) bool

	// Revalidate implements stale-while-revalidate over Get/Set and the
	// caller-supplied fetch. At most one refresh per key is in flight at any
	// instant, no matter how many callers revalidate concurrently.
	Revalidate(ctx context.Context, key string, fetch FetchFunc[V], opts RevalidateOptions) (Result[V], error)
}

// Options tune the behavior of the generic cache.
// Only Namespace and Store are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "posts", "profile"
	Store     kv.Store
	Codec     c.Codec[V]

	Logger     Logger           // if nil, NopLogger is used
	Hooks      Hooks            // if nil, NopHooks is used
	DefaultTTL time.Duration    // 0 => 10m
	Disabled   bool             // default false (enabled)
	Now        func() time.Time // clock; nil => time.Now. Inject in tests.
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
