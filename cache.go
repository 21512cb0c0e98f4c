package swrcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/internal/wire"
	kv "github.com/unkn0wn-root/swrcache/kvstore"
)

const defaultTTL = 10 * time.Minute

type cache[V any] struct {
	ns      string
	store   kv.Store
	codec   c.Codec[V]
	log     Logger
	hooks   Hooks
	enabled bool
	ttl     time.Duration
	now     func() time.Time

	// background refresh machinery
	flight     singleflight.Group
	refreshCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex // guards closed vs. spawning refreshes
	closed bool
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("swrcache: store is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("swrcache: namespace is required")
	}

	cc := &cache[V]{
		ns:      opts.Namespace,
		store:   opts.Store,
		enabled: !opts.Disabled,
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.ttl = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	if opts.Codec != nil {
		cc.codec = opts.Codec
	} else {
		cc.codec = c.JSON[V]{}
	}
	if opts.Now != nil {
		cc.now = opts.Now
	} else {
		cc.now = time.Now
	}

	cc.refreshCtx, cc.cancel = context.WithCancel(context.Background())
	return cc, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

// Close stops background refreshes, waits for outstanding ones to settle,
// and closes the backing store.
func (c *cache[V]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	if c.store != nil {
		return c.store.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool) {
	e, ok := c.GetEntry(ctx, key)
	return e.Data, ok
}

func (c *cache[V]) GetEntry(ctx context.Context, key string) (Entry[V], bool) {
	var zero Entry[V]
	if !c.enabled {
		return zero, false
	}
	k := c.storageKey(key)
	raw, ok, err := c.store.Get(ctx, k)
	if err != nil {
		// broken cache must never break the caller; report a miss
		c.log.Warn("store read error", Fields{"key": key, "err": err})
		c.hooks.StoreReadError(k, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	writtenAt, ttl, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = c.store.Remove(ctx, k) // self-heal corrupt
		c.hooks.SelfHeal(k, "corrupt")
		return zero, false
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		_ = c.store.Remove(ctx, k) // self-heal
		c.hooks.SelfHeal(k, "value_decode")
		return zero, false
	}
	return Entry[V]{Key: key, Data: v, WrittenAt: writtenAt, TTL: ttl}, true
}

// Set writes a new entry stamped with the current clock, unconditionally
// replacing any prior entry (last-write-wins). Store failures are logged and
// swallowed; only an encode failure (a caller-side bug) is returned.
func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	k := c.storageKey(key)
	if err := c.store.Set(ctx, k, wire.EncodeEntry(c.now(), ttl, payload)); err != nil {
		c.log.Warn("store write error (dropped)", Fields{"key": key, "err": err})
		c.hooks.StoreWriteError(k, err)
	}
	return nil
}

// Remove and Clear are best-effort like Set: a store failure is logged and
// swallowed so a broken cache never raises out of a deletion path.
func (c *cache[V]) Remove(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	k := c.storageKey(key)
	if err := c.store.Remove(ctx, k); err != nil {
		c.log.Warn("store remove error (dropped)", Fields{"key": key, "err": err})
		c.hooks.StoreWriteError(k, err)
	}
	return nil
}

func (c *cache[V]) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("store clear error (dropped)", Fields{"err": err})
	}
	return nil
}

// IsStale is pure: deterministic given the entry, ttl and the injected clock.
func (c *cache[V]) IsStale(e Entry[V], ttl time.Duration) bool {
	if ttl == 0 {
		ttl = e.TTL
	}
	return c.now().Sub(e.WrittenAt) > ttl
}

func (c *cache[V]) storageKey(userKey string) string {
	// isolate by namespace
	return "entry:" + c.ns + ":" + userKey
}
