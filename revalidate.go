package swrcache

import (
	"context"
	"time"
)

// Revalidate implements stale-while-revalidate for key:
//
//  1. miss            -> fetch now, store, return fresh (fetch errors propagate)
//  2. hit, fresh      -> return cached, no fetch
//  3. hit, stale, SWR -> return cached immediately, refresh in background
//  4. hit, stale      -> fetch now, store, return fresh (fetch errors propagate)
//
// Background refreshes for the same key are collapsed: no matter how many
// callers revalidate while one is outstanding, the fetch function runs once
// until that refresh settles. Refresh failures are logged and dropped; the
// stale value already served stays valid until the next attempt.
func (c *cache[V]) Revalidate(ctx context.Context, key string, fetch FetchFunc[V], opts RevalidateOptions) (Result[V], error) {
	var zero Result[V]
	if fetch == nil {
		return zero, ErrNilFetch
	}
	ttl := coalesce(opts.TTL, c.ttl)

	if !c.enabled {
		// degrade to a plain fetch; no entry is written or read
		v, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		return Result[V]{Data: v, Stale: false}, nil
	}

	e, ok := c.GetEntry(ctx, key)
	if !ok {
		// no cached fallback exists; a fetch failure is the caller's problem
		v, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		_ = c.Set(ctx, key, v, ttl)
		return Result[V]{Data: v, Stale: false}, nil
	}

	if !c.IsStale(e, ttl) {
		return Result[V]{Data: e.Data, Stale: false}, nil
	}

	if opts.StaleWhileRevalidate {
		c.refreshAsync(key, fetch, ttl)
		return Result[V]{Data: e.Data, Stale: true}, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return Result[V]{Data: v, Stale: false}, nil
}

// refreshAsync starts (or joins) the background refresh for key. The
// singleflight group is the in-flight registry: the check for an outstanding
// refresh and its registration happen under one lock, so two revalidations
// racing on the same stale key still produce a single fetch.
func (c *cache[V]) refreshAsync(key string, fetch FetchFunc[V], ttl time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_, err, shared := c.flight.Do(key, func() (any, error) {
			// refreshes outlive the triggering caller's context on purpose;
			// c.refreshCtx is cancelled by Close
			v, err := fetch(c.refreshCtx)
			if err != nil {
				return nil, err
			}
			if c.refreshCtx.Err() != nil {
				// torn down while fetching; do not write to a closing store
				return nil, c.refreshCtx.Err()
			}
			_ = c.Set(c.refreshCtx, key, v, ttl)
			return v, nil
		})
		if shared {
			c.hooks.RefreshJoined(key)
		}
		if err != nil {
			rerr := &RefreshError{Key: key, Err: err}
			c.log.Warn("background refresh failed", Fields{"key": key, "err": err})
			c.hooks.RefreshFailed(key, rerr)
		}
	}()
}
