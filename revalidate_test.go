package swrcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// chanHooks signals refresh settlement so tests can wait without sleeping.
type chanHooks struct {
	NopHooks
	failed chan error
}

func (h *chanHooks) RefreshFailed(_ string, err error) {
	select {
	case h.failed <- err:
	default:
	}
}

func TestRevalidateMissFetchesAndStores(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	cc := newTestCache(t, "posts", ms, newFakeClock(), nil)
	defer cc.Close(ctx)

	var fetches atomic.Int64
	fetch := func(ctx context.Context) (item, error) {
		fetches.Add(1)
		return item{V: 7}, nil
	}

	// empty cache + swr=true still fetches synchronously and is not stale
	res, err := cc.Revalidate(ctx, "posts", fetch, RevalidateOptions{TTL: 0, StaleWhileRevalidate: true})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if res.Stale || res.Data != (item{V: 7}) {
		t.Fatalf("expected fresh result, got %+v", res)
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}

	// and the result was stored
	if v, ok := cc.Get(ctx, "posts"); !ok || v != (item{V: 7}) {
		t.Fatalf("fetched value not cached: ok=%v v=%+v", ok, v)
	}
}

func TestRevalidateMissPropagatesFetchError(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	cc := newTestCache(t, "posts", ms, newFakeClock(), nil)
	defer cc.Close(ctx)

	boom := errors.New("boom")
	_, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		return item{}, boom
	}, RevalidateOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("fetch error must propagate on miss, got %v", err)
	}
	if ms.len() != 0 {
		t.Fatalf("failed fetch must not store anything")
	}
}

func TestRevalidateFreshHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	cc := newTestCache(t, "posts", ms, clk, nil)
	defer cc.Close(ctx)

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Minute)

	res, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		t.Errorf("fetch must not run on a fresh hit")
		return item{}, nil
	}, RevalidateOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if res.Stale || res.Data != (item{V: 1}) {
		t.Fatalf("expected cached fresh value, got %+v", res)
	}
}

func TestRevalidateStaleBlockingWhenSWRDisabled(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	cc := newTestCache(t, "posts", ms, clk, nil)
	defer cc.Close(ctx)

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Second)
	clk.Advance(2 * time.Second)

	res, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		return item{V: 2}, nil
	}, RevalidateOptions{TTL: time.Second})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if res.Stale || res.Data != (item{V: 2}) {
		t.Fatalf("expected blocking refresh result, got %+v", res)
	}

	// stale + swr=false + failing fetch propagates
	clk.Advance(2 * time.Second)
	boom := errors.New("boom")
	if _, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		return item{}, boom
	}, RevalidateOptions{TTL: time.Second}); !errors.Is(err, boom) {
		t.Fatalf("fetch error must propagate when swr is off, got %v", err)
	}
}

func TestRevalidateServesStaleAndRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	cc := newTestCache(t, "posts", ms, clk, nil)

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Second)
	clk.Advance(2 * time.Second)

	var fetches atomic.Int64
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (item, error) {
		fetches.Add(1)
		<-gate
		return item{V: 2}, nil
	}
	opts := RevalidateOptions{TTL: time.Second, StaleWhileRevalidate: true}

	// many callers while the refresh is outstanding: all observe the old
	// value immediately, and exactly one underlying fetch runs
	for i := 0; i < 5; i++ {
		res, err := cc.Revalidate(ctx, "posts", fetch, opts)
		if err != nil {
			t.Fatalf("Revalidate #%d: %v", i, err)
		}
		if !res.Stale || res.Data != (item{V: 1}) {
			t.Fatalf("caller #%d should see the stale value, got %+v", i, res)
		}
	}

	// all five joined the same in-flight refresh: one fetch, still blocked
	time.Sleep(50 * time.Millisecond)
	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected exactly one in-flight fetch, got %d", n)
	}

	close(gate)

	// wait for the background refresh to land
	deadline := time.After(2 * time.Second)
	for {
		if v, ok := cc.Get(ctx, "posts"); ok && v == (item{V: 2}) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("refresh never stored the new value")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected exactly one fetch until settle, got %d", n)
	}
	if err := cc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBackgroundRefreshFailureKeepsStaleEntry(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	hooks := &chanHooks{failed: make(chan error, 1)}
	cc := newTestCache(t, "posts", ms, clk, func(o *Options[item]) {
		o.Hooks = hooks
	})
	defer cc.Close(ctx)

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Second)
	clk.Advance(2 * time.Second)

	boom := errors.New("boom")
	res, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		return item{}, boom
	}, RevalidateOptions{TTL: time.Second, StaleWhileRevalidate: true})
	if err != nil {
		t.Fatalf("refresh failures must not surface to the caller: %v", err)
	}
	if !res.Stale || res.Data != (item{V: 1}) {
		t.Fatalf("expected stale value, got %+v", res)
	}

	select {
	case rerr := <-hooks.failed:
		if !errors.Is(rerr, boom) {
			t.Fatalf("hook should carry the fetch error, got %v", rerr)
		}
		var re *RefreshError
		if !errors.As(rerr, &re) || re.Key != "posts" {
			t.Fatalf("expected RefreshError for the key, got %v", rerr)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RefreshFailed hook never fired")
	}

	// the stale entry survives until the next attempt succeeds
	if v, ok := cc.Get(ctx, "posts"); !ok || v != (item{V: 1}) {
		t.Fatalf("stale entry should remain: ok=%v v=%+v", ok, v)
	}
}

func TestCloseCancelsOutstandingRefresh(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	hooks := &chanHooks{failed: make(chan error, 1)}
	cc := newTestCache(t, "posts", ms, clk, func(o *Options[item]) {
		o.Hooks = hooks
	})

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Second)
	clk.Advance(2 * time.Second)

	// fetch blocks until the refresh context is torn down
	fetch := func(fctx context.Context) (item, error) {
		<-fctx.Done()
		return item{}, fctx.Err()
	}
	if _, err := cc.Revalidate(ctx, "posts", fetch, RevalidateOptions{TTL: time.Second, StaleWhileRevalidate: true}); err != nil {
		t.Fatalf("Revalidate: %v", err)
	}

	// Close cancels the refresh context and waits for the goroutine
	if err := cc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case rerr := <-hooks.failed:
		if !errors.Is(rerr, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", rerr)
		}
	default:
		t.Fatalf("refresh should have settled (failed) before Close returned")
	}

	// no phantom write after teardown
	if v, ok := cc.Get(ctx, "posts"); !ok || v != (item{V: 1}) {
		t.Fatalf("cancelled refresh must not mutate the entry: ok=%v v=%+v", ok, v)
	}
}

func TestRevalidateAfterCloseSpawnsNothing(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	clk := newFakeClock()
	cc := newTestCache(t, "posts", ms, clk, nil)

	_ = cc.Set(ctx, "posts", item{V: 1}, time.Second)
	clk.Advance(2 * time.Second)
	if err := cc.Close(ctx); err != nil {
		t.Fatal(err)
	}

	var fetches atomic.Int64
	res, err := cc.Revalidate(ctx, "posts", func(context.Context) (item, error) {
		fetches.Add(1)
		return item{V: 9}, nil
	}, RevalidateOptions{TTL: time.Second, StaleWhileRevalidate: true})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	// stale value still served; no background work started
	if !res.Stale || res.Data != (item{V: 1}) {
		t.Fatalf("expected stale value, got %+v", res)
	}
	time.Sleep(20 * time.Millisecond)
	if n := fetches.Load(); n != 0 {
		t.Fatalf("closed cache must not refresh, fetches=%d", n)
	}
}

func TestRevalidateNilFetch(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, "posts", newMemStore(), newFakeClock(), nil)
	defer cc.Close(ctx)

	if _, err := cc.Revalidate(ctx, "posts", nil, RevalidateOptions{}); !errors.Is(err, ErrNilFetch) {
		t.Fatalf("expected ErrNilFetch, got %v", err)
	}
}

func TestRevalidateDisabledAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	cc := newTestCache(t, "posts", ms, newFakeClock(), func(o *Options[item]) {
		o.Disabled = true
	})
	defer cc.Close(ctx)

	var fetches atomic.Int64
	fetch := func(context.Context) (item, error) {
		fetches.Add(1)
		return item{V: 3}, nil
	}
	for i := 0; i < 2; i++ {
		res, err := cc.Revalidate(ctx, "posts", fetch, RevalidateOptions{StaleWhileRevalidate: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Stale || res.Data != (item{V: 3}) {
			t.Fatalf("disabled cache should pass fetches through, got %+v", res)
		}
	}
	if n := fetches.Load(); n != 2 {
		t.Fatalf("expected a fetch per call, got %d", n)
	}
	if ms.len() != 0 {
		t.Fatalf("disabled cache wrote to store")
	}
}
