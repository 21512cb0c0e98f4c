// Package pager merges paged fetch results into one deduplicated list with a
// small loading state machine. At most one fetch is in flight per Pager, so
// double-tapped "load more" calls cannot duplicate work, and failed loads
// keep whatever was already loaded.
package pager

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/swrcache"
)

// Phase is where the pager's state machine currently sits.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingInitial
	PhaseRefreshing
	PhaseLoadingMore
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingInitial:
		return "loading_initial"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseLoadingMore:
		return "loading_more"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Page is one batch of fetched items. When the transport reports whether more
// pages exist, set HasMore directly; otherwise build the page with PageOf.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// PageOf infers HasMore by comparing the returned length against the
// requested page size: fewer items than requested means no more pages.
func PageOf[T any](items []T, requested int) Page[T] {
	return Page[T]{Items: items, HasMore: len(items) >= requested}
}

// FetchFunc loads one page. page is zero-based; size is the requested page
// size. The pager imposes no timeout; the function owns its deadline policy.
type FetchFunc[T any] func(ctx context.Context, page, size int) (Page[T], error)

// Options configure a Pager. Fetch and Identity are required.
type Options[T any, K comparable] struct {
	Fetch FetchFunc[T]

	// Identity extracts the dedup key for an item (e.g. its ID).
	Identity func(T) K

	PageSize int             // 0 => 20
	Logger   swrcache.Logger // nil => NopLogger
}

// State is a point-in-time copy of the pager's observable state. Items is a
// fresh slice; callers may keep it.
type State[T any] struct {
	Items   []T
	Page    int
	HasMore bool
	Phase   Phase
	Err     error // failure reason while Phase == PhaseError
}

// Pager owns its state exclusively; callers observe it via State and mutate
// it only through Load/Refresh/LoadMore.
type Pager[T any, K comparable] struct {
	fetch    FetchFunc[T]
	identity func(T) K
	size     int
	log      swrcache.Logger

	mu       sync.Mutex
	items    []T
	seen     map[K]struct{}
	page     int
	hasMore  bool
	phase    Phase
	lastErr  error
	inFlight bool
	closed   bool
}

func New[T any, K comparable](opts Options[T, K]) (*Pager[T, K], error) {
	if opts.Fetch == nil {
		return nil, fmt.Errorf("pager: fetch function is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("pager: identity function is required")
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	log := opts.Logger
	if log == nil {
		log = swrcache.NopLogger{}
	}
	return &Pager[T, K]{
		fetch:    opts.Fetch,
		identity: opts.Identity,
		size:     size,
		log:      log,
		seen:     make(map[K]struct{}),
		hasMore:  true,
		phase:    PhaseIdle,
	}, nil
}

// Load performs the initial load (page 0). A no-op while another operation is
// in flight. On failure the pager moves to PhaseError; previously loaded
// items, if any, are kept.
func (p *Pager[T, K]) Load(ctx context.Context) error {
	return p.loadFront(ctx, PhaseLoadingInitial)
}

// Refresh re-fetches page 0 and replaces all items on success. On failure the
// pager moves to PhaseError and the pre-refresh items stay visible.
func (p *Pager[T, K]) Refresh(ctx context.Context) error {
	return p.loadFront(ctx, PhaseRefreshing)
}

func (p *Pager[T, K]) loadFront(ctx context.Context, ph Phase) error {
	if !p.begin(ph, false) {
		return nil
	}

	res, err := p.fetch(ctx, 0, p.size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if p.closed {
		return nil // abandoned instance; drop the result
	}
	if err != nil {
		p.phase = PhaseError
		p.lastErr = err
		return err
	}

	// replace wholesale, deduplicating within the page itself
	p.items = p.items[:0]
	p.seen = make(map[K]struct{}, len(res.Items))
	p.appendNew(res.Items)
	p.page = 1
	p.hasMore = res.HasMore
	p.phase = PhaseIdle
	p.lastErr = nil
	return nil
}

// LoadMore fetches the next page and dedup-merges it onto the list. A no-op
// when no more pages exist or while any operation is in flight: two rapid
// calls produce exactly one fetch.
func (p *Pager[T, K]) LoadMore(ctx context.Context) error {
	if !p.begin(PhaseLoadingMore, true) {
		return nil
	}

	p.mu.Lock()
	page := p.page
	p.mu.Unlock()

	res, err := p.fetch(ctx, page, p.size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if p.closed {
		return nil
	}
	if err != nil {
		p.phase = PhaseError
		p.lastErr = err
		return err
	}

	added := p.appendNew(res.Items)
	if dropped := len(res.Items) - added; dropped > 0 {
		p.log.Debug("dropped duplicate items on merge", swrcache.Fields{"page": page, "dropped": dropped})
	}
	p.page = page + 1
	p.hasMore = res.HasMore
	p.phase = PhaseIdle
	p.lastErr = nil
	return nil
}

// begin flags an operation as in flight. Returns false when the pager is
// closed, busy, or (for LoadMore) already exhausted.
func (p *Pager[T, K]) begin(ph Phase, needMore bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.inFlight {
		return false
	}
	if needMore && !p.hasMore {
		return false
	}
	p.inFlight = true
	p.phase = ph
	return true
}

// appendNew appends items whose identity is not yet present, preserving
// incoming order. Existing items are never reordered or replaced. Returns the
// number of items appended. Caller holds p.mu.
func (p *Pager[T, K]) appendNew(items []T) int {
	added := 0
	for _, it := range items {
		id := p.identity(it)
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = struct{}{}
		p.items = append(p.items, it)
		added++
	}
	return added
}

// State returns a copy of the observable state.
func (p *Pager[T, K]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State[T]{
		Items:   append([]T(nil), p.items...),
		Page:    p.page,
		HasMore: p.hasMore,
		Phase:   p.phase,
		Err:     p.lastErr,
	}
}

// Close marks the pager as torn down. A fetch that settles afterwards
// discards its result instead of mutating an abandoned instance.
func (p *Pager[T, K]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
