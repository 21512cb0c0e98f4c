package kvstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	updatedAt time.Time
}

// Memory keeps values in-process (default).
// Optional sweep loop to prune long-inactive entries so an embedded cache
// does not grow without bound across a process lifetime.
type Memory struct {
	mu     sync.RWMutex
	m      map[string]memEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an in-process store. When both sweepInterval and
// retention are positive, a background loop prunes entries not written for
// longer than retention. Pass 0, 0 to disable sweeping.
func NewMemory(sweepInterval, retention time.Duration) *Memory {
	s := &Memory{
		m:         make(map[string]memEntry),
		retention: retention,
	}
	if sweepInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(sweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.sweep(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	// copy so the caller cannot mutate stored bytes afterwards
	cp := append([]byte(nil), value...)
	s.mu.Lock()
	s.m[key] = memEntry{value: cp, updatedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Clear(_ context.Context) error {
	s.mu.Lock()
	s.m = make(map[string]memEntry)
	s.mu.Unlock()
	return nil
}

func (s *Memory) sweep(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.m {
		if !e.updatedAt.IsZero() && e.updatedAt.Before(cutoff) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

// Len reports the current number of stored keys. Intended for tests and
// metrics, not for control flow.
func (s *Memory) Len() int {
	s.mu.RLock()
	n := len(s.m)
	s.mu.RUnlock()
	return n
}

func (s *Memory) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		if s.ticker != nil {
			s.ticker.Stop() // stop ticker before waiting
		}
		s.wg.Wait()
	}
	return nil
}
