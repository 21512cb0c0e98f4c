package ristretto

import (
	"context"
	"errors"

	rc "github.com/dgraph-io/ristretto"

	kv "github.com/unkn0wn-root/swrcache/kvstore"
)

// Store adapts dgraph-io/ristretto to the kvstore.Store contract.
// Cost per entry is the encoded value length, so MaxCost is roughly a
// byte budget.
type Store struct {
	c *rc.Cache
}

var _ kv.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	// ristretto may reject under pressure; the cache layer treats a
	// rejected write as best-effort anyway
	s.c.Set(key, value, int64(len(value)))
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.c.Clear()
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto metrics if enabled (not part of kvstore.Store).
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
