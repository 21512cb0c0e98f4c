package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	kv "github.com/unkn0wn-root/swrcache/kvstore"
)

var ErrNilClient = errors.New("redis store: nil client")

// Redis adapts a go-redis client to the kvstore.Store contract.
// All keys are written under Prefix so Clear can be scoped to this store
// instead of flushing a shared database.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	expiry      time.Duration
	closeClient bool
}

var _ kv.Store = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient

	// Prefix namespaces every key (e.g. "swrcache:"). Required so Clear can
	// SCAN+DEL only keys owned by this store.
	Prefix string

	// Expiry, when > 0, is applied as a redis-level expiry on every Set.
	// This is a safety net against abandoned entries, not freshness control;
	// staleness is always computed by swrcache from the entry envelope.
	Expiry time.Duration

	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Prefix == "" {
		return nil, errors.New("redis store: prefix is required")
	}
	return &Redis{
		rdb:         cfg.Client,
		prefix:      cfg.Prefix,
		expiry:      cfg.Expiry,
		closeClient: cfg.CloseClient,
	}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, value, s.expiry).Err()
}

func (s *Redis) Remove(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Clear removes every key under the store's prefix using SCAN so large
// keyspaces do not block the server the way KEYS would.
func (s *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"*", 512).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
