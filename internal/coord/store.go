// Package coord wraps the Redis coordination store behind the three atomic
// primitives the service relies on: set-with-TTL, get-and-delete, and
// increment-with-expiry. All durable state lives here; there is no in-process
// fallback because one would break multi-instance deployments.
package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable marks coordination store outages. Both the dedup and
// approval paths fail closed on it.
var ErrUnavailable = errors.New("coordination store unavailable")

// Store is a thin client over a single Redis connection pool.
type Store struct {
	rdb *redis.Client
}

// New connects a Store to the given Redis address.
func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key with the given TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// SetRaw stores an already-serialized value under key with the given TTL.
func (s *Store) SetRaw(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// GetDel atomically fetches and deletes key (GETDEL). The second return is
// false when the key is absent. A separate read-then-delete would let two
// concurrent callers both observe the value, which is exactly the double-spend
// this store exists to prevent.
func (s *Store) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getdel %s: %w: %w", key, ErrUnavailable, err)
	}
	return raw, true, nil
}

// Get fetches key without deleting it.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w: %w", key, ErrUnavailable, err)
	}
	return raw, true, nil
}

// Del removes key. Missing keys are not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// IncrWithExpiry increments key and starts its expiry window on the first
// increment, returning the new count.
func (s *Store) IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w: %w", key, ErrUnavailable, err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("expire %s: %w: %w", key, ErrUnavailable, err)
		}
	}
	return n, nil
}

// TTL reports the remaining lifetime of key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %s: %w: %w", key, ErrUnavailable, err)
	}
	return d, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
