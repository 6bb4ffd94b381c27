// Package dedup caches serialized webhook responses keyed by the caller's
// message id, making the ingestion endpoint safe under retries.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/gdevlabs/triage-agent/internal/coord"
)

const keyPrefix = "dedup:"

// Cache replays previously computed response bodies for a fixed window.
// The window (default 24h) intentionally outlives the approval TTL so it
// covers realistic retry schedules of the external caller; a replayed
// "pending" response may therefore name an already-consumed token, and a
// follow-up approve on it returns the terminal not-found signal.
type Cache struct {
	coord *coord.Store
	ttl   time.Duration
}

// NewCache returns a Cache with the given replay window.
func NewCache(c *coord.Store, ttl time.Duration) *Cache {
	return &Cache{coord: c, ttl: ttl}
}

// Check returns the cached response body for messageID, or (nil, false) on a
// miss. An empty messageID always misses: without an id there is no dedup
// contract. A store error is returned as-is; the caller must fail the request
// rather than risk processing twice.
func (c *Cache) Check(ctx context.Context, messageID string) ([]byte, bool, error) {
	if messageID == "" {
		return nil, false, nil
	}
	raw, ok, err := c.coord.Get(ctx, keyPrefix+messageID)
	if err != nil {
		return nil, false, fmt.Errorf("dedup check: %w", err)
	}
	return raw, ok, nil
}

// Record stores the response body under the message id. No-op without an id.
func (c *Cache) Record(ctx context.Context, messageID string, body []byte) error {
	if messageID == "" {
		return nil
	}
	if err := c.coord.SetRaw(ctx, keyPrefix+messageID, body, c.ttl); err != nil {
		return fmt.Errorf("dedup record: %w", err)
	}
	return nil
}
