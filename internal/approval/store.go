// Package approval stores pending decisions in Redis with a TTL and enforces
// single-use consumption through atomic GETDEL.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdevlabs/triage-agent/internal/coord"
	"github.com/gdevlabs/triage-agent/internal/triage"
)

const keyPrefix = "pending:"

// Store persists pending decisions. The store TTL and the decision's own
// ExpiresAt use the same window, giving two independent expiry checks: Redis
// sweeps the key, and Pop re-checks the embedded timestamp to cover the
// narrow race against that sweep.
type Store struct {
	coord   *coord.Store
	ttl     time.Duration
	nowFunc func() time.Time
	logger  *slog.Logger
}

// NewStore returns a Store holding decisions for the given approval window.
func NewStore(c *coord.Store, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		coord:   c,
		ttl:     ttl,
		nowFunc: time.Now,
		logger:  logger,
	}
}

// TTL returns the configured approval window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put writes the decision under pending:{id} with the approval-window TTL.
// A store failure fails the caller's whole request: approval correctness
// depends on durability, so this path never degrades to in-memory state.
func (s *Store) Put(ctx context.Context, decision triage.PendingDecision) error {
	if decision.PendingID == "" {
		return fmt.Errorf("pending decision has empty id")
	}
	key := keyPrefix + decision.PendingID
	if err := s.coord.SetJSON(ctx, key, decision, s.ttl); err != nil {
		return fmt.Errorf("put pending: %w", err)
	}
	return nil
}

// Pop atomically fetches and deletes the decision. It returns nil when the id
// is unknown, already consumed, or expired. Expiry via the embedded timestamp
// is logged as pending_expired, distinctly from a plain miss.
func (s *Store) Pop(ctx context.Context, pendingID string) (*triage.PendingDecision, error) {
	raw, ok, err := s.coord.GetDel(ctx, keyPrefix+pendingID)
	if err != nil {
		return nil, fmt.Errorf("pop pending: %w", err)
	}
	if !ok {
		return nil, nil
	}
	decision, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	if decision.ExpiresAt.Before(s.nowFunc()) {
		s.logger.Info("pending expired",
			slog.String("event", "pending_expired"),
			slog.String("pending_id", pendingID))
		return nil, nil
	}
	return decision, nil
}

// Peek reads the decision without consuming it. Inspection only; the approval
// critical path must use Pop. An expired entry is deleted and reported absent.
func (s *Store) Peek(ctx context.Context, pendingID string) (*triage.PendingDecision, error) {
	key := keyPrefix + pendingID
	raw, ok, err := s.coord.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("peek pending: %w", err)
	}
	if !ok {
		return nil, nil
	}
	decision, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	if decision.ExpiresAt.Before(s.nowFunc()) {
		if err := s.coord.Del(ctx, key); err != nil {
			return nil, fmt.Errorf("delete expired pending: %w", err)
		}
		s.logger.Info("pending expired",
			slog.String("event", "pending_expired"),
			slog.String("pending_id", pendingID))
		return nil, nil
	}
	return decision, nil
}

func (s *Store) decode(raw []byte) (*triage.PendingDecision, error) {
	var decision triage.PendingDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, fmt.Errorf("unmarshal pending decision: %w", err)
	}
	return &decision, nil
}
