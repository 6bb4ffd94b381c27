package events

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledStoreIsNoOp(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.LogEvent(context.Background(), "pending_created", map[string]string{"a": "b"}))

	n, err := s.CountByType(context.Background(), "pending_created")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLogAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogEvent(ctx, "pending_created", map[string]any{"i": i}))
	}
	require.NoError(t, s.LogEvent(ctx, "pending_rejected", map[string]any{"pending_id": "x"}))

	n, err := s.CountByType(ctx, "pending_created")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = s.CountByType(ctx, "pending_rejected")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUnmarshalablePayloadIsMarked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	// Channels cannot marshal; the event must still be recorded.
	require.NoError(t, s.LogEvent(context.Background(), "audit", make(chan int)))

	n, err := s.CountByType(context.Background(), "audit")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNilStoreSafe(t *testing.T) {
	var s *Store
	require.NoError(t, s.LogEvent(context.Background(), "anything", nil))
	require.NoError(t, s.Close())
}
