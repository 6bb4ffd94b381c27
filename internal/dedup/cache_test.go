package dedup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gdevlabs/triage-agent/internal/coord"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(coord.NewWithClient(rdb), ttl), mr
}

func TestCheckMiss(t *testing.T) {
	c, _ := newTestCache(t, 24*time.Hour)
	_, ok, err := c.Check(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if ok {
		t.Fatal("expected miss for unseen message id")
	}
}

func TestRecordThenCheckByteIdentical(t *testing.T) {
	c, mr := newTestCache(t, 24*time.Hour)
	ctx := context.Background()
	body := []byte(`{"status":"executed","action_result":{"ticket":{"ticket_id":"TKT-1"}}}`)

	if err := c.Record(ctx, "m2", body); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	got, ok, err := c.Check(ctx, "m2")
	if err != nil || !ok {
		t.Fatalf("Check: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("replayed body differs:\n%s\n%s", got, body)
	}
	if ttl := mr.TTL("dedup:m2"); ttl != 24*time.Hour {
		t.Fatalf("expected 24h TTL, got %v", ttl)
	}
}

func TestEmptyMessageIDBypassesCache(t *testing.T) {
	c, mr := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	if err := c.Record(ctx, "", []byte(`{}`)); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("no key should be written without a message id, got %v", mr.Keys())
	}
	if _, ok, _ := c.Check(ctx, ""); ok {
		t.Fatal("empty message id must never hit")
	}
}

func TestEntryExpires(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Record(ctx, "m3", []byte(`{}`)); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Check(ctx, "m3"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestStoreDownFailsClosed(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	if _, _, err := c.Check(context.Background(), "m4"); err == nil {
		t.Fatal("Check must surface store outage")
	}
	if err := c.Record(context.Background(), "m4", []byte(`{}`)); err == nil {
		t.Fatal("Record must surface store outage")
	}
}
