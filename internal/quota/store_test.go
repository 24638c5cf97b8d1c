package quota

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), server
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newTestRedisStore(t)
	_, found, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("expected no state for a fresh redis")
	}
}

func TestRedisStoreRoundTripUsesNamespaceKey(t *testing.T) {
	store, server := newTestRedisStore(t)
	state := State{Count: 7, ResetTime: 1773532799999}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := server.Get(defaultStoreKey)
	if err != nil {
		t.Fatalf("expected key %q in redis: %v", defaultStoreKey, err)
	}
	if raw != `{"count":7,"resetTime":1773532799999}` {
		t.Fatalf("unexpected stored blob %s", raw)
	}

	loaded, found, err := store.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if loaded != state {
		t.Fatalf("expected %+v, got %+v", state, loaded)
	}
}

func TestRedisStoreCorruptBlobTreatedAsMissing(t *testing.T) {
	store, server := newTestRedisStore(t)
	_ = server.Set(defaultStoreKey, "not json")

	_, found, err := store.Load(context.Background())
	if err != nil || found {
		t.Fatalf("expected corrupt state to be ignored, found=%v err=%v", found, err)
	}
}

func TestGateWithRedisStoreSharesCounter(t *testing.T) {
	store, _ := newTestRedisStore(t)
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.Local)

	first := NewGate(store, WithLimit(2), WithClock(fixedClock(now)))
	second := NewGate(store, WithLimit(2), WithClock(fixedClock(now)))

	if _, err := first.Reserve(context.Background()); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := second.Reserve(context.Background()); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	status, _ := first.Check(context.Background())
	if status.Used != 2 || status.Allowed {
		t.Fatalf("expected both gates to share the stored count, got %+v", status)
	}
}

func TestReleaseAfterCancelReturnsSlotToRedis(t *testing.T) {
	store, server := newTestRedisStore(t)
	gate := NewGate(store, WithLimit(1))

	ctx, cancel := context.WithCancel(context.Background())
	reservation, err := gate.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cancel()
	reservation.Release(ctx)

	raw, err := server.Get(defaultStoreKey)
	if err != nil {
		t.Fatalf("expected stored quota: %v", err)
	}
	if !strings.Contains(raw, `"count":0`) {
		t.Fatalf("expected released slot in redis, got %s", raw)
	}
	fresh := NewGate(store, WithLimit(1))
	status, _ := fresh.Check(context.Background())
	if status.Used != 0 || !status.Allowed {
		t.Fatalf("expected slot to be available again, got %+v", status)
	}
}
