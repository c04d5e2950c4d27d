package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis for integration tests and
// skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewStorePanicsWithoutClient(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore(nil, time.Minute)
}

func TestStoreRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	key := "act_123/insights?fields=spend"
	body := json.RawMessage(`{"data":[{"spend":"12.34"}]}`)

	if _, ok := store.Get(ctx, key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	store.Set(ctx, key, body)

	got, ok := store.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(got) != string(body) {
		t.Errorf("got %s, want %s", got, body)
	}
}

func TestStoreExpiry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 50*time.Millisecond)
	ctx := context.Background()

	store.Set(ctx, "ephemeral", json.RawMessage(`{}`))
	time.Sleep(80 * time.Millisecond)

	if _, ok := store.Get(ctx, "ephemeral"); ok {
		t.Error("entry should have expired")
	}
}

func TestStoreDelete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	store.Set(ctx, "doomed", json.RawMessage(`{"x":1}`))
	store.Delete(ctx, "doomed")

	if _, ok := store.Get(ctx, "doomed"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestStoreDefaultTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewStore(client, 0)
	if store.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", store.ttl, DefaultTTL)
	}
}
