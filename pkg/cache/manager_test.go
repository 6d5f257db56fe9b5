package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for the test.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewManager(t *testing.T) {
	client, _ := setupTestRedis(t)

	manager := NewManager(client, 0)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", manager.TTL(), DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Minute)
}

func TestManager_SetAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, 5*time.Minute)
	ctx := context.Background()

	key, err := manager.Key(ctx, "status:open", "Thu Dec 24 2020")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if key.Generation != 0 {
		t.Errorf("Generation = %d, want 0", key.Generation)
	}

	data := []byte(`{"runId":"abc"}`)
	if err := manager.Set(ctx, key, data); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != string(data) {
		t.Errorf("Data mismatch: got %s, want %s", entry.Data, data)
	}

	if ttl := mr.TTL(key.String()); ttl != 5*time.Minute {
		t.Errorf("redis TTL = %v, want 5m", ttl)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	_, err := manager.Get(context.Background(), Key{StatusQuery: "status:open", DeliveryDate: "nope"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_Expired(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := Key{StatusQuery: "status:open", DeliveryDate: "d"}
	if err := manager.Set(ctx, key, []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	key := Key{StatusQuery: "status:open", DeliveryDate: "d"}
	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Get(context.Background(), key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Set_Empty(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	if err := manager.Set(context.Background(), Key{}, nil); err == nil {
		t.Error("Set with empty data should fail")
	}
}

func TestManager_Invalidate(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key, err := manager.Key(ctx, "status:open", "d")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if err := manager.Set(ctx, key, []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	gen, err := manager.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if gen != 1 {
		t.Errorf("Invalidate() = %d, want 1", gen)
	}

	next, err := manager.Key(ctx, "status:open", "d")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if next.Generation != 1 {
		t.Errorf("Generation = %d, want 1", next.Generation)
	}
	if _, err := manager.Get(ctx, next); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Invalidate, got %v", err)
	}

	// The old key is unreachable through Key but still present until it expires.
	if _, err := manager.Get(ctx, key); err != nil {
		t.Errorf("old generation entry: %v", err)
	}
}

func TestManager_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	mr.Close()

	if _, err := manager.Key(ctx, "status:open", "d"); err == nil {
		t.Error("Key should fail with Redis down")
	}
	if _, err := manager.Invalidate(ctx); err == nil {
		t.Error("Invalidate should fail with Redis down")
	}
	if err := manager.Ping(ctx); err == nil {
		t.Error("Ping should fail with Redis down")
	}
}
