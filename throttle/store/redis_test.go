package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func setupRedisTest(t *testing.T) *Redis {
	t.Helper()

	store, err := NewRedis(RedisConfig{
		URL:    "localhost:6379",
		DB:     15,
		Prefix: "test:throttle:",
	})
	if err != nil {
		t.Skip("Redis not available:", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		iter := store.client.Scan(ctx, 0, store.prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			store.client.Del(ctx, iter.Val())
		}
		store.Close()
	})

	return store
}

func TestRedisTake(t *testing.T) {
	store := setupRedisTest(t)
	ctx := context.Background()

	key := fmt.Sprintf("take-%d", time.Now().UnixNano())

	for i, wantRemaining := range []int64{2, 1, 0} {
		res, err := store.Take(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("take %d: unexpected error: %v", i+1, err)
		}
		if !res.Allowed {
			t.Errorf("take %d: expected allowed", i+1)
		}
		if res.Remaining != wantRemaining {
			t.Errorf("take %d: expected remaining %d, got %d", i+1, wantRemaining, res.Remaining)
		}
	}

	res, err := store.Take(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("take 4: unexpected error: %v", err)
	}
	if res.Allowed {
		t.Error("take 4: expected rejection")
	}
	if res.Remaining != 0 {
		t.Errorf("take 4: expected remaining 0, got %d", res.Remaining)
	}
}

func TestRedisTake_WindowExpiry(t *testing.T) {
	store := setupRedisTest(t)
	ctx := context.Background()

	key := fmt.Sprintf("expiry-%d", time.Now().UnixNano())

	store.Take(ctx, key, 1, 100*time.Millisecond)
	res, _ := store.Take(ctx, key, 1, 100*time.Millisecond)
	if res.Allowed {
		t.Error("expected second take to be rejected")
	}

	time.Sleep(150 * time.Millisecond)

	res, err := store.Take(ctx, key, 1, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("expected fresh window to admit after expiry")
	}
}

func TestRedisGetAndReset(t *testing.T) {
	store := setupRedisTest(t)
	ctx := context.Background()

	key := fmt.Sprintf("getreset-%d", time.Now().UnixNano())

	count, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for missing key, got %d", count)
	}

	store.Take(ctx, key, 10, time.Minute)
	store.Take(ctx, key, 10, time.Minute)

	count, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}

	if err := store.Reset(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, _ = store.Get(ctx, key)
	if count != 0 {
		t.Errorf("expected 0 after reset, got %d", count)
	}
}
