package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type record struct {
	Name string `json:"name"`
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	if err := mc.Set(ctx, "a", record{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got record
	if err := mc.Get(ctx, "a", &got); err != nil || got.Name != "x" {
		t.Fatalf("get: %v %+v", err, got)
	}

	now = now.Add(2 * time.Minute)
	if err := mc.Get(ctx, "a", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	now := time.Unix(1000, 0)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "engine", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "engine", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	if ok, _ := mc.Expire(ctx, "engine", time.Hour); !ok {
		t.Fatalf("expire on held lock should succeed")
	}
	now = now.Add(30 * time.Minute)
	if ok, _ := mc.TryLock(ctx, "engine", time.Minute); ok {
		t.Fatalf("extended lock should still be held")
	}
	_ = mc.Unlock(ctx, "engine")
	if ok, _ := mc.TryLock(ctx, "engine", time.Minute); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestMGetTyped(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()
	_ = mc.Set(ctx, "r:1", record{Name: "one"}, 0)
	_ = mc.Set(ctx, "r:2", "not json", 0)

	got, err := MGetTyped[record](ctx, mc, "r:1", "r:2", "r:3")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(got) != 1 || got["r:1"].Name != "one" {
		t.Fatalf("unexpected result %+v", got)
	}
	if Key("a", "b", "c") != "a:b:c" {
		t.Fatalf("unexpected key")
	}
}
