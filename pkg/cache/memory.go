package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memItem struct {
	data     []byte
	expireAt time.Time // zero means no expiry
}

func (m memItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache is an in-process Service. Values are stored JSON encoded so
// reads decode exactly as they would from Redis. Expired entries are dropped
// lazily on access.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (mc *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return mc.now().Add(ttl)
}

// lookup must be called with mu held.
func (mc *MemoryCache) lookup(key string) (memItem, bool) {
	it, ok := mc.items[key]
	if !ok {
		return memItem{}, false
	}
	if it.expired(mc.now()) {
		delete(mc.items, key)
		return memItem{}, false
	}
	return it, true
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	mc.items[key] = memItem{data: data, expireAt: mc.expiry(expiration)}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	it, ok := mc.lookup(key)
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return decode(it.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.items, k)
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if it, ok := mc.lookup(k); ok {
			out[k] = string(it.data)
		}
	}
	return out, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, held := mc.lookup(key); held {
		return false, nil
	}
	mc.items[key] = memItem{data: []byte(lockValue), expireAt: mc.expiry(ttl)}
	return true, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	it, ok := mc.lookup(key)
	if !ok {
		return false, nil
	}
	it.expireAt = mc.expiry(ttl)
	mc.items[key] = it
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Close is a no-op kept for symmetry with RedisCache.
func (mc *MemoryCache) Close() error { return nil }

const lockValue = "locked"

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = string(data)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}

var _ Service = (*MemoryCache)(nil)
