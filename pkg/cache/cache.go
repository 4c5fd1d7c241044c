// Package cache provides a small key/value and lock abstraction with Redis
// and in-process implementations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Store is a JSON-valued key/value cache.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
}

// Locker is a lease style mutual exclusion primitive. A lock is owned by the
// instance that took it; Unlock and Expire on a foreign lock are no-ops.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Service interface {
	Store
	Locker
}

// Key joins parts with ':'.
func Key(parts ...string) string { return strings.Join(parts, ":") }

// MGetTyped fetches keys and decodes each hit into T. Entries that fail to
// decode are skipped.
func MGetTyped[T any](ctx context.Context, c Store, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for k, v := range raw {
		var obj T
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			continue
		}
		out[k] = obj
	}
	return out, nil
}
