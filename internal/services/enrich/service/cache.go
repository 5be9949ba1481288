package service

import (
	"context"
	"encoding/json"
	"time"

	"devlog/internal/platform/store"
)

// cachedCall is the single get-or-compute-and-store shape every stage
// uses. The cache is advisory: a nil KV or any cache error degrades to
// computing, never to failing the call
type cachedCall[T any] struct {
	kv  store.KV
	ttl time.Duration // 0 means no expiry
}

// do returns the cached value for key, or computes, stores and returns
// a fresh one. The bool reports a cache hit
func (c cachedCall[T]) do(ctx context.Context, key string, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	if c.kv != nil {
		raw, ok, err := c.kv.Get(ctx, key)
		if err == nil && ok {
			var v T
			if json.Unmarshal(raw, &v) == nil {
				return v, true, nil
			}
			// unreadable entry; evict and recompute
			_ = c.kv.Del(ctx, key)
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, false, err
	}

	if c.kv != nil {
		if raw, err := json.Marshal(v); err == nil {
			_ = c.kv.Set(ctx, key, raw, c.ttl)
		}
	}
	return v, false, nil
}
