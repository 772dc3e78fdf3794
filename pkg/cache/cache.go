// Package cache provides a small key/value cache contract with Redis and in-process backends.
package cache

import (
	"context"
	"time"
)

// Store is a string-valued cache with per-entry expiry.
type Store interface {
	// Get returns the value and true on a hit; a miss is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Remember returns the cached value for key, or computes, stores and returns it on a miss.
// A failing cache degrades to calling compute; only compute errors are returned, and nothing is cached then.
func Remember(ctx context.Context, s Store, key string, ttl time.Duration, compute func(context.Context) (string, error)) (string, error) {
	if v, ok, err := s.Get(ctx, key); err == nil && ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return "", err
	}
	_ = s.Put(ctx, key, v, ttl)
	return v, nil
}
