// Package cache holds read-through values for the stores, backed by Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is what the stores read through. Implementations must be safe for concurrent
// use.
type Cache interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl; ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ErrMiss reports a cache miss, distinct from transport errors.
var ErrMiss = errors.New("cache: miss")
