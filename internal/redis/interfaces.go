package redis

import (
	"context"
	"time"
)

// ResponseCacheInterface defines idempotent response storage.
type ResponseCacheInterface interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, response *CachedResponse) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Ensure concrete types implement interfaces.
var (
	_ ResponseCacheInterface = (*ResponseCache)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
