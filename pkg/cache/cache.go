package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache: key not found")
	ErrLockNotHeld = errors.New("cache: lock not held by token")
)

// Store is the small key/value surface the sync job needs: a TTL lock shared
// between replicas and a place to keep the last run report.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	// TryLock acquires key for ttl on behalf of token. It reports false when
	// the key is held.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Unlock releases key only while token still holds it and returns
	// ErrLockNotHeld otherwise.
	Unlock(ctx context.Context, key, token string) error
	Ping(ctx context.Context) error
	Close() error
}
