package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProductCache provides fast campaign lookups for read endpoints.
type ProductCache interface {
	Set(ctx context.Context, p Product) error
	Get(ctx context.Context, addr common.Address) (Product, error)
	Invalidate(ctx context.Context, addr common.Address) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ReplayGuard remembers keys for a bounded time. Claim reports false when
// key was already claimed and has not expired.
type ReplayGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LockManager provides mutual exclusion keyed by string. Acquire blocks
// until the lock is held or ctx ends. The lock expires after ttl if the
// holder never releases it.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
