package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// DefaultProductTTL bounds how stale a cached campaign may be.
const DefaultProductTTL = 5 * time.Minute

// ProductCache implements domain.ProductCache with JSON strings.
//
// Key schema:
//
//	product:{address} - JSON-encoded domain.Product
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProductCache creates a ProductCache. A non-positive ttl uses DefaultProductTTL.
func NewProductCache(c *Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductCache{rdb: c.Underlying(), ttl: ttl}
}

func productKey(addr common.Address) string { return "product:" + addr.Hex() }

// Set stores p until the TTL elapses.
func (pc *ProductCache) Set(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal product %s: %w", p.Address.Hex(), err)
	}
	if err := pc.rdb.Set(ctx, productKey(p.Address), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set product %s: %w", p.Address.Hex(), err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a cache miss.
func (pc *ProductCache) Get(ctx context.Context, addr common.Address) (domain.Product, error) {
	data, err := pc.rdb.Get(ctx, productKey(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("redis: get product %s: %w", addr.Hex(), err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Product{}, fmt.Errorf("redis: unmarshal product %s: %w", addr.Hex(), err)
	}
	return p, nil
}

// Invalidate drops the cached entry for addr.
func (pc *ProductCache) Invalidate(ctx context.Context, addr common.Address) error {
	if err := pc.rdb.Del(ctx, productKey(addr)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate product %s: %w", addr.Hex(), err)
	}
	return nil
}

var _ domain.ProductCache = (*ProductCache)(nil)
