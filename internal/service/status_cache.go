package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache keeps recent gateway status payloads so frontends polling the
// same order do not each cost a Daraja query.
type StatusCache interface {
	Get(ctx context.Context, checkoutRequestID string) (json.RawMessage, bool, error)
	Set(ctx context.Context, checkoutRequestID string, payload json.RawMessage) error
}

type redisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStatusCache returns nil when rdb is nil so callers can skip caching.
func NewRedisStatusCache(rdb *redis.Client, ttl time.Duration) StatusCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisStatusCache{rdb: rdb, ttl: ttl}
}

func statusCacheKey(checkoutRequestID string) string {
	return "mpesa:stkquery:" + checkoutRequestID
}

func (c *redisStatusCache) Get(ctx context.Context, checkoutRequestID string) (json.RawMessage, bool, error) {
	data, err := c.rdb.Get(ctx, statusCacheKey(checkoutRequestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

func (c *redisStatusCache) Set(ctx context.Context, checkoutRequestID string, payload json.RawMessage) error {
	return c.rdb.Set(ctx, statusCacheKey(checkoutRequestID), []byte(payload), c.ttl).Err()
}
