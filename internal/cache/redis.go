package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

const keyPrefix = "graphapi:"

// RedisCache stores entries in redis under a fixed prefix.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, appErr.Wrap(err, appErr.CodeUnavailable, "redis get failed")
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "redis set failed")
	}
	return nil
}

func (c *RedisCache) SetNX(ctx context.Context, key string, data []byte, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, keyPrefix+key, data, ttl).Result()
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeUnavailable, "redis setnx failed")
	}
	return ok, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "redis del failed")
	}
	return nil
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

var _ Cache = (*RedisCache)(nil)
