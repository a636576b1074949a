package redisx

import (
	"context"
	"errors"
	"github.com/redis/go-redis/v9"
	"time"
)

// Cache adapts a redis client to cache.Store.
type Cache struct{ Client *redis.Client }

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}
