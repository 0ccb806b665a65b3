package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache builds a cache with the given addr/password/db. A zero ttl
// keeps entries forever; a positive one bounds storage at the cost of one
// re-extraction per expired key.
func NewRedisCache(addr, password string, db int, ttl time.Duration, prefix string) (Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl < 0 {
		ttl = 0
	}
	if prefix == "" {
		prefix = "extract"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *redisCache) Lookup(ctx context.Context, key string) (Result, error) {
	if c == nil || c.client == nil {
		return Result{}, ErrCacheMiss
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return Result{}, ErrCacheMiss
	}
	if err != nil {
		return Result{}, err
	}
	return decodeEntry(key, data)
}

func (c *redisCache) Store(ctx context.Context, key string, result Result) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *redisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
