package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores raw backend JSON payloads by request key.
type ResponseCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, payload json.RawMessage) error
	Close() error
}

type redisResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisResponseCache(addr, password string, db int, ttl time.Duration, prefix string) (ResponseCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "probchart"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisResponseCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisResponseCache) key(k string) string {
	return fmt.Sprintf("%s:api:%s", c.prefix, k)
}

func (c *redisResponseCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(val), true, nil
}

func (c *redisResponseCache) Set(ctx context.Context, key string, payload json.RawMessage) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.key(key), []byte(payload), c.ttl).Err()
}

func (c *redisResponseCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Fetch returns the cached payload for key, or calls load and caches its
// result. Cache failures fall through to load; a nil cache always loads.
func Fetch(ctx context.Context, c ResponseCache, key string, load func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if c != nil {
		if payload, ok, err := c.Get(ctx, key); err == nil && ok {
			return payload, nil
		}
	}

	payload, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if c != nil {
		_ = c.Set(ctx, key, payload)
	}
	return payload, nil
}
