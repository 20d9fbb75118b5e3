package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/melonripe/internal/backend/inference"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache does not connect; the first command does. A zero TTL keeps entries forever.
func NewRedisCache(options Options) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     options.Address,
			Password: options.Password,
			DB:       options.DB,
		}),
		ttl: options.TTL,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*inference.Prediction, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var prediction inference.Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, false, fmt.Errorf("decoding cached prediction %s: %w", key, err)
	}
	return &prediction, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, prediction inference.Prediction) error {
	raw, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("encoding prediction: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
