// Package redis stores the upload cache in a Redis sorted set scored by
// insertion time in milliseconds.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-extractor/config"
	"github.com/feichai0017/document-extractor/internal/cache"
)

type Cache struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// New wraps client; entries live in the sorted set named key.
func New(client *redis.Client, key string) *Cache {
	return &Cache{client: client, key: key, now: time.Now}
}

// NewFromConfig connects using the shared Redis settings and checks the
// connection.
func NewFromConfig(ctx context.Context, cfg *config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, cfg.CacheKey), nil
}

func (c *Cache) Set(ctx context.Context, key string) (bool, error) {
	n, err := c.client.ZAddNX(ctx, c.key, redis.Z{
		Score:  float64(c.now().UnixMilli()),
		Member: key,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set cache entry: %w", err)
	}
	return n == 1, nil
}

func (c *Cache) Get(ctx context.Context, key string) (time.Time, error) {
	score, err := c.client.ZScore(ctx, c.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return time.UnixMilli(int64(score)), nil
}

func (c *Cache) Oldest(ctx context.Context, i int) (string, error) {
	if i < 0 {
		return "", fmt.Errorf("%w: index %d", cache.ErrNotFound, i)
	}
	keys, err := c.client.ZRange(ctx, c.key, int64(i), int64(i)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read oldest entry: %w", err)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: index %d", cache.ErrNotFound, i)
	}
	return keys[0], nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.ZRem(ctx, c.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return n == 1, nil
}

func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.client.ZRange(ctx, c.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return keys, nil
}

func (c *Cache) Len(ctx context.Context) (int, error) {
	n, err := c.client.ZCard(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return int(n), nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
