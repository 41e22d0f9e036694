package config

import (
	"sync"
	"time"
)

var (
	redisOnce   sync.Once
	redisConfig *RedisConfig
)

// RedisConfig covers the task queue, the task status store and the
// timestamp cache, which all share one Redis deployment.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// CacheKey is the sorted set holding upload timestamps.
	CacheKey string
	// CacheMaxEntries bounds the cache; the oldest entry is evicted beyond it.
	CacheMaxEntries int
	StatusTTL       time.Duration
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()
		redisConfig = &RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvInt("REDIS_DB", 0),
			CacheKey:        getEnv("REDIS_CACHE_KEY", "documents:timestamps"),
			CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
			StatusTTL:       getEnvDuration("TASK_STATUS_TTL", 24*time.Hour),
		}
	})
	return redisConfig
}
