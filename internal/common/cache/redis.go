package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"vibe-workers/internal/common/config"
	"vibe-workers/internal/common/logger"
)

// opTimeout bounds every store round trip so a slow redis cannot stall a
// request that would otherwise be served by the model.
const opTimeout = 500 * time.Millisecond

// NewRedisClient builds the go-redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

type RedisCache struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisCache(client *redis.Client, log logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisCache{
		client: client,
		log:    log.WithFields(map[string]interface{}{"component": "cache"}),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.fetch(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed, treating as miss", map[string]interface{}{"key": key, "error": err})
		return nil, false
	}
	return val, val != nil
}

// fetch returns (nil, nil) on a miss.
func (c *RedisCache) fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &CacheUnavailableError{Op: "get", Key: key, Err: err}
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.store(ctx, key, value, ttl); err != nil {
		c.log.Warn("cache write failed, skipping", map[string]interface{}{"key": key, "error": err})
	}
}

func (c *RedisCache) store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &CacheUnavailableError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c *RedisCache) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}

func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
