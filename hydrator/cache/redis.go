package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on top of Redis, so a hydration pass
// running in more than one process can share cached vocabulary term
// maps instead of re-parsing the same CAPSULE file repeatedly.
type RedisCache struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis connection details plus the common Config.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Config   Config
}

// DefaultRedisConfig returns a RedisConfig pointed at a local Redis
// instance with the cache's default TTL/prefix.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Config: DefaultConfig(),
	}
}

// NewRedisCache dials Redis using DefaultRedisConfig.
func NewRedisCache() (*RedisCache, error) {
	return NewRedisCacheWithConfig(DefaultRedisConfig())
}

// NewRedisCacheWithConfig dials Redis using the given config and
// verifies connectivity with a bounded Ping before returning.
func NewRedisCacheWithConfig(config RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, config: config.Config}, nil
}

// NewRedisCacheWithClient wraps an already-constructed client, the
// path test code and long-lived servers use to share one connection
// pool across several caches.
func NewRedisCacheWithClient(client *redis.Client, config Config) *RedisCache {
	return &RedisCache{client: client, config: config}
}

func (r *RedisCache) Get(ctx context.Context, hash string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.config.Prefix+hash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{Hash: hash}
		}
		return nil, err
	}
	return value, nil
}

func (r *RedisCache) Set(ctx context.Context, hash string, terms []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	return r.client.Set(ctx, r.config.Prefix+hash, terms, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, hash string) error {
	return r.client.Del(ctx, r.config.Prefix+hash).Err()
}

func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
