package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Backend is the storage facade behind the enrichment caches. Entries
// carry their own expiry, so backends only bound residency.
type Backend[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, val T) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryBackend keeps entries in a bounded LRU.
type MemoryBackend[T any] struct {
	cache *lru.Cache[string, T]
}

// NewMemoryBackend creates an in-process backend holding up to size entries.
func NewMemoryBackend[T any](size int) (*MemoryBackend[T], error) {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, T](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemoryBackend[T]{cache: cache}, nil
}

// Get returns the cached entry if present.
func (b *MemoryBackend[T]) Get(ctx context.Context, key string) (T, bool, error) {
	val, ok := b.cache.Get(key)
	return val, ok, nil
}

// Set stores the entry, evicting the least recently used on overflow.
func (b *MemoryBackend[T]) Set(ctx context.Context, key string, val T) error {
	b.cache.Add(key, val)
	return nil
}

// Delete removes the entry if present.
func (b *MemoryBackend[T]) Delete(ctx context.Context, key string) error {
	b.cache.Remove(key)
	return nil
}

// Close is a no-op for the memory backend.
func (b *MemoryBackend[T]) Close() error { return nil }

// RedisBackendConfig configures a shared redis cache backend.
type RedisBackendConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Residency time.Duration
}

// RedisBackend shares cache entries across workers through redis.
// Residency outlives the entry TTL so expired entries stay reachable
// for degraded stale serving.
type RedisBackend[T any] struct {
	client    *redis.Client
	prefix    string
	residency time.Duration
}

// NewRedisBackend connects to redis and verifies the connection.
func NewRedisBackend[T any](cfg RedisBackendConfig) (*RedisBackend[T], error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis backend address is empty")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "secureops:cache"
	}
	if cfg.Residency <= 0 {
		cfg.Residency = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend[T]{
		client:    client,
		prefix:    cfg.KeyPrefix,
		residency: cfg.Residency,
	}, nil
}

func (b *RedisBackend[T]) buildKey(key string) string {
	return b.prefix + ":" + key
}

// Get returns the cached entry if present.
func (b *RedisBackend[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var val T
	data, err := b.client.Get(ctx, b.buildKey(key)).Bytes()
	if err == redis.Nil {
		return val, false, nil
	}
	if err != nil {
		return val, false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, &val); err != nil {
		return val, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return val, true, nil
}

// Set stores the entry for the configured residency window.
func (b *RedisBackend[T]) Set(ctx context.Context, key string, val T) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := b.client.Set(ctx, b.buildKey(key), data, b.residency).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the entry if present.
func (b *RedisBackend[T]) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (b *RedisBackend[T]) Close() error {
	return b.client.Close()
}
