package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// RedisConfig configures the shared redis result store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Retention time.Duration
}

// RedisStore persists records in redis with retention handled by key
// expiry. The conditional put is a SET NX.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration

	now func() time.Time
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis store address is empty")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "secureops:scores"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
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

	return &RedisStore{
		client:    client,
		prefix:    cfg.KeyPrefix,
		retention: cfg.Retention,
		now:       time.Now,
	}, nil
}

func (s *RedisStore) buildKey(tenantEventID string) string {
	return s.prefix + ":" + tenantEventID
}

func (s *RedisStore) ttlFor(score *models.RiskScore) time.Duration {
	if score.ExpiresAt.IsZero() {
		return s.retention
	}
	ttl := score.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.retention
	}
	return ttl
}

// Put writes the record with SET NX. A failed set reads the holder and
// classifies the clash by comparing the scoring outcome.
func (s *RedisStore) Put(ctx context.Context, score *models.RiskScore) (PutOutcome, *models.RiskScore, error) {
	data, err := json.Marshal(score)
	if err != nil {
		return Conflict, nil, fmt.Errorf("encode risk score: %w", err)
	}
	key := s.buildKey(score.TenantEventID)

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, key, data, s.ttlFor(score)).Result()
		if err != nil {
			return Conflict, nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return Stored, nil, nil
		}

		existing, found, err := s.Get(ctx, score.TenantEventID)
		if err != nil {
			return Conflict, nil, err
		}
		if !found {
			// The holder expired between the set and the read.
			continue
		}
		if existing.Same(score) {
			return Identical, existing, nil
		}
		return Conflict, existing, nil
	}
	return Conflict, nil, fmt.Errorf("redis put raced expiry for %s", score.TenantEventID)
}

// Get returns the stored record for the key.
func (s *RedisStore) Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error) {
	data, err := s.client.Get(ctx, s.buildKey(tenantEventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var score models.RiskScore
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, false, fmt.Errorf("decode risk score: %w", err)
	}
	return &score, true, nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
