package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Producer appends events to the stream consumed by the pipeline.
type Producer struct {
	client *redis.Client
	stream string
}

// NewProducer connects to Redis and verifies the connection.
func NewProducer(cfg Config) (*Producer, error) {
	cfg.applyDefaults()

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

	return &Producer{client: client, stream: cfg.Stream}, nil
}

// Produce appends one event to the stream.
func (p *Producer) Produce(ctx context.Context, event *models.SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"payload": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append to %s: %w", p.stream, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}
