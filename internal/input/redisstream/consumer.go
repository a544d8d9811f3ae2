// Package redisstream consumes and produces events over a Redis Streams
// consumer group.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/pipeline"
)

// Config configures the Redis Streams transport.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	Group        string
	Consumer     string
	BlockTimeout time.Duration
	ClaimMinIdle time.Duration
	DLQStream    string
}

func (cfg *Config) applyDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Stream == "" {
		cfg.Stream = "secureops:events"
	}
	if cfg.Group == "" {
		cfg.Group = "secureops"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-" + uuid.NewString()[:8]
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = time.Minute
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + ":dlq"
	}
}

// Consumer reads a Redis stream through a consumer group. Unacked
// entries stay in the group's pending list and are reclaimed from dead
// consumers once they sit idle past ClaimMinIdle.
//
// Fetch is not safe for concurrent use; the pipeline calls it from a
// single reader.
type Consumer struct {
	client       *redis.Client
	stream       string
	group        string
	consumer     string
	blockTimeout time.Duration
	claimMinIdle time.Duration
	dlqStream    string

	claimCursor string
	lastClaim   time.Time
}

// NewConsumer connects to Redis and joins (or creates) the group.
func NewConsumer(cfg Config) (*Consumer, error) {
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

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		client:       client,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		blockTimeout: cfg.BlockTimeout,
		claimMinIdle: cfg.ClaimMinIdle,
		dlqStream:    cfg.DLQStream,
		claimCursor:  "0-0",
	}, nil
}

// Fetch returns up to max deliveries, blocking up to the configured
// timeout when the stream is empty. An empty result without error is a
// normal idle poll.
func (c *Consumer) Fetch(ctx context.Context, max int) ([]pipeline.Delivery, error) {
	if max <= 0 {
		max = 1
	}

	if stale := c.reclaim(ctx, max); len(stale) > 0 {
		return stale, nil
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    int64(max),
		Block:    c.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	var out []pipeline.Delivery
	for _, s := range streams {
		out = append(out, deliveriesFrom(s.Messages)...)
	}
	return out, nil
}

// reclaim periodically adopts pending entries whose consumer went away.
func (c *Consumer) reclaim(ctx context.Context, max int) []pipeline.Delivery {
	if time.Since(c.lastClaim) < c.claimMinIdle {
		return nil
	}
	c.lastClaim = time.Now()

	msgs, cursor, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimMinIdle,
		Start:    c.claimCursor,
		Count:    int64(max),
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Warnf("Failed to reclaim pending entries: %v", err)
		}
		return nil
	}
	c.claimCursor = cursor

	if len(msgs) > 0 {
		logger.Infof("Reclaimed %d stale deliveries from group %s", len(msgs), c.group)
	}
	return deliveriesFrom(msgs)
}

// Ack removes the entries from the pending list.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.client.XAck(ctx, c.stream, c.group, ids...).Err()
}

// Park moves the payload to the dead-letter stream and acks the source
// entry. The original delivery ID and reason ride along for replay.
func (c *Consumer) Park(ctx context.Context, d pipeline.Delivery, reason string) error {
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.dlqStream,
		Values: map[string]interface{}{
			"payload":   string(d.Payload),
			"reason":    reason,
			"source_id": d.ID,
			"parked_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("park to %s: %w", c.dlqStream, err)
	}
	return c.Ack(ctx, d.ID)
}

// Close closes the Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}

func deliveriesFrom(msgs []redis.XMessage) []pipeline.Delivery {
	out := make([]pipeline.Delivery, 0, len(msgs))
	for _, m := range msgs {
		var payload []byte
		if v, ok := m.Values["payload"]; ok {
			if s, ok := v.(string); ok {
				payload = []byte(s)
			}
		}
		// Entries without a payload field flow through processing and
		// get rejected there, which lands them in the DLQ with a reason.
		out = append(out, pipeline.Delivery{ID: m.ID, Payload: payload})
	}
	return out
}
