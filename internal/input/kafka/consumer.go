// Package kafka consumes and produces events over Kafka consumer
// groups.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/pipeline"
)

// Config configures the Kafka transport.
type Config struct {
	Brokers  []string
	Topic    string
	Group    string
	DLQTopic string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

func (cfg *Config) applyDefaults() {
	if cfg.Topic == "" {
		cfg.Topic = "secureops.events"
	}
	if cfg.Group == "" {
		cfg.Group = "secureops"
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = cfg.Topic + ".dlq"
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
}

// partitionState tracks uncommitted fetches for one partition in fetch
// order, so out-of-order worker acks commit only up to the lowest
// still-outstanding offset.
type partitionState struct {
	queue []int64
	msgs  map[int64]kafkago.Message
	done  map[int64]bool
}

func newPartitionState() *partitionState {
	return &partitionState{
		msgs: make(map[int64]kafkago.Message),
		done: make(map[int64]bool),
	}
}

func (p *partitionState) track(msg kafkago.Message) {
	p.queue = append(p.queue, msg.Offset)
	p.msgs[msg.Offset] = msg
}

// ack marks one offset done and pops every leading done entry,
// returning the newest message safe to commit.
func (p *partitionState) ack(offset int64) (last kafkago.Message, ok bool) {
	p.done[offset] = true
	for len(p.queue) > 0 && p.done[p.queue[0]] {
		head := p.queue[0]
		last = p.msgs[head]
		ok = true
		p.queue = p.queue[1:]
		delete(p.msgs, head)
		delete(p.done, head)
	}
	return last, ok
}

// Consumer reads a topic through a consumer group. Kafka commits are
// positional, not per-message: committing an offset implicitly commits
// everything below it on that partition. Acks are therefore buffered
// and committed contiguously.
type Consumer struct {
	reader *kafkago.Reader
	dlq    *kafkago.Writer

	mu         sync.Mutex
	partitions map[int]*partitionState
}

// NewConsumer creates a Kafka consumer group reader.
func NewConsumer(cfg Config) (*Consumer, error) {
	cfg.applyDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.Group,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafkago.FirstOffset,
	})

	dlq := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    cfg.DLQTopic,
		Balancer: &kafkago.LeastBytes{},
	}

	return &Consumer{
		reader:     reader,
		dlq:        dlq,
		partitions: make(map[int]*partitionState),
	}, nil
}

// Fetch returns the next delivery. The reader prefetches internally, so
// one message per call keeps up without an extra batching layer.
func (c *Consumer) Fetch(ctx context.Context, max int) ([]pipeline.Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	p, ok := c.partitions[msg.Partition]
	if !ok {
		p = newPartitionState()
		c.partitions[msg.Partition] = p
	}
	p.track(msg)
	c.mu.Unlock()

	return []pipeline.Delivery{{ID: deliveryID(msg), Payload: msg.Value}}, nil
}

// Ack marks deliveries done and commits up to the contiguous watermark.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	var commits []kafkago.Message

	c.mu.Lock()
	for _, id := range ids {
		partition, offset, err := parseDeliveryID(id)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		p, ok := c.partitions[partition]
		if !ok {
			continue
		}
		if last, advanced := p.ack(offset); advanced {
			commits = append(commits, last)
		}
	}
	c.mu.Unlock()

	if len(commits) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, commits...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	return nil
}

// Park writes the payload to the dead-letter topic with the failure
// context in headers, then acks the source delivery.
func (c *Consumer) Park(ctx context.Context, d pipeline.Delivery, reason string) error {
	partition, offset, err := parseDeliveryID(d.ID)
	if err != nil {
		return err
	}

	err = c.dlq.WriteMessages(ctx, kafkago.Message{
		Value: d.Payload,
		Headers: []kafkago.Header{
			{Key: "reason", Value: []byte(reason)},
			{Key: "source_topic", Value: []byte(c.reader.Config().Topic)},
			{Key: "source_partition", Value: []byte(strconv.Itoa(partition))},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(offset, 10))},
			{Key: "parked_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	})
	if err != nil {
		return fmt.Errorf("park to %s: %w", c.dlq.Topic, err)
	}
	return c.Ack(ctx, d.ID)
}

// Close closes the reader and the dead-letter writer.
func (c *Consumer) Close() error {
	if err := c.dlq.Close(); err != nil {
		logger.Errorf("Failed to close dead-letter writer: %v", err)
	}
	return c.reader.Close()
}

func deliveryID(msg kafkago.Message) string {
	return strconv.Itoa(msg.Partition) + "@" + strconv.FormatInt(msg.Offset, 10)
}

func parseDeliveryID(id string) (partition int, offset int64, err error) {
	p, o, ok := strings.Cut(id, "@")
	if !ok {
		return 0, 0, fmt.Errorf("malformed delivery id %q", id)
	}
	partition, err = strconv.Atoi(p)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed delivery id %q", id)
	}
	offset, err = strconv.ParseInt(o, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed delivery id %q", id)
	}
	return partition, offset, nil
}
