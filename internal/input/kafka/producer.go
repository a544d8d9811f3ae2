package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Producer publishes events to the pipeline topic. The partition key
// groups one actor's events from one source onto one partition, which
// keeps their relative order.
type Producer struct {
	writer  *kafkago.Writer
	brokers []string
}

// NewProducer creates a Kafka producer.
func NewProducer(cfg Config) (*Producer, error) {
	cfg.applyDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Producer{writer: writer, brokers: cfg.Brokers}, nil
}

// Produce publishes one event keyed by its partition key.
func (p *Producer) Produce(ctx context.Context, event *models.SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.PartitionKey()),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Ping dials the first broker to verify reachability. The writer has
// no standing connection to probe.
func (p *Producer) Ping(ctx context.Context) error {
	conn, err := kafkago.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.brokers[0], err)
	}
	return conn.Close()
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
