package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Raghu-Nath97/secureops360/internal/alerts"
	"github.com/Raghu-Nath97/secureops360/internal/results"
	"github.com/Raghu-Nath97/secureops360/internal/scoring"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

type parkedDelivery struct {
	delivery Delivery
	reason   string
}

// fakeConsumer is an in-memory transport with at-least-once semantics.
type fakeConsumer struct {
	mu      sync.Mutex
	pending []Delivery
	acked   map[string]int
	parked  []parkedDelivery
	closed  bool
}

func newFakeConsumer(deliveries ...Delivery) *fakeConsumer {
	return &fakeConsumer{pending: deliveries, acked: make(map[string]int)}
}

func (c *fakeConsumer) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			n := max
			if n > len(c.pending) {
				n = len(c.pending)
			}
			batch := make([]Delivery, n)
			copy(batch, c.pending[:n])
			c.pending = c.pending[n:]
			c.mu.Unlock()
			return batch, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *fakeConsumer) Ack(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.acked[id]++
	}
	return nil
}

func (c *fakeConsumer) Park(ctx context.Context, d Delivery, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parked = append(c.parked, parkedDelivery{delivery: d, reason: reason})
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) settled() (acked, parked int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked), len(c.parked)
}

type alertSink struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (s *alertSink) WriteAlerts(batch []*models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, batch...)
	return nil
}

func (s *alertSink) Close() error { return nil }

func (s *alertSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type metricsSink struct {
	mu      sync.Mutex
	batches [][]models.ModelMetrics
}

func (s *metricsSink) WriteMetrics(batch []models.ModelMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *metricsSink) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPipelineSettlesEveryDeliveryExactlyOnce(t *testing.T) {
	store := results.NewMemoryStore()
	consumer := newFakeConsumer(
		Delivery{ID: "m1", Payload: eventPayload(t, "evt-1")},
		Delivery{ID: "m2", Payload: []byte("{not json")},
		Delivery{ID: "m3", Payload: eventPayload(t, "evt-1")},
	)
	sink := &alertSink{}

	p := New(Config{
		Consumer:    consumer,
		Processor:   newTestProcessor(t, store, scoring.NewBuiltinModel()),
		Workers:     2,
		Alerts:      alerts.NewDispatcher(sink, nil, alerts.DispatcherConfig{BatchSize: 1, FlushInterval: 10 * time.Millisecond}),
		AlertCutoff: models.TierMedium,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		acked, parked := consumer.settled()
		return acked == 2 && parked == 1
	}, "all deliveries to settle")
	cancel()
	<-done

	_, ok, err := store.Get(context.Background(), "acme/evt-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, consumer.parked, 1)
	require.Equal(t, "m2", consumer.parked[0].delivery.ID)
	require.NotEmpty(t, consumer.parked[0].reason)

	// The redelivery recomputes or short-circuits, but only the fresh
	// store may alert.
	require.Equal(t, 1, sink.count())
	require.Equal(t, "acme/evt-1", sink.alerts[0].TenantEventID)
}

func TestPipelineProcessesConcurrentlyAndStopsCleanly(t *testing.T) {
	store := results.NewMemoryStore()

	deliveries := make([]Delivery, 0, 6)
	for _, id := range []string{"evt-1", "evt-2", "evt-3", "evt-4", "evt-5", "evt-6"} {
		deliveries = append(deliveries, Delivery{ID: "m-" + id, Payload: eventPayload(t, id)})
	}
	consumer := newFakeConsumer(deliveries...)

	p := New(Config{
		Consumer:  consumer,
		Processor: newTestProcessor(t, store, scoring.NewBuiltinModel()),
		Workers:   2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		acked, _ := consumer.settled()
		return acked == len(deliveries)
	}, "the queue to drain")
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}

	for _, id := range []string{"evt-1", "evt-6"} {
		_, ok, err := store.Get(context.Background(), "acme/"+id)
		require.NoError(t, err)
		require.True(t, ok, "missing score for %s", id)
	}
}

func TestPipelineFlushesModelMetricsOnShutdown(t *testing.T) {
	recorder := scoring.NewRecorder(time.Hour)
	recorder.RecordSuccess("1.0.0", 40*time.Millisecond, 0.8)

	sink := &metricsSink{}
	p := New(Config{
		Consumer:             newFakeConsumer(),
		Processor:            newTestProcessor(t, results.NewMemoryStore(), scoring.NewBuiltinModel()),
		Workers:              1,
		Recorder:             recorder,
		MetricsWriter:        sink,
		MetricsFlushInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 1)
	require.Equal(t, "1.0.0", sink.batches[0][0].ModelVersion)
	require.EqualValues(t, 1, sink.batches[0][0].Invocations)
}
