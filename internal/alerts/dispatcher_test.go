package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

type captureWriter struct {
	mu       sync.Mutex
	batches  [][]*models.Alert
	failures int
}

func (w *captureWriter) WriteAlerts(batch []*models.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("sink unavailable")
	}
	cp := make([]*models.Alert, len(batch))
	copy(cp, batch)
	w.batches = append(w.batches, cp)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func (w *captureWriter) delivered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, b := range w.batches {
		total += len(b)
	}
	return total
}

func (w *captureWriter) batchSizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes := make([]int, 0, len(w.batches))
	for _, b := range w.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func testAlert(actor, tier string) *models.Alert {
	return &models.Alert{
		AlertID:       "a-" + actor,
		TenantEventID: "acme/evt-" + actor,
		SeverityTier:  models.SeverityTier(tier),
		RiskFinal:     91,
		Actor:         models.Actor{ID: actor},
		TS:            time.Now().UTC(),
	}
}

func runDispatcher(d *Dispatcher, in chan *models.Alert) chan struct{} {
	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), in)
		close(done)
	}()
	return done
}

func TestDispatcherFlushesFullBatchesInOrder(t *testing.T) {
	writer := &captureWriter{}
	d := NewDispatcher(writer, nil, DispatcherConfig{BatchSize: 2, FlushInterval: time.Hour})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)

	for _, name := range []string{"alice", "bob", "carol"} {
		in <- testAlert(name, "High")
	}
	close(in)
	<-done

	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Fatalf("expected batches [2 1], got %v", sizes)
	}
}

func TestDispatcherFlushesOnInterval(t *testing.T) {
	writer := &captureWriter{}
	d := NewDispatcher(writer, nil, DispatcherConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)
	in <- testAlert("alice", "High")

	deadline := time.Now().Add(2 * time.Second)
	for writer.delivered() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("alert never flushed by the interval ticker")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(in)
	<-done
}

func TestDispatcherRetriesTransientWriteFailures(t *testing.T) {
	writer := &captureWriter{failures: 1}
	d := NewDispatcher(writer, nil, DispatcherConfig{
		BatchSize: 1, FlushInterval: time.Hour, Attempts: 3, Backoff: time.Millisecond,
	})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)
	in <- testAlert("alice", "High")
	close(in)
	<-done

	if got := writer.delivered(); got != 1 {
		t.Fatalf("expected the batch to land on retry, delivered=%d", got)
	}
}

func TestDispatcherParksBatchAfterExhaustedRetries(t *testing.T) {
	writer := &captureWriter{failures: 100}
	dead := &captureWriter{}
	d := NewDispatcher(writer, nil, DispatcherConfig{
		BatchSize: 1, FlushInterval: time.Hour, Attempts: 2, Backoff: time.Millisecond,
		DeadLetter: dead,
	})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)
	in <- testAlert("alice", "High")
	close(in)
	<-done

	if got := writer.delivered(); got != 0 {
		t.Fatalf("expected the primary sink to reject every attempt, delivered=%d", got)
	}
	writer.mu.Lock()
	remaining := writer.failures
	writer.mu.Unlock()
	if attempts := 100 - remaining; attempts != 2 {
		t.Fatalf("expected exactly 2 write attempts, got %d", attempts)
	}
	if got := dead.delivered(); got != 1 {
		t.Fatalf("expected the undeliverable alert parked, parked=%d", got)
	}
}

func TestDispatcherDropsBatchWithoutDeadLetterSink(t *testing.T) {
	writer := &captureWriter{failures: 100}
	d := NewDispatcher(writer, nil, DispatcherConfig{
		BatchSize: 1, FlushInterval: time.Hour, Attempts: 2, Backoff: time.Millisecond,
	})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)
	in <- testAlert("alice", "High")
	close(in)
	<-done

	if got := writer.delivered(); got != 0 {
		t.Fatalf("expected the batch to be dropped, delivered=%d", got)
	}
}

func TestDispatcherSuppressesThrottledAlerts(t *testing.T) {
	writer := &captureWriter{}
	d := NewDispatcher(writer, NewThrottle(time.Hour), DispatcherConfig{BatchSize: 1, FlushInterval: time.Hour})

	in := make(chan *models.Alert)
	done := runDispatcher(d, in)
	in <- testAlert("alice", "High")
	in <- testAlert("alice", "High")
	in <- testAlert("bob", "High")
	close(in)
	<-done

	if got := writer.delivered(); got != 2 {
		t.Fatalf("expected repeat alice alert suppressed, delivered=%d", got)
	}
}

func TestDispatcherFlushesBufferedAlertsOnCancel(t *testing.T) {
	writer := &captureWriter{}
	d := NewDispatcher(writer, nil, DispatcherConfig{BatchSize: 100, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *models.Alert)
	done := make(chan struct{})
	go func() {
		d.Run(ctx, in)
		close(done)
	}()

	in <- testAlert("alice", "High")
	cancel()
	<-done

	if got := writer.delivered(); got != 1 {
		t.Fatalf("expected buffered alert flushed on cancel, delivered=%d", got)
	}
}
