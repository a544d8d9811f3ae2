package alerts

import (
	"context"
	"time"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// DispatcherConfig controls batching, retry, and the dead-letter
// fallback for alert delivery.
type DispatcherConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	Attempts      int
	Backoff       time.Duration

	// DeadLetter receives batches that exhaust every delivery attempt.
	// Optional; without one such batches are dropped.
	DeadLetter AlertWriter
}

// Dispatcher drains an alert channel and hands batches to a writer.
// After Attempts failed writes the batch is parked to the dead-letter
// sink for manual inspection, never blocking the scoring path behind
// it.
type Dispatcher struct {
	writer     AlertWriter
	deadLetter AlertWriter
	throttle   *Throttle

	batchSize     int
	flushInterval time.Duration
	attempts      int
	backoff       time.Duration
}

// NewDispatcher creates a dispatcher. A nil throttle disables suppression.
func NewDispatcher(writer AlertWriter, throttle *Throttle, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 1 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	return &Dispatcher{
		writer:        writer,
		deadLetter:    cfg.DeadLetter,
		throttle:      throttle,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		attempts:      cfg.Attempts,
		backoff:       cfg.Backoff,
	}
}

// Run consumes alerts until the channel closes or the context is
// cancelled, flushing any buffered batch before returning.
func (d *Dispatcher) Run(ctx context.Context, in <-chan *models.Alert) {
	batch := make([]*models.Alert, 0, d.batchSize)
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		d.deliver(batch)
		batch = batch[:0]
	}

	for {
		select {
		case alert, ok := <-in:
			if !ok {
				flush()
				return
			}
			if !d.throttle.Allow(alert) {
				metrics.AlertsDispatched.WithLabelValues("suppressed").Inc()
				logger.Debugf("alert suppressed by cooldown: %s", alert.TenantEventID)
				continue
			}
			batch = append(batch, alert)
			if len(batch) >= d.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// deliver writes one batch with bounded retry, parking it on exhaustion.
func (d *Dispatcher) deliver(batch []*models.Alert) {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err = d.writer.WriteAlerts(batch); err == nil {
			metrics.AlertsDispatched.WithLabelValues("delivered").Add(float64(len(batch)))
			return
		}
		logger.Warnf("alert write attempt %d/%d failed: %v", attempt, d.attempts, err)
		if attempt < d.attempts {
			time.Sleep(d.backoff)
		}
	}

	if d.deadLetter != nil {
		dlqErr := d.deadLetter.WriteAlerts(batch)
		if dlqErr == nil {
			metrics.AlertsDispatched.WithLabelValues("parked").Add(float64(len(batch)))
			logger.Warnf("parked %d undeliverable alerts after %d attempts: %v", len(batch), d.attempts, err)
			return
		}
		logger.Errorf("alert dead-letter write failed: %v", dlqErr)
	}

	metrics.AlertsDispatched.WithLabelValues("dropped").Add(float64(len(batch)))
	logger.Errorf("dropping %d alerts after %d attempts: %v", len(batch), d.attempts, err)
}
