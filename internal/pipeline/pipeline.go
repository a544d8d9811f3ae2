// Package pipeline moves events from the input transport through
// admission, enrichment, scoring, and publication with a bounded
// worker pool.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Raghu-Nath97/secureops360/internal/alerts"
	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/internal/scoring"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Config assembles a pipeline. Consumer and Processor are required;
// alerting and model metrics emission are optional.
type Config struct {
	Consumer  Consumer
	Processor *Processor

	Workers     int
	QueueFactor int

	Alerts      *alerts.Dispatcher
	AlertCutoff models.SeverityTier

	Recorder             *scoring.Recorder
	MetricsWriter        MetricsWriter
	MetricsFlushInterval time.Duration
}

// Pipeline is the event processing loop.
type Pipeline struct {
	consumer  Consumer
	processor *Processor

	workers     int
	queueFactor int

	dispatcher  *alerts.Dispatcher
	alertCutoff models.SeverityTier

	recorder      *scoring.Recorder
	metricsWriter MetricsWriter
	metricsFlush  time.Duration
}

// New creates a pipeline from the config, applying worker pool defaults.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueFactor <= 0 {
		cfg.QueueFactor = 4
	}
	if cfg.MetricsFlushInterval <= 0 {
		cfg.MetricsFlushInterval = 60 * time.Second
	}
	return &Pipeline{
		consumer:      cfg.Consumer,
		processor:     cfg.Processor,
		workers:       cfg.Workers,
		queueFactor:   cfg.QueueFactor,
		dispatcher:    cfg.Alerts,
		alertCutoff:   cfg.AlertCutoff,
		recorder:      cfg.Recorder,
		metricsWriter: cfg.MetricsWriter,
		metricsFlush:  cfg.MetricsFlushInterval,
	}
}

// Run processes deliveries until the context is cancelled, then drains
// the queue and the alert channel before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.Infof("Pipeline started: %d workers, queue %d", p.workers, p.workers*p.queueFactor)

	queue := make(chan Delivery, p.workers*p.queueFactor)

	var alertCh chan *models.Alert
	var dispatchWG sync.WaitGroup
	if p.dispatcher != nil {
		alertCh = make(chan *models.Alert, p.workers*p.queueFactor)
		dispatchWG.Add(1)
		go func() {
			defer dispatchWG.Done()
			// Own context, terminated by channel close, so buffered
			// alerts still go out after shutdown begins.
			p.dispatcher.Run(context.Background(), alertCh)
		}()
	}

	var metricsWG sync.WaitGroup
	stopMetrics := make(chan struct{})
	if p.recorder != nil && p.metricsWriter != nil {
		metricsWG.Add(1)
		go func() {
			defer metricsWG.Done()
			p.metricsLoop(stopMetrics)
		}()
	}

	var readWG sync.WaitGroup
	readWG.Add(1)
	go func() {
		defer readWG.Done()
		p.readLoop(ctx, queue)
		close(queue)
	}()

	var workWG sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workWG.Add(1)
		go func() {
			defer workWG.Done()
			p.workerLoop(queue, alertCh)
		}()
	}

	readWG.Wait()
	workWG.Wait()
	if alertCh != nil {
		close(alertCh)
	}
	dispatchWG.Wait()
	close(stopMetrics)
	metricsWG.Wait()

	logger.Infof("Pipeline drained")
	return ctx.Err()
}

// Close releases the input transport.
func (p *Pipeline) Close() error {
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

// readLoop fetches deliveries and feeds the worker queue. The blocking
// send is the backpressure point: a full queue stops fetching, which
// leaves further events pending on the transport.
func (p *Pipeline) readLoop(ctx context.Context, out chan<- Delivery) {
	max := p.workers * 2
	for {
		deliveries, err := p.consumer.Fetch(ctx, max)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to fetch deliveries: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		for _, d := range deliveries {
			select {
			case out <- d:
				metrics.QueueDepth.Set(float64(len(out)))
			case <-ctx.Done():
				return
			}
		}
	}
}

// workerLoop drains the queue. Queued deliveries finish during
// shutdown; every stage carries its own timeout.
func (p *Pipeline) workerLoop(in <-chan Delivery, alertCh chan<- *models.Alert) {
	for d := range in {
		metrics.QueueDepth.Set(float64(len(in)))
		p.handle(context.Background(), d, alertCh)
	}
}

// handle settles one delivery against the transport: ack, park, or
// leave it for redelivery.
func (p *Pipeline) handle(ctx context.Context, d Delivery, alertCh chan<- *models.Alert) {
	res, err := p.processor.Process(ctx, d)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("retry").Inc()
		logger.Warnf("Leaving %s for redelivery: %v", d.ID, err)
		return
	}

	switch res.Status {
	case StatusRejected:
		logger.Warnf("Rejecting malformed payload %s: %s", d.ID, res.Reason)
		if !p.park(ctx, d, res.Reason, "malformed") {
			return
		}
	case StatusParked:
		if !p.park(ctx, d, res.Reason, "publish_failed") {
			return
		}
	default:
		if err := p.consumer.Ack(ctx, d.ID); err != nil {
			logger.Warnf("Failed to ack %s: %v", d.ID, err)
			return
		}
	}
	metrics.EventsTotal.WithLabelValues(res.Status.String()).Inc()

	if alertCh != nil && res.Fresh && scoring.AlertWorthy(res.Score.SeverityTier, p.alertCutoff) {
		alertCh <- alerts.FromScore(res.Event, res.Score, time.Now())
	}
}

// park moves a delivery to the dead-letter path, reporting whether it
// was settled. A failed park leaves the delivery for redelivery.
func (p *Pipeline) park(ctx context.Context, d Delivery, reason, label string) bool {
	if err := p.consumer.Park(ctx, d, reason); err != nil {
		logger.Errorf("Failed to park %s: %v", d.ID, err)
		return false
	}
	metrics.DeadLetterTotal.WithLabelValues(label).Inc()
	return true
}

func (p *Pipeline) metricsLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.metricsFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flushModelMetrics()
		case <-stop:
			p.flushModelMetrics()
			return
		}
	}
}

func (p *Pipeline) flushModelMetrics() {
	batch := p.recorder.Snapshot()
	if len(batch) == 0 {
		return
	}
	if err := p.metricsWriter.WriteMetrics(batch); err != nil {
		logger.Errorf("Failed to write model metrics: %v", err)
	}
}
