package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Raghu-Nath97/secureops360/internal/enrichment"
	"github.com/Raghu-Nath97/secureops360/internal/idempotency"
	"github.com/Raghu-Nath97/secureops360/internal/ingest"
	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/internal/results"
	"github.com/Raghu-Nath97/secureops360/internal/rules"
	"github.com/Raghu-Nath97/secureops360/internal/scoring"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// AckStatus says what the worker should do with the source delivery.
type AckStatus int

const (
	// StatusProcessed means a RiskScore was computed and published.
	StatusProcessed AckStatus = iota
	// StatusDuplicate means the event was already handled elsewhere.
	StatusDuplicate
	// StatusRejected means the payload is malformed and must be parked.
	StatusRejected
	// StatusParked means processing gave up and the payload must be parked.
	StatusParked
)

// String names the status for logs and metric labels.
func (s AckStatus) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusDuplicate:
		return "duplicate"
	case StatusRejected:
		return "rejected"
	case StatusParked:
		return "parked"
	default:
		return "unknown"
	}
}

// ProcessResult is the outcome of one delivery.
type ProcessResult struct {
	Status AckStatus
	Event  *models.SecurityEvent
	Score  *models.RiskScore
	// Fresh marks a score stored by this pass, as opposed to an
	// identical recomputation or a duplicate. Alerts fire only once,
	// on the fresh store.
	Fresh  bool
	Reason string
}

// ProcessorConfig bounds the per-event stages.
type ProcessorConfig struct {
	AdmitRetries    int
	AdmitBackoff    time.Duration
	EnrichTimeout   time.Duration
	PublishTimeout  time.Duration
	PublishAttempts int
	PublishBackoff  time.Duration
	Retention       time.Duration
}

// Processor runs one event through admission, enrichment, scoring, and
// publication. It is safe for concurrent use by the worker pool.
type Processor struct {
	admitter *idempotency.Admitter
	resolver *enrichment.Resolver
	engine   rules.Engine
	scorer   *scoring.Scorer
	blender  *scoring.Blender
	store    results.Store

	admitRetries    int
	admitBackoff    time.Duration
	enrichTimeout   time.Duration
	publishTimeout  time.Duration
	publishAttempts int
	publishBackoff  time.Duration
	retention       time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewProcessor wires the per-event stages together.
func NewProcessor(admitter *idempotency.Admitter, resolver *enrichment.Resolver, engine rules.Engine, scorer *scoring.Scorer, blender *scoring.Blender, store results.Store, cfg ProcessorConfig) *Processor {
	if cfg.AdmitRetries <= 0 {
		cfg.AdmitRetries = 3
	}
	if cfg.AdmitBackoff <= 0 {
		cfg.AdmitBackoff = 200 * time.Millisecond
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 3 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = 3
	}
	if cfg.PublishBackoff <= 0 {
		cfg.PublishBackoff = 500 * time.Millisecond
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Processor{
		admitter:        admitter,
		resolver:        resolver,
		engine:          engine,
		scorer:          scorer,
		blender:         blender,
		store:           store,
		admitRetries:    cfg.AdmitRetries,
		admitBackoff:    cfg.AdmitBackoff,
		enrichTimeout:   cfg.EnrichTimeout,
		publishTimeout:  cfg.PublishTimeout,
		publishAttempts: cfg.PublishAttempts,
		publishBackoff:  cfg.PublishBackoff,
		retention:       cfg.Retention,
		now:             time.Now,
	}
}

// Process handles one delivery end to end. A non-nil error means the
// delivery must stay unacknowledged so the transport redelivers it.
func (p *Processor) Process(ctx context.Context, d Delivery) (ProcessResult, error) {
	event, err := ingest.DecodeEvent(d.Payload, p.now())
	if err != nil {
		return ProcessResult{Status: StatusRejected, Reason: err.Error()}, nil
	}
	key := event.TenantEventID()

	decision, err := p.admit(ctx, key)
	if err != nil {
		return ProcessResult{}, err
	}
	switch decision.Outcome {
	case idempotency.AlreadyProcessed:
		return ProcessResult{Status: StatusDuplicate, Event: event, Score: decision.Existing}, nil
	case idempotency.InFlight:
		// Another worker holds the claim and its own delivery is still
		// pending. Ack this one; a crashed holder redelivers through
		// the lease expiry, not through this copy.
		return ProcessResult{Status: StatusDuplicate, Event: event}, nil
	}

	defer func() {
		if err := p.admitter.Release(ctx, key); err != nil {
			logger.Warnf("Failed to release claim %s: %v", key, err)
		}
	}()

	score := p.compute(ctx, event)
	return p.publish(ctx, event, score)
}

// admit retries InFlight decisions a bounded number of times before
// giving up on this delivery.
func (p *Processor) admit(ctx context.Context, key string) (idempotency.Decision, error) {
	for attempt := 0; ; attempt++ {
		decision, err := p.admitter.Admit(ctx, key)
		if err != nil || decision.Outcome != idempotency.InFlight {
			return decision, err
		}
		if attempt >= p.admitRetries {
			return decision, nil
		}
		select {
		case <-ctx.Done():
			return idempotency.Decision{}, ctx.Err()
		case <-time.After(p.admitBackoff):
		}
	}
}

// compute enriches the event and derives its risk score. The stage never
// fails: missing context degrades the inputs and is recorded on the
// result instead.
func (p *Processor) compute(ctx context.Context, event *models.SecurityEvent) *models.RiskScore {
	enrichStart := time.Now()
	enrichCtx, cancel := context.WithTimeout(ctx, p.enrichTimeout)
	enriched := p.resolver.Enrich(enrichCtx, event)
	cancel()
	metrics.StageDuration.WithLabelValues("enrich").Observe(time.Since(enrichStart).Seconds())

	evalStart := time.Now()
	var ruleRes rules.Result
	var modelRes scoring.ModelResult

	// The goroutines write disjoint fields, so no locking is needed.
	var g errgroup.Group
	g.Go(func() error {
		ruleRes = p.engine.Evaluate(enriched)
		return nil
	})
	g.Go(func() error {
		modelRes = p.scorer.Score(ctx, enriched)
		return nil
	})
	g.Wait()
	metrics.StageDuration.WithLabelValues("evaluate").Observe(time.Since(evalStart).Seconds())

	final, tier := p.blender.Blend(ruleRes.Score, modelRes)

	now := p.now().UTC()
	return &models.RiskScore{
		TenantEventID:   event.TenantEventID(),
		TSIngested:      now,
		RuleScore:       ruleRes.Score,
		ModelScore:      modelRes.Score,
		ModelConfidence: modelRes.Confidence,
		RiskFinal:       final,
		SeverityTier:    tier,
		MatchedRules:    ruleRes.Matched,
		ModelVersion:    modelRes.Version,
		RulesetVersion:  p.engine.Version(),
		Degraded:        degradedComponents(enriched, modelRes),
		ExpiresAt:       now.Add(p.retention),
	}
}

// publish writes the score with bounded retry. The first stored record
// wins; an identical recomputation counts as success and a divergent one
// is reported as a duplicate carrying the stored record.
func (p *Processor) publish(ctx context.Context, event *models.SecurityEvent, score *models.RiskScore) (ProcessResult, error) {
	key := score.TenantEventID

	publishStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(publishStart).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= p.publishAttempts; attempt++ {
		putCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
		outcome, existing, err := p.store.Put(putCtx, score)
		cancel()
		if err != nil {
			lastErr = err
			logger.Warnf("Failed to publish %s (attempt %d/%d): %v", key, attempt, p.publishAttempts, err)
			if attempt < p.publishAttempts {
				select {
				case <-ctx.Done():
					return ProcessResult{}, ctx.Err()
				case <-time.After(p.publishBackoff):
				}
			}
			continue
		}

		switch outcome {
		case results.Stored:
			return ProcessResult{Status: StatusProcessed, Event: event, Score: score, Fresh: true}, nil
		case results.Identical:
			return ProcessResult{Status: StatusProcessed, Event: event, Score: score}, nil
		default:
			logger.Warnf("Divergent recomputation for %s, keeping the stored record", key)
			return ProcessResult{Status: StatusDuplicate, Event: event, Score: existing}, nil
		}
	}

	return ProcessResult{
		Status: StatusParked,
		Event:  event,
		Reason: fmt.Sprintf("publish failed after %d attempts: %v", p.publishAttempts, lastErr),
	}, nil
}

// degradedComponents lists the inputs that were missing or stale when
// the score was computed.
func degradedComponents(enriched *models.EnrichedEvent, model scoring.ModelResult) []string {
	var degraded []string
	c := enriched.Completeness
	if enriched.WantsIndicator() && (!c.IndicatorResolved || c.IndicatorDegraded) {
		degraded = append(degraded, "indicator")
	}
	if enriched.WantsAsset() && (!c.AssetResolved || c.AssetDegraded) {
		degraded = append(degraded, "asset")
	}
	if model.Score == nil {
		degraded = append(degraded, "model")
	}
	return degraded
}
