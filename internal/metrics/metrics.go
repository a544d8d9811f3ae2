package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "secureops"

// Pipeline counters and gauges. Outcome labels follow the ack taxonomy
// (processed, duplicate, rejected, parked) plus internal failure states.
var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "events_total",
		Help:      "Events consumed from the input transport by outcome.",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Events currently buffered between intake and the workers.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage processing latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	DeadLetterTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "dead_letter_total",
		Help:      "Payloads parked in the dead-letter path by reason.",
	}, []string{"reason"})
)

// Enrichment cache observability.
var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrichment",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache name and state (found, stale, miss).",
	}, []string{"cache", "state"})

	RefreshFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrichment",
		Name:      "refresh_failures_total",
		Help:      "Upstream refresh failures by cache name.",
	}, []string{"cache"})
)

// Model scorer observability.
var (
	ModelInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "invocations_total",
		Help:      "Model invocations by outcome (ok, timeout, error, open).",
	}, []string{"outcome"})

	ModelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "latency_seconds",
		Help:      "Model invocation latency.",
		Buckets:   prometheus.DefBuckets,
	})

	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	})
)

// Alert dispatch observability.
var (
	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "dispatched_total",
		Help:      "Alert dispatch outcomes (delivered, suppressed, parked, dropped).",
	}, []string{"outcome"})
)

// Gateway observability.
var (
	GatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "events_total",
		Help:      "Events received by the ingest gateway by status.",
	}, []string{"status"})
)
