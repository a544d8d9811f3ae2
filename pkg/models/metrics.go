package models

import "time"

// ModelMetrics is one aggregated time-series row describing model scorer
// behavior over an invocation batch. Written for operational monitoring,
// never read by the scoring path.
type ModelMetrics struct {
	ModelVersion   string    `json:"model_version"`
	TS             time.Time `json:"ts"`
	Invocations    int64     `json:"invocations"`
	Failures       int64     `json:"failures"`
	Timeouts       int64     `json:"timeouts"`
	TotalLatencyMS int64     `json:"total_latency_ms"`
	AvgConfidence  float64   `json:"avg_confidence"`
	ExpiresAt      time.Time `json:"ttl_expires_at"`
}
