package scoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func enrichedForScoring() *models.EnrichedEvent {
	return &models.EnrichedEvent{
		Event: &models.SecurityEvent{
			EventID:      "evt-1",
			TenantID:     "acme",
			Source:       "auth-service",
			Actor:        models.Actor{Type: "user", ID: "alice", IP: "203.0.113.10"},
			Action:       "admin_login",
			Resource:     models.Resource{Type: "database", ID: "users-db"},
			SeverityHint: 5,
			ArrivalTS:    time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC),
		},
		Indicator: &models.Indicator{
			Reputation:  95,
			Verdict:     models.VerdictMalicious,
			CountryCode: "CN",
		},
		Asset: &models.AssetContext{Criticality: 5, Environment: "prod"},
		Completeness: models.Completeness{
			IndicatorResolved: true,
			AssetResolved:     true,
		},
	}
}

func TestExtractFeaturesDerivesSignals(t *testing.T) {
	features := ExtractFeatures(enrichedForScoring())

	require.InDelta(t, 0.95, features["rep_score"], 1e-9)
	require.Equal(t, 1.0, features["is_malicious"])
	require.Equal(t, 0.0, features["is_suspicious"])
	require.Equal(t, 1.0, features["is_high_risk_country"])
	require.Equal(t, 1.0, features["asset_criticality"])
	require.Equal(t, 1.0, features["is_prod_environment"])
	require.InDelta(t, 10.0/24.0, features["hour_of_day"], 1e-9)
	require.Equal(t, 0.0, features["is_weekend"])
	require.Equal(t, 1.0, features["is_business_hours"])
	require.Equal(t, 1.0, features["is_login_action"])
	require.Equal(t, 0.0, features["is_failed_action"])
	require.Equal(t, 1.0, features["is_admin_action"])
	require.Equal(t, 1.0, features["is_critical_resource"])
	require.Equal(t, 1.0, features["severity_hint"])
}

func TestExtractFeaturesOmitsUnresolvedContext(t *testing.T) {
	enriched := enrichedForScoring()
	enriched.Indicator = nil
	enriched.Asset = nil

	features := ExtractFeatures(enriched)
	require.NotContains(t, features, "rep_score")
	require.NotContains(t, features, "is_malicious")
	require.NotContains(t, features, "asset_criticality")
	require.Contains(t, features, "is_admin_action")
}

func TestBuiltinModelScoresHighRiskEvents(t *testing.T) {
	model := NewBuiltinModel()

	res, err := model.Invoke(context.Background(), enrichedForScoring())
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	require.Greater(t, *res.Score, 70.0)
	require.LessOrEqual(t, *res.Score, 100.0)
	require.GreaterOrEqual(t, res.Confidence, 0.3)
	require.LessOrEqual(t, res.Confidence, 1.0)
	require.Equal(t, "1.0.0", res.Version)
}

func TestBuiltinModelIsDeterministic(t *testing.T) {
	model := NewBuiltinModel()
	enriched := enrichedForScoring()

	first, err := model.Invoke(context.Background(), enriched)
	require.NoError(t, err)
	second, err := model.Invoke(context.Background(), enriched)
	require.NoError(t, err)
	require.Equal(t, *first.Score, *second.Score)
	require.Equal(t, first.Confidence, second.Confidence)
}

func TestBuiltinModelConfidenceDropsWithMissingContext(t *testing.T) {
	model := NewBuiltinModel()

	full, err := model.Invoke(context.Background(), enrichedForScoring())
	require.NoError(t, err)
	require.Equal(t, 1.0, full.Confidence)

	partial := enrichedForScoring()
	partial.Indicator = nil
	partial.Asset = nil
	partial.Completeness = models.Completeness{IndicatorDegraded: true, AssetDegraded: true}
	degraded, err := model.Invoke(context.Background(), partial)
	require.NoError(t, err)

	require.InDelta(t, 0.3, degraded.Confidence, 1e-9)
	require.Less(t, degraded.Confidence, full.Confidence)
}

type stubInvoker struct {
	result ModelResult
	err    error
	delay  time.Duration
}

func (s *stubInvoker) Invoke(ctx context.Context, enriched *models.EnrichedEvent) (ModelResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ModelResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return ModelResult{}, s.err
	}
	return s.result, nil
}

func (s *stubInvoker) Version() string { return "stub-1" }

func TestScorerMapsFailureToLowConfidenceSentinel(t *testing.T) {
	scorer := NewScorer(&stubInvoker{err: errors.New("model exploded")}, time.Second, nil)

	res := scorer.Score(context.Background(), enrichedForScoring())
	require.Nil(t, res.Score)
	require.Zero(t, res.Confidence)
	require.Equal(t, "stub-1", res.Version)
}

func TestScorerTimeoutYieldsSentinel(t *testing.T) {
	scorer := NewScorer(&stubInvoker{delay: 200 * time.Millisecond}, 20*time.Millisecond, nil)

	start := time.Now()
	res := scorer.Score(context.Background(), enrichedForScoring())
	require.Less(t, time.Since(start), 150*time.Millisecond)
	require.Nil(t, res.Score)
	require.Zero(t, res.Confidence)
}

func TestHTTPModelRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model_score": 72.5, "confidence": 0.9, "model_version": "2.1.0"}`))
	}))
	defer server.Close()

	model, err := NewHTTPModel(HTTPModelConfig{URL: server.URL})
	require.NoError(t, err)

	res, err := model.Invoke(context.Background(), enrichedForScoring())
	require.NoError(t, err)
	require.Equal(t, 72.5, *res.Score)
	require.Equal(t, 0.9, res.Confidence)
	require.Equal(t, "2.1.0", res.Version)
	require.Equal(t, "2.1.0", model.Version())
}

func TestHTTPModelBreakerShedsLoadAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	model, err := NewHTTPModel(HTTPModelConfig{URL: server.URL, BreakerFailureThreshold: 3})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := model.Invoke(context.Background(), enrichedForScoring())
		require.Error(t, err)
	}
	require.Equal(t, int64(3), hits.Load())
}

func TestRecorderAggregatesPerModelVersion(t *testing.T) {
	recorder := NewRecorder(time.Hour)
	base := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return base }

	recorder.RecordSuccess("1.0.0", 20*time.Millisecond, 0.8)
	recorder.RecordSuccess("1.0.0", 40*time.Millisecond, 0.6)
	recorder.RecordFailure("1.0.0", 100*time.Millisecond, true)
	recorder.RecordSuccess("2.0.0", 10*time.Millisecond, 1.0)

	snap := recorder.Snapshot()
	require.Len(t, snap, 2)

	byVersion := map[string]models.ModelMetrics{}
	for _, m := range snap {
		byVersion[m.ModelVersion] = m
	}

	v1 := byVersion["1.0.0"]
	require.Equal(t, int64(3), v1.Invocations)
	require.Equal(t, int64(1), v1.Failures)
	require.Equal(t, int64(1), v1.Timeouts)
	require.Equal(t, int64(160), v1.TotalLatencyMS)
	require.InDelta(t, 0.7, v1.AvgConfidence, 1e-9)
	require.Equal(t, base.Add(time.Hour), v1.ExpiresAt)

	require.Nil(t, recorder.Snapshot(), "snapshot should drain the aggregates")
}

func TestNilRecorderDropsRecordings(t *testing.T) {
	var recorder *Recorder
	recorder.RecordSuccess("1.0.0", time.Millisecond, 0.5)
	recorder.RecordFailure("1.0.0", time.Millisecond, false)
	require.Nil(t, recorder.Snapshot())
}
