package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// ModelResult is one model invocation outcome. A nil Score with zero
// Confidence is the sentinel for an unavailable model; the blender
// then scores on rules alone.
type ModelResult struct {
	Score      *float64
	Confidence float64
	Version    string
}

// Invoker calls a scoring model.
type Invoker interface {
	Invoke(ctx context.Context, enriched *models.EnrichedEvent) (ModelResult, error)
	Version() string
}

// builtinWeights mirrors the bundled model's trained coefficients.
var builtinWeights = map[string]float64{
	"is_malicious":         0.4,
	"rep_score":            0.3,
	"is_high_risk_country": 0.2,
	"asset_criticality":    0.25,
	"is_prod_environment":  0.15,
	"is_admin_action":      0.3,
	"is_failed_action":     0.2,
	"is_business_hours":    -0.1,
	"severity_hint":        0.2,
	"is_critical_resource": 0.3,
	"is_suspicious":        0.25,
}

// BuiltinModel scores events with a bundled logistic model over the
// extracted feature vector. It exists for dev and seed runs and as the
// fallback deployment mode when no scoring service is available.
type BuiltinModel struct {
	version string
}

// NewBuiltinModel creates the bundled model.
func NewBuiltinModel() *BuiltinModel {
	return &BuiltinModel{version: "1.0.0"}
}

// Version returns the bundled model version.
func (m *BuiltinModel) Version() string { return m.version }

// Invoke scores the event. Confidence grows with enrichment
// completeness, floored at 0.3 for the always-present time and action
// features and capped at 1.0.
func (m *BuiltinModel) Invoke(ctx context.Context, enriched *models.EnrichedEvent) (ModelResult, error) {
	features := ExtractFeatures(enriched)

	raw := 0.0
	used := 0
	for name, weight := range builtinWeights {
		if val, ok := features[name]; ok {
			raw += val * weight
			used++
		}
	}

	probability := 0.5
	if used > 0 {
		raw /= math.Max(float64(used)*0.1, 1.0)
		probability = 1.0 / (1.0 + math.Exp(-raw))
	}
	score := probability * 100

	completeness := enriched.Completeness.Fraction(enriched.WantsIndicator(), enriched.WantsAsset())
	confidence := math.Min(0.3+completeness*0.7, 1.0)
	return ModelResult{Score: &score, Confidence: confidence, Version: m.version}, nil
}

// HTTPModelConfig configures the remote scoring client.
type HTTPModelConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string

	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32

	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPModel invokes a remote scoring service. Calls are rate limited
// and wrapped in a circuit breaker so a struggling model service sheds
// load instead of stalling every worker.
type HTTPModel struct {
	url     string
	headers map[string]string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	// version is read by workers while responses update it.
	version atomic.Value
}

// NewHTTPModel creates the remote scoring client.
func NewHTTPModel(cfg HTTPModelConfig) (*HTTPModel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("model URL is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = int(cfg.RateLimitRPS)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model-scorer",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("model breaker %s: %s -> %s", name, from, to)
			metrics.BreakerState.Set(float64(to))
		},
	})

	m := &HTTPModel{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
	m.version.Store("remote")
	return m, nil
}

// Version returns the version reported by the last successful call, or
// "remote" before any call has succeeded.
func (m *HTTPModel) Version() string { return m.version.Load().(string) }

type scoreRequest struct {
	Event        *models.SecurityEvent `json:"event"`
	Indicator    *models.Indicator     `json:"indicator,omitempty"`
	Asset        *models.AssetContext  `json:"asset,omitempty"`
	Features     Features              `json:"features"`
	Completeness models.Completeness   `json:"completeness"`
}

type scoreResponse struct {
	ModelScore   float64 `json:"model_score"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Invoke calls the remote model once, honoring the rate limit and
// breaker state.
func (m *HTTPModel) Invoke(ctx context.Context, enriched *models.EnrichedEvent) (ModelResult, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return ModelResult{}, fmt.Errorf("model rate limit: %w", err)
	}

	body, err := json.Marshal(scoreRequest{
		Event:        enriched.Event,
		Indicator:    enriched.Indicator,
		Asset:        enriched.Asset,
		Features:     ExtractFeatures(enriched),
		Completeness: enriched.Completeness,
	})
	if err != nil {
		return ModelResult{}, fmt.Errorf("encode score request: %w", err)
	}

	out, err := m.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create score request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range m.headers {
			req.Header.Set(k, v)
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("model request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("model request failed with status %s", resp.Status)
		}

		var decoded scoreResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode score response: %w", err)
		}
		return &decoded, nil
	})
	if err != nil {
		return ModelResult{}, err
	}

	decoded := out.(*scoreResponse)
	if decoded.ModelVersion != "" {
		m.version.Store(decoded.ModelVersion)
	}
	confidence := math.Max(0, math.Min(decoded.Confidence, 1))
	score := decoded.ModelScore
	return ModelResult{Score: &score, Confidence: confidence, Version: decoded.ModelVersion}, nil
}

// Scorer runs an invoker under a bounded timeout and converts every
// failure into the low-confidence sentinel so scoring never blocks on
// the model path.
type Scorer struct {
	invoker  Invoker
	timeout  time.Duration
	recorder *Recorder
}

// NewScorer wraps an invoker with timeout and metrics recording.
func NewScorer(invoker Invoker, timeout time.Duration, recorder *Recorder) *Scorer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Scorer{invoker: invoker, timeout: timeout, recorder: recorder}
}

// Score invokes the model for the event. It never returns an error:
// timeouts, breaker rejections, and transport failures all yield the
// sentinel result.
func (s *Scorer) Score(ctx context.Context, enriched *models.EnrichedEvent) ModelResult {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.invoker.Invoke(callCtx, enriched)
	elapsed := time.Since(start)
	metrics.ModelLatency.Observe(elapsed.Seconds())

	if err != nil {
		outcome := "error"
		timedOut := callCtx.Err() == context.DeadlineExceeded
		if timedOut {
			outcome = "timeout"
		}
		metrics.ModelInvocations.WithLabelValues(outcome).Inc()
		s.recorder.RecordFailure(s.invoker.Version(), elapsed, timedOut)
		logger.Warnf("model invocation failed for %s: %v", enriched.Event.TenantEventID(), err)
		return ModelResult{Score: nil, Confidence: 0, Version: s.invoker.Version()}
	}

	metrics.ModelInvocations.WithLabelValues("ok").Inc()
	s.recorder.RecordSuccess(res.Version, elapsed, res.Confidence)
	return res
}
