package scoring

import (
	"sync"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

type versionStats struct {
	invocations    int64
	failures       int64
	timeouts       int64
	totalLatencyMS int64
	confidenceSum  float64
	confidenceN    int64
}

// Recorder aggregates model invocation stats per model version between
// flushes. A nil recorder drops everything, which is how deployments
// with model metrics disabled run.
type Recorder struct {
	mu        sync.Mutex
	stats     map[string]*versionStats
	retention time.Duration

	now func() time.Time
}

// NewRecorder creates a recorder whose snapshots carry the given
// retention expiry.
func NewRecorder(retention time.Duration) *Recorder {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Recorder{
		stats:     make(map[string]*versionStats),
		retention: retention,
		now:       time.Now,
	}
}

func (r *Recorder) get(version string) *versionStats {
	if version == "" {
		version = "unknown"
	}
	s, ok := r.stats[version]
	if !ok {
		s = &versionStats{}
		r.stats[version] = s
	}
	return s
}

// RecordSuccess adds one successful invocation.
func (r *Recorder) RecordSuccess(version string, latency time.Duration, confidence float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(version)
	s.invocations++
	s.totalLatencyMS += latency.Milliseconds()
	s.confidenceSum += confidence
	s.confidenceN++
}

// RecordFailure adds one failed invocation.
func (r *Recorder) RecordFailure(version string, latency time.Duration, timedOut bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(version)
	s.invocations++
	s.failures++
	if timedOut {
		s.timeouts++
	}
	s.totalLatencyMS += latency.Milliseconds()
}

// Snapshot drains the aggregates accumulated since the last call.
func (r *Recorder) Snapshot() []models.ModelMetrics {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stats) == 0 {
		return nil
	}
	now := r.now()
	out := make([]models.ModelMetrics, 0, len(r.stats))
	for version, s := range r.stats {
		avgConfidence := 0.0
		if s.confidenceN > 0 {
			avgConfidence = r.round(s.confidenceSum / float64(s.confidenceN))
		}
		out = append(out, models.ModelMetrics{
			ModelVersion:   version,
			TS:             now,
			Invocations:    s.invocations,
			Failures:       s.failures,
			Timeouts:       s.timeouts,
			TotalLatencyMS: s.totalLatencyMS,
			AvgConfidence:  avgConfidence,
			ExpiresAt:      now.Add(r.retention),
		})
	}
	r.stats = make(map[string]*versionStats)
	return out
}

func (r *Recorder) round(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
