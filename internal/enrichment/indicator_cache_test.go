package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

type countingIntelSource struct {
	mu         sync.Mutex
	calls      int
	reputation int
	err        error
	delay      time.Duration
}

func (s *countingIntelSource) Refresh(ctx context.Context, indicator string) (*models.Indicator, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	rep := s.reputation
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &models.Indicator{
		Indicator:  indicator,
		Reputation: rep,
		Verdict:    models.ReputationVerdict(rep),
	}, nil
}

func (s *countingIntelSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingIntelSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestIndicatorCache(t *testing.T, source IndicatorSource, cfg IndicatorCacheConfig) *IndicatorCache {
	t.Helper()
	backend, err := NewMemoryBackend[models.Indicator](64)
	if err != nil {
		t.Fatalf("create backend: %v", err)
	}
	return NewIndicatorCache(backend, source, cfg)
}

func TestMissRefreshesFromSourceAndCaches(t *testing.T) {
	source := &countingIntelSource{reputation: 90}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{TTL: time.Minute})

	ind, degraded, err := cache.Resolve(context.Background(), "203.0.113.10")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if degraded {
		t.Fatalf("expected non-degraded result")
	}
	if ind == nil || ind.Verdict != models.VerdictMalicious {
		t.Fatalf("expected malicious verdict, got %+v", ind)
	}

	if _, _, err := cache.Resolve(context.Background(), "203.0.113.10"); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if got := source.callCount(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

func TestEntryIsNeverServedFreshPastExpiry(t *testing.T) {
	source := &countingIntelSource{reputation: 50}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{TTL: time.Minute})

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	if _, _, err := cache.Resolve(context.Background(), "198.51.100.7"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	current = current.Add(time.Minute + time.Nanosecond)
	_, state, err := cache.Lookup(context.Background(), "198.51.100.7")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if state != Stale {
		t.Fatalf("expected stale past expiry, got %s", state)
	}

	if _, _, err := cache.Resolve(context.Background(), "198.51.100.7"); err != nil {
		t.Fatalf("resolve after expiry failed: %v", err)
	}
	if got := source.callCount(); got != 2 {
		t.Fatalf("expected refresh after expiry, got %d upstream calls", got)
	}
}

func TestRefreshFailureServesStaleWithDegradedFlag(t *testing.T) {
	source := &countingIntelSource{reputation: 85}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{TTL: time.Minute})

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	if _, _, err := cache.Resolve(context.Background(), "203.0.113.20"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	current = current.Add(2 * time.Minute)
	source.setErr(errors.New("intel feed down"))

	ind, degraded, err := cache.Resolve(context.Background(), "203.0.113.20")
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if !degraded {
		t.Fatalf("expected degraded flag on stale serve")
	}
	if ind == nil || ind.Reputation != 85 {
		t.Fatalf("expected stale entry, got %+v", ind)
	}
}

func TestRefreshFailureWithoutCachedEntryReportsError(t *testing.T) {
	source := &countingIntelSource{err: errors.New("intel feed down")}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{TTL: time.Minute})

	ind, degraded, err := cache.Resolve(context.Background(), "203.0.113.30")
	if err == nil {
		t.Fatalf("expected error with nothing to fall back to")
	}
	if !degraded {
		t.Fatalf("expected degraded flag")
	}
	if ind != nil {
		t.Fatalf("expected nil indicator, got %+v", ind)
	}
}

func TestUnknownIndicatorIsCachedNegatively(t *testing.T) {
	source := &countingIntelSource{err: ErrNotFound}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{
		TTL:         time.Minute,
		NegativeTTL: 30 * time.Second,
	})

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	ind, degraded, err := cache.Resolve(context.Background(), "10.0.0.1")
	if err != nil || degraded {
		t.Fatalf("not-found should resolve cleanly, got err=%v degraded=%v", err, degraded)
	}
	if ind != nil {
		t.Fatalf("expected nil indicator for unknown key, got %+v", ind)
	}

	if _, _, err := cache.Resolve(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if got := source.callCount(); got != 1 {
		t.Fatalf("expected negative entry to absorb the lookup, got %d calls", got)
	}

	current = current.Add(31 * time.Second)
	if _, _, err := cache.Resolve(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("resolve after negative expiry failed: %v", err)
	}
	if got := source.callCount(); got != 2 {
		t.Fatalf("expected re-check after negative TTL, got %d calls", got)
	}
}

func TestConcurrentMissesCoalesceIntoOneRefresh(t *testing.T) {
	source := &countingIntelSource{reputation: 60, delay: 50 * time.Millisecond}
	cache := newTestIndicatorCache(t, source, IndicatorCacheConfig{TTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ind, _, err := cache.Resolve(context.Background(), "203.0.113.40")
			if err != nil {
				t.Errorf("resolve failed: %v", err)
				return
			}
			if ind == nil || ind.Reputation != 60 {
				t.Errorf("unexpected indicator: %+v", ind)
			}
		}()
	}
	wg.Wait()

	if got := source.callCount(); got != 1 {
		t.Fatalf("expected coalesced refresh, got %d upstream calls", got)
	}
}
