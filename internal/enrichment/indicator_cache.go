package enrichment

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/internal/metrics"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// LookupState classifies a cache read.
type LookupState int

const (
	// Miss means the cache has no entry for the key.
	Miss LookupState = iota
	// Stale means the entry exists but its TTL has elapsed.
	Stale
	// Found means the entry exists and is still fresh.
	Found
)

// String returns the lookup state name for logs.
func (s LookupState) String() string {
	switch s {
	case Found:
		return "found"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// IndicatorCacheConfig controls TTLs and refresh behavior.
type IndicatorCacheConfig struct {
	TTL            time.Duration
	NegativeTTL    time.Duration
	RefreshTimeout time.Duration
}

// IndicatorCache is a read-through TTL cache over the intel source.
// Concurrent misses for one key collapse into a single upstream
// refresh, and refresh failures fall back to the expired entry so
// enrichment degrades instead of blocking the pipeline.
type IndicatorCache struct {
	backend        Backend[models.Indicator]
	source         IndicatorSource
	ttl            time.Duration
	negativeTTL    time.Duration
	refreshTimeout time.Duration
	group          singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// NewIndicatorCache creates an indicator cache over the backend and source.
func NewIndicatorCache(backend Backend[models.Indicator], source IndicatorSource, cfg IndicatorCacheConfig) *IndicatorCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 5 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 3 * time.Second
	}
	return &IndicatorCache{
		backend:        backend,
		source:         source,
		ttl:            cfg.TTL,
		negativeTTL:    cfg.NegativeTTL,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
	}
}

// Lookup reads the cache without refreshing. The entry is returned for
// both Found and Stale so callers can serve stale data when degraded.
func (c *IndicatorCache) Lookup(ctx context.Context, key string) (*models.Indicator, LookupState, error) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, Miss, err
	}
	if !ok {
		return nil, Miss, nil
	}
	if entry.Fresh(c.now()) {
		return &entry, Found, nil
	}
	return &entry, Stale, nil
}

// Resolve returns intel for the key, refreshing through the source on
// miss or expiry. The degraded flag is set when an expired entry is
// served because the refresh failed. A nil indicator with a nil error
// means the source has no record for the key.
func (c *IndicatorCache) Resolve(ctx context.Context, key string) (*models.Indicator, bool, error) {
	cached, state, err := c.Lookup(ctx, key)
	if err != nil {
		logger.Warnf("indicator cache read failed for %s: %v", key, err)
		cached, state = nil, Miss
	}
	metrics.CacheLookups.WithLabelValues("indicator", state.String()).Inc()

	if state == Found {
		return materialize(cached), false, nil
	}

	fresh, err := c.refresh(ctx, key)
	if err == nil {
		return materialize(fresh), false, nil
	}

	metrics.RefreshFailures.WithLabelValues("indicator").Inc()
	if state == Stale {
		logger.Warnf("serving stale intel for %s: %v", key, err)
		return materialize(cached), true, nil
	}
	return nil, true, err
}

// refresh coalesces concurrent upstream fetches for one key. The fetch
// runs detached from the caller's context so a single canceled caller
// does not fail the shared flight.
func (c *IndicatorCache) refresh(ctx context.Context, key string) (*models.Indicator, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		ind, err := c.source.Refresh(fetchCtx, key)
		now := c.now()
		if err == ErrNotFound {
			ind = &models.Indicator{Indicator: key, NotFound: true}
			ind.LastRefreshed = now
			ind.ExpiresAt = now.Add(c.negativeTTL)
		} else if err != nil {
			return nil, err
		} else {
			ind.LastRefreshed = now
			ind.ExpiresAt = now.Add(c.ttl)
		}
		if err := c.backend.Set(fetchCtx, key, *ind); err != nil {
			logger.Warnf("indicator cache write failed for %s: %v", key, err)
		}
		return ind, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Indicator), nil
	}
}

// Close releases the backing store.
func (c *IndicatorCache) Close() error {
	return c.backend.Close()
}

// materialize maps negative cache entries to a nil indicator.
func materialize(ind *models.Indicator) *models.Indicator {
	if ind == nil || ind.NotFound {
		return nil
	}
	return ind
}
