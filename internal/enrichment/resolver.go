package enrichment

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Resolver composes indicator and asset lookups into an EnrichedEvent.
// Lookups run concurrently with a bounded timeout each; failures
// degrade the completeness flags instead of failing the event.
type Resolver struct {
	indicators    *IndicatorCache
	assets        *AssetStore
	lookupTimeout time.Duration
}

// NewResolver creates a resolver over the two enrichment stores.
func NewResolver(indicators *IndicatorCache, assets *AssetStore, lookupTimeout time.Duration) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &Resolver{
		indicators:    indicators,
		assets:        assets,
		lookupTimeout: lookupTimeout,
	}
}

// Enrich resolves all context derivable from the event. It always
// returns a usable EnrichedEvent; lookups that fail or time out leave
// their field nil and their completeness flag unset.
func (r *Resolver) Enrich(ctx context.Context, event *models.SecurityEvent) *models.EnrichedEvent {
	enriched := &models.EnrichedEvent{Event: event}

	// The goroutines write disjoint fields, so no locking is needed.
	var g errgroup.Group
	if enriched.WantsIndicator() {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
			defer cancel()

			ind, degraded, err := r.indicators.Resolve(lctx, event.Actor.IP)
			enriched.Indicator = ind
			enriched.Completeness.IndicatorResolved = err == nil
			enriched.Completeness.IndicatorDegraded = degraded
			if err != nil {
				logger.Warnf("indicator lookup failed for event %s: %v", event.TenantEventID(), err)
			}
			return nil
		})
	}
	if enriched.WantsAsset() {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
			defer cancel()

			asset, degraded, err := r.assets.Resolve(lctx, event.AssetKey())
			enriched.Asset = asset
			enriched.Completeness.AssetResolved = err == nil
			enriched.Completeness.AssetDegraded = degraded
			if err != nil {
				logger.Warnf("asset lookup failed for event %s: %v", event.TenantEventID(), err)
			}
			return nil
		})
	}
	g.Wait()

	return enriched
}
