package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func newTestResolver(t *testing.T, intel IndicatorSource, assets AssetSource) *Resolver {
	t.Helper()
	cache := newTestIndicatorCache(t, intel, IndicatorCacheConfig{TTL: time.Minute})
	store := newTestAssetStore(t, assets)
	return NewResolver(cache, store, time.Second)
}

func testEvent() *models.SecurityEvent {
	return &models.SecurityEvent{
		EventID:  "evt-1",
		TenantID: "acme",
		Source:   "auth-service",
		Actor:    models.Actor{Type: "user", ID: "alice", IP: "203.0.113.10"},
		Action:   "login_failed",
		Resource: models.Resource{Type: "database", ID: "users-db"},
	}
}

func TestEnrichResolvesIndicatorAndAsset(t *testing.T) {
	resolver := newTestResolver(t,
		&countingIntelSource{reputation: 90},
		&countingAssetSource{criticality: 3},
	)

	enriched := resolver.Enrich(context.Background(), testEvent())
	if enriched.Indicator == nil || enriched.Indicator.Verdict != models.VerdictMalicious {
		t.Fatalf("expected malicious indicator, got %+v", enriched.Indicator)
	}
	if enriched.Asset == nil || enriched.Asset.Criticality != 3 {
		t.Fatalf("expected asset context, got %+v", enriched.Asset)
	}
	if got := enriched.Completeness.Fraction(true, true); got != 1 {
		t.Fatalf("expected full completeness, got %v", got)
	}
}

func TestPartialEnrichmentDegradesInsteadOfFailing(t *testing.T) {
	resolver := newTestResolver(t,
		&countingIntelSource{reputation: 90},
		&countingAssetSource{err: errors.New("registry down")},
	)

	enriched := resolver.Enrich(context.Background(), testEvent())
	if !enriched.Completeness.IndicatorResolved {
		t.Fatalf("indicator lookup should have succeeded")
	}
	if enriched.Completeness.AssetResolved {
		t.Fatalf("asset lookup should have failed")
	}
	if !enriched.Completeness.AssetDegraded {
		t.Fatalf("expected degraded asset flag")
	}
	if got := enriched.Completeness.Fraction(true, true); got != 0.5 {
		t.Fatalf("expected half completeness, got %v", got)
	}
}

func TestEventsWithoutLookupKeysSkipEnrichment(t *testing.T) {
	intel := &countingIntelSource{reputation: 90}
	assets := &countingAssetSource{criticality: 3}
	resolver := newTestResolver(t, intel, assets)

	event := testEvent()
	event.Actor.IP = ""
	event.Resource = models.Resource{}

	enriched := resolver.Enrich(context.Background(), event)
	if intel.callCount() != 0 || assets.callCount() != 0 {
		t.Fatalf("expected no lookups, got intel=%d assets=%d", intel.callCount(), assets.callCount())
	}
	if got := enriched.Completeness.Fraction(enriched.WantsIndicator(), enriched.WantsAsset()); got != 1 {
		t.Fatalf("events needing no lookups should be fully complete, got %v", got)
	}
}
