package models

import "time"

// Reputation verdicts derived from the numeric reputation score.
const (
	VerdictClean      = "clean"
	VerdictSuspicious = "suspicious"
	VerdictMalicious  = "malicious"
)

// ReputationVerdict maps a 0..100 reputation score onto a verdict band.
func ReputationVerdict(score int) string {
	switch {
	case score >= 80:
		return VerdictMalicious
	case score >= 40:
		return VerdictSuspicious
	default:
		return VerdictClean
	}
}

// Indicator is cached threat intel for a reputation key (IP, domain, hash).
// It is never served as fresh past ExpiresAt.
type Indicator struct {
	Indicator     string    `json:"indicator"`
	Reputation    int       `json:"reputation"`
	Verdict       string    `json:"verdict"`
	Categories    []string  `json:"categories,omitempty"`
	Source        string    `json:"source,omitempty"`
	Country       string    `json:"country,omitempty"`
	CountryCode   string    `json:"country_code,omitempty"`
	ASN           string    `json:"asn,omitempty"`
	Org           string    `json:"org,omitempty"`
	NotFound      bool      `json:"not_found,omitempty"`
	LastRefreshed time.Time `json:"last_refreshed"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Fresh reports whether the entry may still be served without a refresh.
func (i *Indicator) Fresh(now time.Time) bool {
	return i != nil && now.Before(i.ExpiresAt)
}

// AssetContext is cached ownership and criticality metadata for a
// tenant-scoped asset key. It has no TTL and is invalidated only by
// explicit update.
type AssetContext struct {
	TenantAssetID string    `json:"tenant_asset_id"`
	Criticality   int       `json:"criticality"`
	Owner         string    `json:"owner,omitempty"`
	Environment   string    `json:"environment,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	NotFound      bool      `json:"not_found,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Completeness records which enrichment lookups succeeded for one event.
type Completeness struct {
	IndicatorResolved bool `json:"indicator_resolved"`
	AssetResolved     bool `json:"asset_resolved"`
	IndicatorDegraded bool `json:"indicator_degraded,omitempty"`
	AssetDegraded     bool `json:"asset_degraded,omitempty"`
}

// Fraction returns the resolved share of the lookups the event needed.
// Lookups the event could not request (no actor IP, no resource) do not
// count against completeness.
func (c Completeness) Fraction(wantIndicator, wantAsset bool) float64 {
	want := 0
	got := 0
	if wantIndicator {
		want++
		if c.IndicatorResolved {
			got++
		}
	}
	if wantAsset {
		want++
		if c.AssetResolved {
			got++
		}
	}
	if want == 0 {
		return 1
	}
	return float64(got) / float64(want)
}

// EnrichedEvent is a SecurityEvent with resolved context attached. It is
// ephemeral within one processing pass and never persisted.
type EnrichedEvent struct {
	Event        *SecurityEvent `json:"event"`
	Indicator    *Indicator     `json:"indicator,omitempty"`
	Asset        *AssetContext  `json:"asset,omitempty"`
	Completeness Completeness   `json:"completeness"`
}

// WantsIndicator reports whether the event has an indicator key to resolve.
func (e *EnrichedEvent) WantsIndicator() bool {
	return e.Event != nil && e.Event.Actor.IP != ""
}

// WantsAsset reports whether the event has an asset key to resolve.
func (e *EnrichedEvent) WantsAsset() bool {
	return e.Event != nil && e.Event.AssetKey() != ""
}
