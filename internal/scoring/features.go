package scoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

var highRiskCountries = map[string]bool{
	"CN": true, "RU": true, "KP": true, "IR": true, "XX": true,
}

var criticalResources = map[string]bool{
	"database": true, "s3": true, "rds": true,
}

// Features is the numeric feature vector handed to the model. Context
// that did not resolve contributes no features at all, so the model
// sees "unknown" rather than a zeroed signal.
type Features map[string]float64

// ExtractFeatures derives the model feature vector from an enriched
// event. Scalar features are normalized to 0..1; flags are 0 or 1.
// Time features come from the event's arrival timestamp so recomputing
// the same event yields the same vector.
func ExtractFeatures(enriched *models.EnrichedEvent) Features {
	features := make(Features, 16)
	event := enriched.Event

	if ind := enriched.Indicator; ind != nil {
		features["rep_score"] = float64(ind.Reputation) / 100.0
		features["is_malicious"] = boolFeature(ind.Verdict == models.VerdictMalicious)
		features["is_suspicious"] = boolFeature(ind.Verdict == models.VerdictSuspicious)
		features["is_high_risk_country"] = boolFeature(highRiskCountries[ind.CountryCode])
		if asn, ok := parseASN(ind.ASN); ok {
			features["asn"] = asn
		}
	}

	if asset := enriched.Asset; asset != nil {
		features["asset_criticality"] = float64(asset.Criticality) / 5.0
		features["is_prod_environment"] = boolFeature(asset.Environment == "prod")
	}

	ts := event.ArrivalTS.UTC()
	features["hour_of_day"] = float64(ts.Hour()) / 24.0
	features["day_of_week"] = float64(mondayIndexed(ts.Weekday())) / 7.0
	features["is_weekend"] = boolFeature(ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday)
	features["is_business_hours"] = boolFeature(ts.Hour() >= 9 && ts.Hour() <= 17)

	action := strings.ToLower(event.Action)
	features["is_login_action"] = boolFeature(strings.Contains(action, "login"))
	features["is_failed_action"] = boolFeature(strings.Contains(action, "fail"))
	features["is_admin_action"] = boolFeature(strings.Contains(action, "admin") || strings.Contains(action, "root"))

	features["is_critical_resource"] = boolFeature(criticalResources[strings.ToLower(event.Resource.Type)])
	features["severity_hint"] = float64(event.SeverityHint) / 5.0

	return features
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// mondayIndexed maps Go's Sunday-first weekday onto a Monday-first
// index so is_weekend and day_of_week agree.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func parseASN(raw string) (float64, bool) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "AS")
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}
