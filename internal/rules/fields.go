package rules

import (
	"strings"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// FieldMap flattens an enriched event into dotted lookup keys for rule
// evaluation. Raw payload keys are kept both bare and under "payload."
// so sigma rules can match the original field names. Context that did
// not resolve is left absent, never zeroed.
func FieldMap(enriched *models.EnrichedEvent) map[string]interface{} {
	if enriched == nil || enriched.Event == nil {
		return map[string]interface{}{}
	}
	event := enriched.Event

	buf := make(map[string]interface{}, len(event.Payload)*2+24)
	flattenPayload(buf, "payload", event.Payload)
	for k, v := range event.Payload {
		if _, exists := buf[k]; !exists {
			buf[k] = v
		}
	}

	buf["event.id"] = event.EventID
	buf["event.tenant_id"] = event.TenantID
	buf["event.source"] = event.Source
	buf["event.action"] = event.Action
	buf["event.severity_hint"] = event.SeverityHint
	buf["event.actor.type"] = event.Actor.Type
	buf["event.actor.id"] = event.Actor.ID
	if event.Actor.IP != "" {
		buf["event.actor.ip"] = event.Actor.IP
	}
	if event.Resource.Type != "" {
		buf["event.resource.type"] = event.Resource.Type
		buf["event.resource.id"] = event.Resource.ID
	}

	ts := event.ArrivalTS.UTC()
	buf["event.time.hour"] = ts.Hour()
	buf["event.time.weekday"] = strings.ToLower(ts.Weekday().String())
	buf["event.time.weekend"] = ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday
	buf["event.time.business_hours"] = ts.Hour() >= 9 && ts.Hour() <= 17

	if ind := enriched.Indicator; ind != nil {
		buf["indicator.reputation"] = ind.Reputation
		buf["indicator.verdict"] = ind.Verdict
		buf["indicator.source"] = ind.Source
		if len(ind.Categories) > 0 {
			buf["indicator.categories"] = ind.Categories
		}
		if ind.Country != "" {
			buf["indicator.country"] = ind.Country
		}
		if ind.CountryCode != "" {
			buf["indicator.country_code"] = ind.CountryCode
		}
		if ind.ASN != "" {
			buf["indicator.asn"] = ind.ASN
		}
	}

	if asset := enriched.Asset; asset != nil {
		buf["asset.criticality"] = asset.Criticality
		if asset.Owner != "" {
			buf["asset.owner"] = asset.Owner
		}
		if asset.Environment != "" {
			buf["asset.environment"] = asset.Environment
		}
		if len(asset.Tags) > 0 {
			buf["asset.tags"] = asset.Tags
		}
	}

	buf["enrichment.completeness"] = enriched.Completeness.Fraction(enriched.WantsIndicator(), enriched.WantsAsset())
	buf["enrichment.degraded"] = enriched.Completeness.IndicatorDegraded || enriched.Completeness.AssetDegraded

	return buf
}

func flattenPayload(buf map[string]interface{}, prefix string, value interface{}) {
	switch val := value.(type) {
	case map[string]interface{}:
		for k, v := range val {
			flattenPayload(buf, prefix+"."+k, v)
		}
	default:
		buf[prefix] = value
	}
}
