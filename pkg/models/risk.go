package models

import (
	"strings"
	"time"
)

// SeverityTier is a discrete risk level derived from the final score.
type SeverityTier string

// Severity tiers in ascending order.
const (
	TierLow      SeverityTier = "Low"
	TierMedium   SeverityTier = "Medium"
	TierHigh     SeverityTier = "High"
	TierCritical SeverityTier = "Critical"
)

// Rank orders tiers for cutoff comparisons. Unknown tiers rank lowest.
func (t SeverityTier) Rank() int {
	switch t {
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	case TierCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverityTier reads a tier name case-insensitively.
func ParseSeverityTier(v string) (SeverityTier, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low":
		return TierLow, true
	case "medium":
		return TierMedium, true
	case "high":
		return TierHigh, true
	case "critical":
		return TierCritical, true
	default:
		return "", false
	}
}

// MatchedRule is one rule outcome recorded for explainability.
// Skipped marks a rule that could not be evaluated rather than a match.
type MatchedRule struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Score    int    `json:"score"`
	Priority int    `json:"priority,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// RiskScore is the persisted scoring outcome for one logical event.
// Given the same ruleset version, model response, and enriched fields the
// record is identical on recomputation, which makes retries safe.
type RiskScore struct {
	TenantEventID   string        `json:"tenant_event_id"`
	TSIngested      time.Time     `json:"ts_ingested"`
	RuleScore       int           `json:"rule_score"`
	ModelScore      *float64      `json:"model_score,omitempty"`
	ModelConfidence float64       `json:"model_confidence"`
	RiskFinal       float64       `json:"risk_final"`
	SeverityTier    SeverityTier  `json:"severity_tier"`
	MatchedRules    []MatchedRule `json:"matched_rules,omitempty"`
	ModelVersion    string        `json:"model_version,omitempty"`
	RulesetVersion  string        `json:"ruleset_version,omitempty"`
	Degraded        []string      `json:"degraded,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Same reports whether two records describe the same scoring outcome,
// ignoring the volatile ingestion and retention timestamps.
func (r *RiskScore) Same(other *RiskScore) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.TenantEventID != other.TenantEventID ||
		r.RuleScore != other.RuleScore ||
		r.ModelConfidence != other.ModelConfidence ||
		r.RiskFinal != other.RiskFinal ||
		r.SeverityTier != other.SeverityTier ||
		r.ModelVersion != other.ModelVersion ||
		r.RulesetVersion != other.RulesetVersion {
		return false
	}
	if (r.ModelScore == nil) != (other.ModelScore == nil) {
		return false
	}
	if r.ModelScore != nil && *r.ModelScore != *other.ModelScore {
		return false
	}
	if len(r.MatchedRules) != len(other.MatchedRules) {
		return false
	}
	for i := range r.MatchedRules {
		if r.MatchedRules[i] != other.MatchedRules[i] {
			return false
		}
	}
	return true
}
