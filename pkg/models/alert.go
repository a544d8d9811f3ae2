package models

import "time"

// Alert is the structured notification for a high-risk scoring outcome.
type Alert struct {
	AlertID       string        `json:"alert_id"`
	TenantEventID string        `json:"tenant_event_id"`
	SeverityTier  SeverityTier  `json:"severity_tier"`
	RiskFinal     float64       `json:"risk_final"`
	MatchedRules  []MatchedRule `json:"matched_rules,omitempty"`
	Actor         Actor         `json:"actor"`
	Resource      Resource      `json:"resource"`
	TS            time.Time     `json:"ts"`
}
