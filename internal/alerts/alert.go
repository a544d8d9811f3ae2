// Package alerts dispatches structured alerts for high-severity scores.
package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// AlertWriter delivers alert batches to the notification channel.
type AlertWriter interface {
	WriteAlerts(alerts []*models.Alert) error
	Close() error
}

// FromScore builds the outgoing alert for a freshly stored risk score.
// Skipped rule markers are explainability metadata, not matches, and
// are left out of the alert.
func FromScore(event *models.SecurityEvent, score *models.RiskScore, now time.Time) *models.Alert {
	matched := make([]models.MatchedRule, 0, len(score.MatchedRules))
	for _, rule := range score.MatchedRules {
		if !rule.Skipped {
			matched = append(matched, rule)
		}
	}
	return &models.Alert{
		AlertID:       uuid.NewString(),
		TenantEventID: score.TenantEventID,
		SeverityTier:  score.SeverityTier,
		RiskFinal:     score.RiskFinal,
		MatchedRules:  matched,
		Actor:         event.Actor,
		Resource:      event.Resource,
		TS:            now.UTC(),
	}
}
