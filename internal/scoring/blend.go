package scoring

import (
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Thresholds are the severity tier boundaries over the final score.
// A score at or above a boundary lands in that tier.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// BlendSettings control score blending.
type BlendSettings struct {
	RuleWeight  float64
	ModelWeight float64
	MaxScore    float64
	Thresholds  Thresholds
}

// Blender combines the rule and model sub-scores into the final risk
// score and severity tier. The blend is pure arithmetic: identical
// inputs always produce the identical record.
type Blender struct {
	settings BlendSettings
}

// NewBlender creates a blender, filling unset options with defaults.
func NewBlender(settings BlendSettings) *Blender {
	if settings.RuleWeight == 0 {
		settings.RuleWeight = 1
	}
	if settings.ModelWeight == 0 {
		settings.ModelWeight = 1
	}
	if settings.MaxScore <= 0 {
		settings.MaxScore = 100
	}
	if settings.Thresholds.Medium <= 0 {
		settings.Thresholds.Medium = 50
	}
	if settings.Thresholds.High <= 0 {
		settings.Thresholds.High = 80
	}
	if settings.Thresholds.Critical <= 0 {
		settings.Thresholds.Critical = 95
	}
	return &Blender{settings: settings}
}

// Blend computes riskFinal = ruleScore + confidence*modelScore with the
// configured weights applied, clamped to [0, MaxScore]. An absent model
// score contributes nothing, leaving the rule score to stand alone.
func (b *Blender) Blend(ruleScore int, model ModelResult) (float64, models.SeverityTier) {
	risk := b.settings.RuleWeight * float64(ruleScore)
	if model.Score != nil {
		risk += model.Confidence * b.settings.ModelWeight * (*model.Score)
	}

	if risk < 0 {
		risk = 0
	}
	if risk > b.settings.MaxScore {
		risk = b.settings.MaxScore
	}
	return risk, b.Tier(risk)
}

// Tier maps a final score onto its severity tier.
func (b *Blender) Tier(risk float64) models.SeverityTier {
	switch {
	case risk >= b.settings.Thresholds.Critical:
		return models.TierCritical
	case risk >= b.settings.Thresholds.High:
		return models.TierHigh
	case risk >= b.settings.Thresholds.Medium:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// AlertWorthy reports whether the tier meets the dispatch cutoff.
func AlertWorthy(tier, cutoff models.SeverityTier) bool {
	return tier.Rank() >= cutoff.Rank() && cutoff.Rank() > 0
}
