package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Result is the rule-based sub-score for one event.
type Result struct {
	Score   int
	Matched []models.MatchedRule

	// Terminal reports that a terminal rule fired and overrode the
	// summed score.
	Terminal bool
}

// Engine scores enriched events.
type Engine interface {
	Evaluate(enriched *models.EnrichedEvent) Result
	Version() string
}

// NoopEngine scores nothing.
type NoopEngine struct{}

// Evaluate returns an empty result.
func (n *NoopEngine) Evaluate(enriched *models.EnrichedEvent) Result { return Result{} }

// Version returns the empty version.
func (n *NoopEngine) Version() string { return "" }

// RulesetEngine evaluates a declarative ruleset. Evaluation is total
// and deterministic: every enabled rule runs in file order, non-terminal
// scores sum capped at the ruleset maximum, and a terminal match
// overrides the score and halts further evaluation.
type RulesetEngine struct {
	ruleset *RuleSet
}

// NewRulesetEngine wraps a loaded ruleset.
func NewRulesetEngine(ruleset *RuleSet) *RulesetEngine {
	return &RulesetEngine{ruleset: ruleset}
}

// Evaluate applies every rule to the enriched event.
func (e *RulesetEngine) Evaluate(enriched *models.EnrichedEvent) Result {
	fields := FieldMap(enriched)

	var res Result
	for i := range e.ruleset.Rules {
		rule := &e.ruleset.Rules[i]
		if !rule.Enabled {
			continue
		}
		if !rule.When.Eval(fields) {
			continue
		}
		res.Matched = append(res.Matched, models.MatchedRule{
			ID:       rule.ID,
			Name:     rule.Name,
			Score:    rule.Score,
			Priority: rule.Priority,
			Terminal: rule.Terminal,
		})
		if rule.Terminal {
			res.Score = rule.Score
			res.Terminal = true
			break
		}
		res.Score += rule.Score
	}

	if !res.Terminal && res.Score > e.ruleset.MaxScore {
		res.Score = e.ruleset.MaxScore
	}
	if res.Score < 0 {
		res.Score = 0
	}

	res.Matched = append(res.Matched, e.ruleset.Skipped...)
	sortForReporting(res.Matched)
	return res
}

// Version returns the ruleset version from the rule file.
func (e *RulesetEngine) Version() string {
	return strconv.Itoa(e.ruleset.Version)
}

// MaxScore returns the configured score cap.
func (e *RulesetEngine) MaxScore() int {
	return e.ruleset.MaxScore
}

// Chain evaluates several engines as one. Scores sum capped at
// maxScore; a terminal result from any engine overrides the total and
// stops the chain.
type Chain struct {
	engines  []Engine
	maxScore int
}

// NewChain combines engines under one score cap.
func NewChain(maxScore int, engines ...Engine) *Chain {
	if maxScore <= 0 {
		maxScore = 100
	}
	return &Chain{engines: engines, maxScore: maxScore}
}

// Evaluate runs each engine in order.
func (c *Chain) Evaluate(enriched *models.EnrichedEvent) Result {
	var out Result
	for _, engine := range c.engines {
		res := engine.Evaluate(enriched)
		out.Matched = append(out.Matched, res.Matched...)
		if res.Terminal {
			out.Score = res.Score
			out.Terminal = true
			break
		}
		out.Score += res.Score
	}
	if !out.Terminal && out.Score > c.maxScore {
		out.Score = c.maxScore
	}
	if out.Score < 0 {
		out.Score = 0
	}
	sortForReporting(out.Matched)
	return out
}

// Version joins the member engine versions.
func (c *Chain) Version() string {
	parts := make([]string, 0, len(c.engines))
	for _, engine := range c.engines {
		if v := engine.Version(); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "+")
}

// sortForReporting orders matches by priority, then ID, for stable
// explainability output. Ordering never affects the score.
func sortForReporting(matched []models.MatchedRule) {
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
}
