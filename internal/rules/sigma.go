package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedComplex int
	SkippedInvalid int
}

type compiledSigmaRule struct {
	rule  sigma.Rule
	eval  *sigmaevaluator.RuleEvaluator
	match models.MatchedRule
}

// SigmaEngine evaluates community sigma rules against single events,
// mapping the rule level onto a score contribution. Correlation rules
// (timeframes, aggregations) are out of scope and skipped at load.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// DefaultSigmaLevelScores maps sigma rule levels to score contributions.
var DefaultSigmaLevelScores = map[string]int{
	"informational": 5,
	"low":           10,
	"medium":        25,
	"high":          40,
	"critical":      50,
}

// NewSigmaEngine loads sigma rules from a file or directory and
// compiles evaluators. Unsupported or invalid rules are skipped and
// counted in stats.
func NewSigmaEngine(path string, levelScores map[string]int) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats
	if len(levelScores) == 0 {
		levelScores = DefaultSigmaLevelScores
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 256)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			logger.Warnf("skipping invalid sigma rule %s: %v", ruleFile, err)
			stats.SkippedInvalid++
			continue
		}
		if ok, reason := isSimpleSingleEventRule(rule); !ok {
			logger.Debugf("skipping sigma rule %s: %s", ruleFile, reason)
			stats.SkippedComplex++
			continue
		}

		compiled = append(compiled, compiledSigmaRule{
			rule:  rule,
			eval:  sigmaevaluator.ForRule(rule),
			match: matchedRuleFrom(rule, levelScores),
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// Evaluate applies all loaded sigma rules. A rule that errors at
// evaluation time is skipped for that event, not failed.
func (e *SigmaEngine) Evaluate(enriched *models.EnrichedEvent) Result {
	var out Result
	if e == nil || len(e.rules) == 0 {
		return out
	}

	fields := FieldMap(enriched)
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(e.ctx, fields)
		if err != nil {
			out.Matched = append(out.Matched, models.MatchedRule{
				ID:      rule.match.ID,
				Name:    rule.match.Name,
				Skipped: true,
			})
			continue
		}
		if res.Match {
			out.Matched = append(out.Matched, rule.match)
			out.Score += rule.match.Score
		}
	}
	return out
}

// Version identifies the sigma contribution in the ruleset version.
func (e *SigmaEngine) Version() string {
	return "sigma"
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}

	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func matchedRuleFrom(rule sigma.Rule, levelScores map[string]int) models.MatchedRule {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	score, ok := levelScores[level]
	if !ok {
		score = levelScores["medium"]
	}

	return models.MatchedRule{
		ID:       id,
		Name:     strings.TrimSpace(rule.Title),
		Score:    score,
		Priority: score,
	}
}
