package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Raghu-Nath97/secureops360/internal/logger"
	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// RuleSet defines declarative scoring rules loaded from YAML.
type RuleSet struct {
	Version  int          `yaml:"version"`
	MaxScore int          `yaml:"max_score"`
	Defaults RuleDefaults `yaml:"defaults"`
	Rules    []Rule       `yaml:"rules"`

	// Skipped records rules that failed validation at load time. They
	// are surfaced in every evaluation so scores stay explainable.
	Skipped []models.MatchedRule `yaml:"-"`
}

// RuleDefaults are fallback options for rules.
type RuleDefaults struct {
	Score    int `yaml:"score"`
	Priority int `yaml:"priority"`
}

// Rule is one scored predicate over enriched event fields. A terminal
// rule overrides the summed score and halts further evaluation.
type Rule struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Enabled  bool       `yaml:"enabled"`
	Priority int        `yaml:"priority"`
	Score    int        `yaml:"score"`
	Terminal bool       `yaml:"terminal"`
	When     *Condition `yaml:"when"`
}

// LoadRuleSet reads scoring rules from a YAML file. A structurally
// broken file is an error; an individually malformed rule is logged,
// dropped from evaluation, and recorded in Skipped.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	if rs.MaxScore <= 0 {
		rs.MaxScore = 100
	}
	if rs.Defaults.Score <= 0 {
		rs.Defaults.Score = 10
	}

	valid := make([]Rule, 0, len(rs.Rules))
	for i := range rs.Rules {
		r := rs.Rules[i]
		if r.ID == "" {
			r.ID = fmt.Sprintf("rule-%d", i+1)
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		if r.Score == 0 && !r.Terminal {
			r.Score = rs.Defaults.Score
		}
		if r.Priority == 0 {
			r.Priority = rs.Defaults.Priority
		}
		if err := validateRule(&r); err != nil {
			logger.Warnf("skipping malformed rule %s: %v", r.ID, err)
			rs.Skipped = append(rs.Skipped, models.MatchedRule{ID: r.ID, Name: r.Name, Skipped: true})
			continue
		}
		valid = append(valid, r)
	}
	rs.Rules = valid

	return &rs, nil
}

func validateRule(r *Rule) error {
	if r.When == nil {
		return fmt.Errorf("rule has no condition")
	}
	return validateCondition(r.When)
}

func validateCondition(c *Condition) error {
	groups := 0
	if len(c.All) > 0 {
		groups++
	}
	if len(c.Any) > 0 {
		groups++
	}
	if c.Not != nil {
		groups++
	}
	leaf := c.Field != "" || c.Op != ""

	switch {
	case groups > 1, groups == 1 && leaf:
		return fmt.Errorf("condition mixes group and leaf forms")
	case groups == 0 && !leaf:
		return fmt.Errorf("empty condition")
	case groups == 1:
		for i := range c.All {
			if err := validateCondition(&c.All[i]); err != nil {
				return err
			}
		}
		for i := range c.Any {
			if err := validateCondition(&c.Any[i]); err != nil {
				return err
			}
		}
		if c.Not != nil {
			return validateCondition(c.Not)
		}
		return nil
	}

	op := strings.ToLower(strings.TrimSpace(c.Op))
	if !validOp(op) {
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	c.Op = op
	if c.Field == "" {
		return fmt.Errorf("leaf condition has no field")
	}
	switch op {
	case OpPresent, OpAbsent:
		return nil
	case OpIn:
		if toList(c.Value) == nil {
			return fmt.Errorf("operator %q needs a list value", op)
		}
	default:
		if c.Value == nil {
			return fmt.Errorf("operator %q needs a value", op)
		}
	}
	return nil
}
