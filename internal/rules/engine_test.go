package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// wednesdayMorning is inside business hours and not a weekend.
var wednesdayMorning = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

func enrichedFixture(mut func(*models.EnrichedEvent)) *models.EnrichedEvent {
	enriched := &models.EnrichedEvent{
		Event: &models.SecurityEvent{
			EventID:      "evt-1",
			TenantID:     "acme",
			Source:       "auth-service",
			Actor:        models.Actor{Type: "user", ID: "alice", IP: "203.0.113.10"},
			Action:       "login_success",
			Resource:     models.Resource{Type: "vm", ID: "web-1"},
			SeverityHint: 1,
			ArrivalTS:    wednesdayMorning,
		},
	}
	if mut != nil {
		mut(enriched)
	}
	return enriched
}

func loadEngine(t *testing.T) *RulesetEngine {
	t.Helper()
	rs, err := LoadRuleSet("testdata/rules.yaml")
	require.NoError(t, err)
	require.Len(t, rs.Rules, 7)
	require.Empty(t, rs.Skipped)
	return NewRulesetEngine(rs)
}

func matchedIDs(matched []models.MatchedRule) []string {
	ids := make([]string, 0, len(matched))
	for _, m := range matched {
		if !m.Skipped {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func TestRulesetScoresKnownScenarios(t *testing.T) {
	engine := loadEngine(t)

	cases := []struct {
		name      string
		mut       func(*models.EnrichedEvent)
		wantScore int
		wantIDs   []string
	}{
		{
			name: "malicious indicator",
			mut: func(e *models.EnrichedEvent) {
				e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95}
			},
			wantScore: 50,
			wantIDs:   []string{"malicious_ip_access"},
		},
		{
			name: "failed login from suspicious address",
			mut: func(e *models.EnrichedEvent) {
				e.Event.Action = "login_failed"
				e.Indicator = &models.Indicator{Verdict: models.VerdictSuspicious, Reputation: 55}
			},
			wantScore: 30,
			wantIDs:   []string{"failed_login_suspicious_ip"},
		},
		{
			name: "admin action from high-risk country",
			mut: func(e *models.EnrichedEvent) {
				e.Event.Action = "admin_login"
				e.Indicator = &models.Indicator{Verdict: models.VerdictClean, CountryCode: "CN"}
			},
			wantScore: 40,
			wantIDs:   []string{"high_risk_country_admin"},
		},
		{
			name: "critical production resource in business hours",
			mut: func(e *models.EnrichedEvent) {
				e.Event.Resource = models.Resource{Type: "database", ID: "users-db"}
				e.Asset = &models.AssetContext{Criticality: 5, Environment: "prod"}
			},
			wantScore: 20,
			wantIDs:   []string{"critical_resource_access"},
		},
		{
			name: "high severity hint",
			mut: func(e *models.EnrichedEvent) {
				e.Event.SeverityHint = 4
			},
			wantScore: 25,
			wantIDs:   []string{"high_severity_event"},
		},
		{
			name: "weekend admin activity",
			mut: func(e *models.EnrichedEvent) {
				e.Event.Action = "root_shell"
				e.Event.ArrivalTS = time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)
			},
			wantScore: 15,
			wantIDs:   []string{"weekend_admin_activity"},
		},
		{
			name: "off-hours staging database access",
			mut: func(e *models.EnrichedEvent) {
				e.Event.Resource = models.Resource{Type: "rds", ID: "orders"}
				e.Event.ArrivalTS = time.Date(2025, 6, 4, 3, 0, 0, 0, time.UTC)
				e.Asset = &models.AssetContext{Criticality: 3, Environment: "staging"}
			},
			wantScore: 10,
			wantIDs:   []string{"off_hours_activity"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := engine.Evaluate(enrichedFixture(tc.mut))
			require.Equal(t, tc.wantScore, res.Score)
			require.ElementsMatch(t, tc.wantIDs, matchedIDs(res.Matched))
			require.False(t, res.Terminal)
		})
	}
}

func TestOverlappingMatchesSumAndCapAtMaxScore(t *testing.T) {
	engine := loadEngine(t)

	res := engine.Evaluate(enrichedFixture(func(e *models.EnrichedEvent) {
		e.Event.Action = "admin_password_reset"
		e.Event.SeverityHint = 5
		e.Event.Resource = models.Resource{Type: "database", ID: "users-db"}
		e.Event.ArrivalTS = time.Date(2025, 6, 7, 3, 0, 0, 0, time.UTC)
		e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95, CountryCode: "RU"}
		e.Asset = &models.AssetContext{Criticality: 5, Environment: "prod"}
	}))

	require.Equal(t, 100, res.Score)
	require.ElementsMatch(t, []string{
		"malicious_ip_access",
		"high_risk_country_admin",
		"high_severity_event",
		"critical_resource_access",
		"weekend_admin_activity",
		"off_hours_activity",
	}, matchedIDs(res.Matched))
}

func TestMatchesAreOrderedByPriorityForReporting(t *testing.T) {
	engine := loadEngine(t)

	res := engine.Evaluate(enrichedFixture(func(e *models.EnrichedEvent) {
		e.Event.SeverityHint = 5
		e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95}
	}))

	require.Len(t, res.Matched, 2)
	require.Equal(t, "malicious_ip_access", res.Matched[0].ID)
	require.Equal(t, "high_severity_event", res.Matched[1].ID)
}

func TestTerminalRuleOverridesAndHaltsEvaluation(t *testing.T) {
	rs := &RuleSet{
		Version:  2,
		MaxScore: 100,
		Rules: []Rule{
			{
				ID:       "allowlisted_scanner",
				Name:     "Approved vulnerability scanner",
				Enabled:  true,
				Terminal: true,
				Score:    0,
				When:     &Condition{Field: "event.actor.id", Op: OpEq, Value: "scanner-7"},
			},
			{
				ID:      "malicious_ip",
				Enabled: true,
				Score:   50,
				When:    &Condition{Field: "indicator.verdict", Op: OpEq, Value: "malicious"},
			},
		},
	}
	engine := NewRulesetEngine(rs)

	res := engine.Evaluate(enrichedFixture(func(e *models.EnrichedEvent) {
		e.Event.Actor.ID = "scanner-7"
		e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95}
	}))

	require.True(t, res.Terminal)
	require.Equal(t, 0, res.Score)
	require.Equal(t, []string{"allowlisted_scanner"}, matchedIDs(res.Matched))
}

func TestMalformedRulesAreSkippedAndRecorded(t *testing.T) {
	rs, err := LoadRuleSet("testdata/mixed_validity.yaml")
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	require.Len(t, rs.Skipped, 2)

	engine := NewRulesetEngine(rs)
	res := engine.Evaluate(enrichedFixture(func(e *models.EnrichedEvent) {
		e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95}
	}))

	require.Equal(t, 50, res.Score)

	skipped := make([]string, 0, 2)
	for _, m := range res.Matched {
		if m.Skipped {
			skipped = append(skipped, m.ID)
		}
	}
	require.ElementsMatch(t, []string{"bad_operator", "missing_condition"}, skipped)
}

func TestStructurallyBrokenRuleFileFailsToLoad(t *testing.T) {
	_, err := LoadRuleSet("testdata/broken.yaml")
	require.Error(t, err)
}

func TestMissingContextNeverMatches(t *testing.T) {
	engine := loadEngine(t)

	// No indicator and no asset resolved: only time/severity rules can fire.
	res := engine.Evaluate(enrichedFixture(nil))
	require.Zero(t, res.Score)
	require.Empty(t, matchedIDs(res.Matched))
}

type stubEngine struct {
	result Result
	calls  int
}

func (s *stubEngine) Evaluate(enriched *models.EnrichedEvent) Result {
	s.calls++
	return s.result
}

func (s *stubEngine) Version() string { return "stub" }

func TestChainSumsEngineScoresUnderOneCap(t *testing.T) {
	engine := loadEngine(t)
	extra := &stubEngine{result: Result{Score: 60, Matched: []models.MatchedRule{{ID: "stub_rule", Score: 60}}}}

	chain := NewChain(engine.MaxScore(), engine, extra)
	res := chain.Evaluate(enrichedFixture(func(e *models.EnrichedEvent) {
		e.Indicator = &models.Indicator{Verdict: models.VerdictMalicious, Reputation: 95}
	}))

	require.Equal(t, 100, res.Score)
	require.Contains(t, matchedIDs(res.Matched), "stub_rule")
	require.Equal(t, "1+stub", chain.Version())
}

func TestChainStopsAtTerminalResult(t *testing.T) {
	first := &stubEngine{result: Result{Score: 0, Terminal: true, Matched: []models.MatchedRule{{ID: "allow", Terminal: true}}}}
	second := &stubEngine{result: Result{Score: 50}}

	chain := NewChain(100, first, second)
	res := chain.Evaluate(enrichedFixture(nil))

	require.True(t, res.Terminal)
	require.Zero(t, res.Score)
	require.Zero(t, second.calls)
}
