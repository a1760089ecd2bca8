package triage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog() []Rule {
	return []Rule{
		{
			ID:        "EMERGENCY_COLLAPSE",
			Name:      "Collapse",
			Condition: Condition{Keywords: []string{"collapsed"}},
			Urgency:   UrgencyEmergency,
			Score:     90,
			Reasoning: "Collapse requires emergency assessment.",
		},
		{
			ID:        "SELFCARE_COLLAPSE_NOTE",
			Name:      "Collapse note",
			Condition: Condition{Keywords: []string{"collapsed"}},
			Urgency:   UrgencySelfCare,
			Score:     99,
			Reasoning: "Self care note.",
		},
	}
}

func mustEngine(t *testing.T, rules []Rule) *Engine {
	t.Helper()
	engine, err := NewEngine(rules)
	require.NoError(t, err)
	return engine
}

func TestAssessIsDeterministic(t *testing.T) {
	engine := mustEngine(t, DefaultCatalog())
	report := SymptomReport{
		PrimaryComplaint:   "persistent cough and mild fever",
		Duration:           "5 days",
		Severity:           5,
		AssociatedSymptoms: []string{"fatigue"},
	}
	first := engine.Assess(report)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, engine.Assess(report))
	}
}

func TestAssessDefaultsToRoutine(t *testing.T) {
	engine := mustEngine(t, DefaultCatalog())
	result := engine.Assess(SymptomReport{
		PrimaryComplaint: "qqq",
		Duration:         "1 hour",
		Severity:         5,
	})
	require.Equal(t, UrgencyRoutine, result.Urgency)
	require.Equal(t, 50, result.Score)
	require.Empty(t, result.TriggeredRuleIDs)
	require.NotEmpty(t, result.Reasoning)
}

func TestUrgencyFromPriorityScoreFromMax(t *testing.T) {
	// The SELF_CARE rule carries the higher score, the EMERGENCY rule must
	// still supply the urgency while the score comes from the SELF_CARE rule.
	engine := mustEngine(t, testCatalog())
	result := engine.Assess(SymptomReport{
		PrimaryComplaint: "collapsed in the kitchen",
		Severity:         5,
	})
	require.Equal(t, UrgencyEmergency, result.Urgency)
	require.Equal(t, 99, result.Score)
	require.ElementsMatch(t, []string{"EMERGENCY_COLLAPSE", "SELFCARE_COLLAPSE_NOTE"}, result.TriggeredRuleIDs)
}

func TestSameUrgencyTieBreaksByCatalogOrder(t *testing.T) {
	rules := []Rule{
		{
			ID:        "EMERGENCY_FIRST",
			Name:      "First",
			Condition: Condition{Keywords: []string{"dizzy"}},
			Urgency:   UrgencyEmergency,
			Score:     91,
			Reasoning: "first reasoning",
		},
		{
			ID:        "EMERGENCY_SECOND",
			Name:      "Second",
			Condition: Condition{Keywords: []string{"dizzy"}},
			Urgency:   UrgencyEmergency,
			Score:     99,
			Reasoning: "second reasoning",
		},
	}
	engine := mustEngine(t, rules)
	result := engine.Assess(SymptomReport{PrimaryComplaint: "dizzy", Severity: 5})
	require.Equal(t, 99, result.Score)
	require.Contains(t, result.Reasoning, "Primary concern: first reasoning")
}

func TestSingleRuleReasoningIsVerbatim(t *testing.T) {
	engine := mustEngine(t, DefaultCatalog())
	result := engine.Assess(SymptomReport{
		PrimaryComplaint: "itchy skin",
		Duration:         "1 hour",
		Severity:         8,
	})
	require.Equal(t, []string{"ROUTINE_RASH"}, result.TriggeredRuleIDs)
	require.Equal(t, "Most rashes are suitable for routine review unless spreading rapidly.", result.Reasoning)
}

func TestNeedsAIAssistanceScoreBoundary(t *testing.T) {
	cases := []struct {
		score    int
		expected bool
	}{
		{39, false},
		{40, true},
		{60, true},
		{61, false},
	}
	for _, tc := range cases {
		rules := []Rule{{
			ID:        "URGENT_HEADACHE",
			Name:      "Headache",
			Condition: Condition{Keywords: []string{"headache"}},
			Urgency:   UrgencyUrgent,
			Score:     tc.score,
			Reasoning: "headache",
		}}
		engine := mustEngine(t, rules)
		report := SymptomReport{
			PrimaryComplaint:   "headache",
			Duration:           "1 hour",
			Severity:           5,
			AssociatedSymptoms: []string{"nausea"},
		}
		result := engine.Assess(report)
		require.Equal(t, tc.score, result.Score)
		require.Equal(t, tc.expected, engine.NeedsAIAssistance(result, report),
			"score %d", tc.score)
	}
}

func TestNeedsAIAssistanceConflictingUrgencies(t *testing.T) {
	engine := mustEngine(t, testCatalog())
	report := SymptomReport{PrimaryComplaint: "collapsed", Severity: 5}
	result := engine.Assess(report)
	// Score 99 is outside the uncertainty band and the complaint is neither
	// vague nor complex; only the urgency conflict can request assistance.
	require.True(t, engine.NeedsAIAssistance(result, report))
}

func TestNeedsAIAssistanceComplexSymptoms(t *testing.T) {
	rules := []Rule{{
		ID:        "EMERGENCY_COLLAPSE",
		Name:      "Collapse",
		Condition: Condition{Keywords: []string{"collapsed"}},
		Urgency:   UrgencyEmergency,
		Score:     90,
		Reasoning: "collapse",
	}}
	engine := mustEngine(t, rules)
	report := SymptomReport{
		PrimaryComplaint:   "collapsed",
		Severity:           9,
		AssociatedSymptoms: []string{"a", "b", "c", "d"},
	}
	result := engine.Assess(report)
	require.True(t, engine.NeedsAIAssistance(result, report))

	report.AssociatedSymptoms = report.AssociatedSymptoms[:3]
	require.False(t, engine.NeedsAIAssistance(result, report))
}

func TestSevereChestPainScenario(t *testing.T) {
	engine := mustEngine(t, DefaultCatalog())
	report := SymptomReport{
		PrimaryComplaint:   "severe chest pain",
		Duration:           "30 minutes",
		Severity:           9,
		AssociatedSymptoms: []string{},
	}
	result := engine.Assess(report)
	require.Equal(t, UrgencyEmergency, result.Urgency)
	require.Equal(t, 95, result.Score)
	require.Equal(t, []string{"EMERGENCY_CHEST_PAIN"}, result.TriggeredRuleIDs)
	require.False(t, engine.NeedsAIAssistance(result, report))
}

func TestVagueComplaintScenario(t *testing.T) {
	engine := mustEngine(t, DefaultCatalog())
	report := SymptomReport{
		PrimaryComplaint:   "I feel a bit off and tired",
		Duration:           "2 days",
		Severity:           4,
		AssociatedSymptoms: []string{"fatigue", "nausea", "dizziness", "headache"},
	}
	result := engine.Assess(report)
	require.True(t, engine.NeedsAIAssistance(result, report))

	// Each heuristic requests assistance independently: vague language and
	// symptom count hold even when the score is forced out of the band.
	outOfBand := result
	outOfBand.Score = 95
	require.True(t, engine.NeedsAIAssistance(outOfBand, report))
}
