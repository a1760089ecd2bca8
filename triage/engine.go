package triage

import (
	"fmt"
	"strings"
)

// vagueLanguageWords flag complaints that are too unspecific for the rule
// catalog to classify with confidence.
var vagueLanguageWords = []string{"not feeling well", "tired", "off", "strange feeling", "weird", "unwell"}

const (
	// Reports matching no rules fall back to a routine verdict instead of
	// failing; a mid-range score keeps them inside the uncertainty band.
	defaultScore = 50

	uncertainScoreLow  = 40
	uncertainScoreHigh = 60

	complexSymptomCount = 3
)

// Engine evaluates symptom reports against an immutable rule catalog.
// It holds no mutable state after construction and is safe to share
// across concurrent requests.
type Engine struct {
	rules     []Rule
	urgencies map[string]Urgency
}

// NewEngine builds an engine over a copy of the given catalog. The catalog
// must pass ValidateCatalog.
func NewEngine(rules []Rule) (*Engine, error) {
	if err := ValidateCatalog(rules); err != nil {
		return nil, err
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	urgencies := make(map[string]Urgency, len(copied))
	for _, rule := range copied {
		urgencies[rule.ID] = rule.Urgency
	}
	return &Engine{rules: copied, urgencies: urgencies}, nil
}

// Rules returns the catalog in evaluation order.
func (e *Engine) Rules() []Rule {
	copied := make([]Rule, len(e.rules))
	copy(copied, e.rules)
	return copied
}

// Assess evaluates every rule against the report and reduces the triggered
// set to a single verdict. The urgency comes from the highest-priority
// triggered rule (catalog order breaks ties), while the score is the maximum
// score among all triggered rules, which may come from a different rule than
// the one supplying the urgency.
func (e *Engine) Assess(report SymptomReport) RuleResult {
	var triggered []Rule
	for _, rule := range e.rules {
		if rule.Condition.Matches(report) {
			triggered = append(triggered, rule)
		}
	}

	if len(triggered) == 0 {
		return RuleResult{
			Urgency:          UrgencyRoutine,
			Score:            defaultScore,
			TriggeredRuleIDs: []string{},
			Reasoning:        "No clinical rules triggered; defaulting to routine assessment.",
		}
	}

	primary := triggered[0]
	maxScore := triggered[0].Score
	ids := make([]string, len(triggered))
	for i, rule := range triggered {
		ids[i] = rule.ID
		if rule.Urgency.Priority() > primary.Urgency.Priority() {
			primary = rule
		}
		if rule.Score > maxScore {
			maxScore = rule.Score
		}
	}

	return RuleResult{
		Urgency:          primary.Urgency,
		Score:            maxScore,
		TriggeredRuleIDs: ids,
		Reasoning:        synthesizeReasoning(triggered, primary),
	}
}

func synthesizeReasoning(triggered []Rule, primary Rule) string {
	if len(triggered) == 1 {
		return primary.Reasoning
	}
	names := make([]string, len(triggered))
	for i, rule := range triggered {
		names[i] = rule.Name
	}
	return fmt.Sprintf(
		"Multiple clinical rules triggered (%s). Primary concern: %s",
		strings.Join(names, "; "),
		primary.Reasoning,
	)
}

// NeedsAIAssistance decides whether a supplementary AI assessment is
// warranted. It is a pure predicate over the rule result and the report:
// conflicting urgencies among triggered rules, a score inside the
// uncertainty band, a complex symptom picture, or vague complaint language
// each independently request assistance.
func (e *Engine) NeedsAIAssistance(result RuleResult, report SymptomReport) bool {
	if e.hasConflictingUrgencies(result.TriggeredRuleIDs) {
		return true
	}
	if result.Score >= uncertainScoreLow && result.Score <= uncertainScoreHigh {
		return true
	}
	if len(report.AssociatedSymptoms) > complexSymptomCount {
		return true
	}
	return hasVagueLanguage(report.PrimaryComplaint)
}

func (e *Engine) hasConflictingUrgencies(triggeredRuleIDs []string) bool {
	var first Urgency
	for _, id := range triggeredRuleIDs {
		urgency, ok := e.urgencies[id]
		if !ok {
			continue
		}
		if first == "" {
			first = urgency
			continue
		}
		if urgency != first {
			return true
		}
	}
	return false
}

func hasVagueLanguage(complaint string) bool {
	complaint = strings.ToLower(complaint)
	for _, word := range vagueLanguageWords {
		if strings.Contains(complaint, word) {
			return true
		}
	}
	return false
}
