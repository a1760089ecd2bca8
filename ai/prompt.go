package ai

import (
	"fmt"
	"strings"

	"caresignal.com/triage/triage"
)

// BuildPrompt constructs the deterministic four-section assessment prompt:
// patient symptoms, rule-based assessment, instructions, required response
// shape. The same report and rule result always produce the same prompt.
func BuildPrompt(report triage.SymptomReport, ruleResult triage.RuleResult) string {
	associated := "(none reported)"
	if len(report.AssociatedSymptoms) > 0 {
		associated = strings.Join(report.AssociatedSymptoms, ", ")
	}
	triggered := "(no rules triggered)"
	if len(ruleResult.TriggeredRuleIDs) > 0 {
		triggered = strings.Join(ruleResult.TriggeredRuleIDs, ", ")
	}

	return fmt.Sprintf(`PATIENT SYMPTOMS:
- Primary complaint: %s
- Duration: %s
- Severity (patient-reported, 1-10): %d
- Associated symptoms: %s

RULE-BASED ASSESSMENT:
- Urgency level: %s
- Score (0-100): %d
- Triggered rules: %s
- Reasoning: %s

INSTRUCTIONS:
Review the rule-based assessment against the reported symptoms. State how
confident you are in the assessment, whether you agree with it, your clinical
reasoning, and any additional considerations. If you disagree, recommend one
of: EMERGENCY, URGENT, ROUTINE, SELF_CARE.

RESPOND WITH ONLY THIS JSON OBJECT:
{
  "confidence": <number 0-100>,
  "agrees_with_rules": <boolean>,
  "clinical_reasoning": "<string>",
  "additional_considerations": "<string>",
  "recommended_urgency": "<EMERGENCY|URGENT|ROUTINE|SELF_CARE>"
}`,
		report.PrimaryComplaint,
		report.Duration,
		report.Severity,
		associated,
		ruleResult.Urgency,
		ruleResult.Score,
		triggered,
		ruleResult.Reasoning,
	)
}
