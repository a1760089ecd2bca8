package triage

// Urgency is the clinical urgency classification of an episode.
type Urgency string

const (
	UrgencyEmergency Urgency = "EMERGENCY"
	UrgencyUrgent    Urgency = "URGENT"
	UrgencyRoutine   Urgency = "ROUTINE"
	UrgencySelfCare  Urgency = "SELF_CARE"
)

// Priority orders urgencies by descending clinical priority.
// A zero priority means the value is unknown.
func (u Urgency) Priority() int {
	switch u {
	case UrgencyEmergency:
		return 4
	case UrgencyUrgent:
		return 3
	case UrgencyRoutine:
		return 2
	case UrgencySelfCare:
		return 1
	}
	return 0
}

func (u Urgency) Valid() bool {
	return u.Priority() > 0
}

// ParseUrgency maps a raw string onto a known urgency value.
func ParseUrgency(raw string) (Urgency, bool) {
	u := Urgency(raw)
	return u, u.Valid()
}

// SymptomReport is the patient-submitted input. It is never mutated after
// submission. Severity is semantically 1-10 but the engine does not
// range-check it; garbage input degrades to the default routine verdict.
type SymptomReport struct {
	PrimaryComplaint   string   `json:"primary_complaint"`
	Duration           string   `json:"duration"`
	Severity           int      `json:"severity"`
	AssociatedSymptoms []string `json:"associated_symptoms"`
}

// RuleResult is the rule engine's verdict for a single evaluation.
type RuleResult struct {
	Urgency          Urgency  `json:"urgency_level"`
	Score            int      `json:"score"`
	TriggeredRuleIDs []string `json:"triggered_rule_ids"`
	Reasoning        string   `json:"reasoning"`
}

// AIAssessment is the supplementary model opinion, at most one per episode.
type AIAssessment struct {
	Used               bool     `json:"used"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
	AgreesWithRules    bool     `json:"agrees_with_rules"`
	RecommendedUrgency *Urgency `json:"recommended_urgency,omitempty"`
	ModelID            string   `json:"model_id"`
	Timestamp          string   `json:"timestamp"`
}

// HumanValidation is added by the supervisor review workflow after the
// automated verdict has been produced.
type HumanValidation struct {
	SupervisorID string   `json:"supervisor_id"`
	Approved     bool     `json:"approved"`
	Urgency      *Urgency `json:"urgency_level,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	ValidatedAt  string   `json:"validated_at,omitempty"`
}

// Verdict is the persisted outcome of the triage pipeline.
type Verdict struct {
	Urgency          Urgency          `json:"urgency_level"`
	RuleBasedScore   int              `json:"rule_based_score"`
	FinalScore       int              `json:"final_score"`
	TriggeredRuleIDs []string         `json:"triggered_rule_ids"`
	Reasoning        string           `json:"reasoning"`
	AIAssessment     *AIAssessment    `json:"ai_assessment,omitempty"`
	HumanValidation  *HumanValidation `json:"human_validation,omitempty"`
	CreatedAt        string           `json:"created_at"`
}
