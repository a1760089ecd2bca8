package triage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// concerningDurationWords are the duration phrasings that count as clinically
// concerning when a rule condition sets concerning_duration.
var concerningDurationWords = []string{"days", "weeks", "persistent", "ongoing", "continuous"}

// Condition is the declarative predicate of a clinical rule. Every set clause
// must hold; the keyword list matches when any keyword appears in the primary
// complaint or the associated symptoms.
type Condition struct {
	Keywords           []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	MinSeverity        *int     `yaml:"min_severity,omitempty" json:"min_severity,omitempty"`
	MaxSeverity        *int     `yaml:"max_severity,omitempty" json:"max_severity,omitempty"`
	ConcerningDuration bool     `yaml:"concerning_duration,omitempty" json:"concerning_duration,omitempty"`
}

func (c Condition) isEmpty() bool {
	return len(c.Keywords) == 0 && c.MinSeverity == nil && c.MaxSeverity == nil && !c.ConcerningDuration
}

func (c Condition) Matches(report SymptomReport) bool {
	if len(c.Keywords) > 0 && !matchesAnyKeyword(report, c.Keywords) {
		return false
	}
	if c.MinSeverity != nil && report.Severity < *c.MinSeverity {
		return false
	}
	if c.MaxSeverity != nil && report.Severity > *c.MaxSeverity {
		return false
	}
	if c.ConcerningDuration && !HasConcerningDuration(report.Duration) {
		return false
	}
	return true
}

func matchesAnyKeyword(report SymptomReport, keywords []string) bool {
	complaint := strings.ToLower(report.PrimaryComplaint)
	symptoms := strings.ToLower(strings.Join(report.AssociatedSymptoms, " "))
	for _, keyword := range keywords {
		keyword = strings.ToLower(keyword)
		if strings.Contains(complaint, keyword) || strings.Contains(symptoms, keyword) {
			return true
		}
	}
	return false
}

// HasConcerningDuration reports whether a free-text duration contains any of
// the fixed concerning-duration vocabulary.
func HasConcerningDuration(duration string) bool {
	duration = strings.ToLower(duration)
	for _, word := range concerningDurationWords {
		if strings.Contains(duration, word) {
			return true
		}
	}
	return false
}

// Rule is one entry of the clinical rule catalog. Catalog order matters: it is
// the tie-break among triggered rules of the same urgency.
type Rule struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Condition Condition `yaml:"condition" json:"condition"`
	Urgency   Urgency   `yaml:"urgency" json:"urgency"`
	Score     int       `yaml:"score" json:"score"`
	Reasoning string    `yaml:"reasoning" json:"reasoning"`
}

type catalogFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadCatalog reads a rule catalog from a YAML file, preserving file order.
func LoadCatalog(filePath string) ([]Rule, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog %s: %w", filePath, err)
	}
	if err := ValidateCatalog(file.Rules); err != nil {
		return nil, fmt.Errorf("invalid rule catalog %s: %w", filePath, err)
	}
	return file.Rules, nil
}

// ValidateCatalog checks catalog integrity: unique non-empty ids, known
// urgency values, scores within 0-100 and non-empty conditions.
func ValidateCatalog(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("catalog contains no rules")
	}
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.ID == "" {
			return fmt.Errorf("rule at index %d has empty id", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true
		if !rule.Urgency.Valid() {
			return fmt.Errorf("rule %q has unknown urgency %q", rule.ID, rule.Urgency)
		}
		if rule.Score < 0 || rule.Score > 100 {
			return fmt.Errorf("rule %q has score %d outside 0-100", rule.ID, rule.Score)
		}
		if rule.Condition.isEmpty() {
			return fmt.Errorf("rule %q has an empty condition", rule.ID)
		}
	}
	return nil
}

func severity(n int) *int {
	return &n
}

// DefaultCatalog returns the built-in clinical rule catalog. Deployments that
// need to edit rules without recompiling load a YAML catalog instead.
func DefaultCatalog() []Rule {
	return []Rule{
		{
			ID:   "EMERGENCY_CHEST_PAIN",
			Name: "Chest pain with high severity",
			Condition: Condition{
				Keywords:    []string{"chest pain", "chest pressure", "crushing chest", "chest tightness"},
				MinSeverity: severity(7),
			},
			Urgency:   UrgencyEmergency,
			Score:     95,
			Reasoning: "Severe chest pain may indicate an acute cardiac event and requires immediate evaluation.",
		},
		{
			ID:   "EMERGENCY_BREATHING",
			Name: "Severe breathing difficulty",
			Condition: Condition{
				Keywords:    []string{"can't breathe", "cannot breathe", "difficulty breathing", "shortness of breath", "struggling to breathe", "gasping"},
				MinSeverity: severity(8),
			},
			Urgency:   UrgencyEmergency,
			Score:     98,
			Reasoning: "Severe respiratory distress is immediately life-threatening.",
		},
		{
			ID:   "EMERGENCY_STROKE_SIGNS",
			Name: "Possible stroke signs",
			Condition: Condition{
				Keywords: []string{"face drooping", "slurred speech", "sudden numbness", "sudden weakness", "sudden vision loss", "sudden confusion"},
			},
			Urgency:   UrgencyEmergency,
			Score:     96,
			Reasoning: "Sudden neurological deficits suggest a possible stroke; time-critical intervention is required.",
		},
		{
			ID:   "EMERGENCY_UNRESPONSIVE",
			Name: "Loss of consciousness or seizure",
			Condition: Condition{
				Keywords: []string{"unconscious", "unresponsive", "fainted", "passed out", "seizure", "convulsion"},
			},
			Urgency:   UrgencyEmergency,
			Score:     97,
			Reasoning: "Loss of consciousness or seizure activity requires emergency assessment.",
		},
		{
			ID:   "EMERGENCY_SEVERE_BLEEDING",
			Name: "Severe or internal bleeding",
			Condition: Condition{
				Keywords: []string{"severe bleeding", "bleeding heavily", "won't stop bleeding", "coughing blood", "vomiting blood", "blood in stool"},
			},
			Urgency:   UrgencyEmergency,
			Score:     90,
			Reasoning: "Uncontrolled or internal bleeding can rapidly become life-threatening.",
		},
		{
			ID:   "URGENT_HIGH_FEVER",
			Name: "High fever with high severity",
			Condition: Condition{
				Keywords:    []string{"fever", "high temperature", "burning up"},
				MinSeverity: severity(7),
			},
			Urgency:   UrgencyUrgent,
			Score:     85,
			Reasoning: "A high fever with significant distress should be seen the same day.",
		},
		{
			ID:   "URGENT_SEVERE_PAIN",
			Name: "Severe uncontrolled pain",
			Condition: Condition{
				Keywords:    []string{"severe pain", "unbearable pain", "worst pain"},
				MinSeverity: severity(8),
			},
			Urgency:   UrgencyUrgent,
			Score:     82,
			Reasoning: "Severe uncontrolled pain warrants urgent clinical review.",
		},
		{
			ID:   "URGENT_PERSISTENT_VOMITING",
			Name: "Persistent vomiting",
			Condition: Condition{
				Keywords:           []string{"vomiting", "throwing up", "can't keep anything down"},
				ConcerningDuration: true,
			},
			Urgency:   UrgencyUrgent,
			Score:     80,
			Reasoning: "Prolonged vomiting risks dehydration and needs urgent attention.",
		},
		{
			ID:   "URGENT_ABDOMINAL_PAIN",
			Name: "Significant abdominal pain",
			Condition: Condition{
				Keywords:    []string{"abdominal pain", "stomach pain", "belly pain"},
				MinSeverity: severity(6),
			},
			Urgency:   UrgencyUrgent,
			Score:     78,
			Reasoning: "Moderate to severe abdominal pain can indicate conditions requiring same-day care.",
		},
		{
			ID:   "URGENT_HEAD_INJURY",
			Name: "Recent head injury",
			Condition: Condition{
				Keywords: []string{"head injury", "hit my head", "hit his head", "hit her head", "concussion"},
			},
			Urgency:   UrgencyUrgent,
			Score:     75,
			Reasoning: "Head injuries need prompt evaluation for intracranial complications.",
		},
		{
			ID:   "ROUTINE_PERSISTENT_COUGH",
			Name: "Persistent cough",
			Condition: Condition{
				Keywords:           []string{"cough"},
				ConcerningDuration: true,
			},
			Urgency:   UrgencyRoutine,
			Score:     55,
			Reasoning: "A cough persisting for days or weeks should be assessed at a routine appointment.",
		},
		{
			ID:   "ROUTINE_MODERATE_PERSISTENT",
			Name: "Moderate persistent symptoms",
			Condition: Condition{
				MinSeverity:        severity(4),
				MaxSeverity:        severity(6),
				ConcerningDuration: true,
			},
			Urgency:   UrgencyRoutine,
			Score:     50,
			Reasoning: "Moderate symptoms that persist deserve a scheduled clinical review.",
		},
		{
			ID:   "ROUTINE_MILD_FEVER",
			Name: "Mild fever",
			Condition: Condition{
				Keywords:    []string{"fever", "temperature"},
				MaxSeverity: severity(6),
			},
			Urgency:   UrgencyRoutine,
			Score:     48,
			Reasoning: "A mild fever can usually wait for a routine appointment unless it worsens.",
		},
		{
			ID:   "ROUTINE_RASH",
			Name: "Skin rash or irritation",
			Condition: Condition{
				Keywords: []string{"rash", "skin irritation", "itchy skin", "hives"},
			},
			Urgency:   UrgencyRoutine,
			Score:     45,
			Reasoning: "Most rashes are suitable for routine review unless spreading rapidly.",
		},
		{
			ID:   "SELFCARE_MINOR_COMPLAINT",
			Name: "Minor complaint",
			Condition: Condition{
				Keywords:    []string{"minor", "slight", "small cut", "scrape", "runny nose", "sore throat"},
				MaxSeverity: severity(3),
			},
			Urgency:   UrgencySelfCare,
			Score:     25,
			Reasoning: "Minor complaints at low severity are manageable with self-care guidance.",
		},
		{
			ID:   "SELFCARE_LOW_SEVERITY",
			Name: "Very low severity",
			Condition: Condition{
				MaxSeverity: severity(2),
			},
			Urgency:   UrgencySelfCare,
			Score:     20,
			Reasoning: "Very low severity symptoms can be monitored at home with self-care advice.",
		},
	}
}
