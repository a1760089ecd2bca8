package episodes

import (
	"encoding/json"
	"testing"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/stretchr/testify/require"

	"caresignal.com/triage/triage"
)

var testReport = triage.SymptomReport{
	PrimaryComplaint:   "persistent cough",
	Duration:           "5 days",
	Severity:           5,
	AssociatedSymptoms: []string{"fatigue", "mild fever"},
}

func TestNewEpisode(t *testing.T) {
	episode := New("patient-1", testReport)
	require.NotEmpty(t, episode.ID)
	require.Equal(t, "patient-1", episode.PatientID)
	require.Equal(t, testReport, episode.Report)
	require.Equal(t, Fingerprint(testReport), episode.Fingerprint)
	require.Equal(t, StatusSubmitted, episode.Status)
	require.NotEmpty(t, episode.CreatedAt)
	require.Nil(t, episode.Verdict)

	other := New("patient-1", testReport)
	require.NotEqual(t, episode.ID, other.ID)
}

func TestFingerprintIsStable(t *testing.T) {
	first := Fingerprint(testReport)
	require.Len(t, first, 16)
	require.Equal(t, first, Fingerprint(testReport))
}

func TestValidationPatchUpdatesOnlyHumanValidation(t *testing.T) {
	episode := New("patient-1", testReport)
	episode.Status = StatusTriaged
	episode.Verdict = &triage.Verdict{
		Urgency:          triage.UrgencyRoutine,
		RuleBasedScore:   55,
		FinalScore:       55,
		TriggeredRuleIDs: []string{"ROUTINE_PERSISTENT_COUGH"},
		Reasoning:        "A cough persisting for days or weeks should be assessed at a routine appointment.",
		CreatedAt:        episode.CreatedAt,
	}
	original, err := json.Marshal(episode)
	require.NoError(t, err)

	urgency := triage.UrgencyUrgent
	validation := triage.HumanValidation{
		SupervisorID: "sup-1",
		Approved:     false,
		Urgency:      &urgency,
		Notes:        "Escalating after review.",
		ValidatedAt:  episode.CreatedAt,
	}
	patch, err := ValidationPatch(validation)
	require.NoError(t, err)

	patched, err := jsonpatch.MergePatch(original, patch)
	require.NoError(t, err)

	var updated Episode
	require.NoError(t, json.Unmarshal(patched, &updated))
	require.NotNil(t, updated.Verdict)
	require.Equal(t, &validation, updated.Verdict.HumanValidation)

	expected := *episode.Verdict
	expected.HumanValidation = &validation
	require.Equal(t, &expected, updated.Verdict)
	require.Equal(t, episode.ID, updated.ID)
	require.Equal(t, episode.Report, updated.Report)
	require.Equal(t, episode.Fingerprint, updated.Fingerprint)
	require.Equal(t, StatusTriaged, updated.Status)
}

func TestFingerprintIsSensitiveToEveryField(t *testing.T) {
	base := Fingerprint(testReport)

	changed := testReport
	changed.PrimaryComplaint = "persistent coughs"
	require.NotEqual(t, base, Fingerprint(changed))

	changed = testReport
	changed.Duration = "6 days"
	require.NotEqual(t, base, Fingerprint(changed))

	changed = testReport
	changed.Severity = 6
	require.NotEqual(t, base, Fingerprint(changed))

	changed = testReport
	changed.AssociatedSymptoms = []string{"fatigue"}
	require.NotEqual(t, base, Fingerprint(changed))
}
