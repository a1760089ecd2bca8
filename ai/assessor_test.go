package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"caresignal.com/triage/logger"
	"caresignal.com/triage/triage"
)

type completionMock struct {
	calls    int
	request  openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (mock *completionMock) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	mock.calls++
	mock.request = request
	return mock.response, mock.err
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestAssessor(mock *completionMock) *Assessor {
	aiLogger := logger.NewLogger("Test AI assessor")
	return &Assessor{
		client:   mock,
		config:   Config{Model: "triage-test-model", MaxTokens: 500, Temperature: 0.1, TimeoutSeconds: 5},
		aiLogger: &aiLogger,
	}
}

var testReport = triage.SymptomReport{
	PrimaryComplaint:   "persistent cough",
	Duration:           "5 days",
	Severity:           5,
	AssociatedSymptoms: []string{"fatigue"},
}

var testRuleResult = triage.RuleResult{
	Urgency:          triage.UrgencyRoutine,
	Score:            55,
	TriggeredRuleIDs: []string{"ROUTINE_PERSISTENT_COUGH"},
	Reasoning:        "A cough persisting for days or weeks should be assessed at a routine appointment.",
}

func TestNewWithoutAPIKeyDisablesGate(t *testing.T) {
	t.Setenv("TRIAGE_AI_API_KEY", "")

	assessor, err := New()
	require.NoError(t, err)
	require.Nil(t, assessor)
}

func TestNewWithAPIKey(t *testing.T) {
	t.Setenv("TRIAGE_AI_API_KEY", "test-key")

	assessor, err := New()
	require.NoError(t, err)
	require.NotNil(t, assessor)
	require.Equal(t, "gpt-4o-mini", assessor.config.Model)
}

func TestAssessParsesWellFormedResponse(t *testing.T) {
	mock := &completionMock{response: chatResponse(`{
		"confidence": 85,
		"agrees_with_rules": false,
		"clinical_reasoning": "The combination of fatigue and prolonged cough warrants urgent review.",
		"additional_considerations": "Consider chest imaging.",
		"recommended_urgency": "URGENT"
	}`)}
	assessor := newTestAssessor(mock)

	assessment, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.NoError(t, err)
	require.True(t, assessment.Used)
	require.InDelta(t, 0.85, assessment.Confidence, 1e-9)
	require.False(t, assessment.AgreesWithRules)
	require.Equal(t, "The combination of fatigue and prolonged cough warrants urgent review.", assessment.Reasoning)
	require.NotNil(t, assessment.RecommendedUrgency)
	require.Equal(t, triage.UrgencyUrgent, *assessment.RecommendedUrgency)
	require.Equal(t, "triage-test-model", assessment.ModelID)
	require.NotEmpty(t, assessment.Timestamp)
	require.Equal(t, 1, mock.calls)
}

func TestAssessSurvivesNonJSONResponse(t *testing.T) {
	mock := &completionMock{response: chatResponse("not json at all")}
	assessor := newTestAssessor(mock)

	assessment, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.NoError(t, err)
	require.True(t, assessment.Used)
	require.InDelta(t, fallbackConfidence, assessment.Confidence, 1e-9)
	require.Equal(t, fallbackReasoning, assessment.Reasoning)
	require.True(t, assessment.AgreesWithRules)
	require.Nil(t, assessment.RecommendedUrgency)
}

func TestAssessDefaultsPerField(t *testing.T) {
	// Confidence out of range and unknown urgency fall back independently,
	// the valid reasoning survives.
	mock := &completionMock{response: chatResponse(`{
		"confidence": 400,
		"clinical_reasoning": "Plausible reasoning.",
		"recommended_urgency": "IMMEDIATELY"
	}`)}
	assessor := newTestAssessor(mock)

	assessment, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.NoError(t, err)
	require.InDelta(t, fallbackConfidence, assessment.Confidence, 1e-9)
	require.Equal(t, "Plausible reasoning.", assessment.Reasoning)
	require.Nil(t, assessment.RecommendedUrgency)
	require.True(t, assessment.AgreesWithRules)
}

func TestAssessAcceptsReasoningFallbackField(t *testing.T) {
	mock := &completionMock{response: chatResponse(`{"confidence": 70, "reasoning": "From the alternate field."}`)}
	assessor := newTestAssessor(mock)

	assessment, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.NoError(t, err)
	require.Equal(t, "From the alternate field.", assessment.Reasoning)
}

func TestAssessUnwrapsCodeFence(t *testing.T) {
	content := "```json\n{\"confidence\": 90, \"clinical_reasoning\": \"Fenced.\"}\n```"
	mock := &completionMock{response: chatResponse(content)}
	assessor := newTestAssessor(mock)

	assessment, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.NoError(t, err)
	require.InDelta(t, 0.9, assessment.Confidence, 1e-9)
	require.Equal(t, "Fenced.", assessment.Reasoning)
}

func TestAssessFailsWithoutResponse(t *testing.T) {
	mock := &completionMock{response: openai.ChatCompletionResponse{}}
	assessor := newTestAssessor(mock)

	_, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.ErrorIs(t, err, ErrNoResponse)

	mock = &completionMock{response: chatResponse("   ")}
	assessor = newTestAssessor(mock)
	_, err = assessor.Assess(context.Background(), testReport, testRuleResult)
	require.ErrorIs(t, err, ErrNoResponse)
}

func TestAssessPropagatesTransportError(t *testing.T) {
	mock := &completionMock{err: errors.New("connection refused")}
	assessor := newTestAssessor(mock)

	_, err := assessor.Assess(context.Background(), testReport, testRuleResult)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestBuildPromptIsDeterministicAndComplete(t *testing.T) {
	first := BuildPrompt(testReport, testRuleResult)
	require.Equal(t, first, BuildPrompt(testReport, testRuleResult))

	for _, section := range []string{
		"PATIENT SYMPTOMS:",
		"RULE-BASED ASSESSMENT:",
		"INSTRUCTIONS:",
		"RESPOND WITH ONLY THIS JSON OBJECT:",
	} {
		require.True(t, strings.Contains(first, section), section)
	}
	require.Contains(t, first, "persistent cough")
	require.Contains(t, first, "ROUTINE_PERSISTENT_COUGH")
}
