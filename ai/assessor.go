package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"caresignal.com/triage/logger"
	"caresignal.com/triage/triage"
	"caresignal.com/triage/utils"
)

type Config struct {
	APIKey         string  `envconfig:"TRIAGE_AI_API_KEY" default:""`
	Model          string  `envconfig:"TRIAGE_AI_MODEL" default:"gpt-4o-mini"`
	BaseURL        string  `envconfig:"TRIAGE_AI_BASE_URL" default:""`
	MaxTokens      int     `envconfig:"TRIAGE_AI_MAX_TOKENS" default:"500"`
	Temperature    float32 `envconfig:"TRIAGE_AI_TEMPERATURE" default:"0.1"`
	TimeoutSeconds int     `envconfig:"TRIAGE_AI_TIMEOUT_SECONDS" default:"30"`
}

const (
	fallbackConfidence = 0.7
	fallbackReasoning  = "AI assessment completed but the clinical reasoning could not be parsed from the model response."
)

// ErrNoResponse is the gate's one hard failure: the collaborator returned
// nothing usable at all. Partially malformed responses degrade to field-level
// defaults instead.
var ErrNoResponse = errors.New("ai collaborator returned no usable response")

type completionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assessor fetches a supplementary model opinion for cases the rule engine
// flags as needing assistance. It performs exactly one completion call per
// Assess invocation; the at-most-once-per-episode policy is the
// orchestrator's responsibility.
type Assessor struct {
	client   completionClient
	config   Config
	aiLogger *zerolog.Logger
}

// New builds an assessor from the environment. A missing API key is not an
// error: it returns a nil assessor and triage runs rule-based only.
func New() (*Assessor, error) {
	aiLogger := logger.NewLogger("AI assessor")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		aiLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}
	if config.APIKey == "" {
		aiLogger.Info().Msg("No AI API key configured, assistance gate is disabled")
		return nil, nil
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Assessor{
		client:   openai.NewClientWithConfig(clientConfig),
		config:   config,
		aiLogger: &aiLogger,
	}, nil
}

// Assess builds the deterministic assessment prompt, invokes the model once
// and parses the response defensively. Only a missing response is fatal.
func (a *Assessor) Assess(ctx context.Context, report triage.SymptomReport, ruleResult triage.RuleResult) (*triage.AIAssessment, error) {
	timeout := time.Duration(a.config.TimeoutSeconds) * time.Second
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a clinical triage assistant reviewing a rule-based urgency assessment. Respond with JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(report, ruleResult),
			},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}

	response, err := a.client.CreateChatCompletion(ctxWithTimeout, request)
	if err != nil {
		return nil, fmt.Errorf("ai completion call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, ErrNoResponse
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrNoResponse
	}

	assessment := a.parseAssessment(content)
	assessment.ModelID = a.config.Model
	assessment.Timestamp = utils.FormattedNow()
	return assessment, nil
}

// modelPayload is the JSON shape the prompt asks for. Every field is optional
// here; validation with defaults happens per field afterwards.
type modelPayload struct {
	Confidence               *float64 `json:"confidence"`
	AgreesWithRules          *bool    `json:"agrees_with_rules"`
	ClinicalReasoning        string   `json:"clinical_reasoning"`
	Reasoning                string   `json:"reasoning"`
	AdditionalConsiderations string   `json:"additional_considerations"`
	RecommendedUrgency       string   `json:"recommended_urgency"`
}

func (a *Assessor) parseAssessment(content string) *triage.AIAssessment {
	var payload modelPayload
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		a.aiLogger.Warn().Err(err).Msg("Model response is not valid JSON, substituting defaults")
	}

	assessment := triage.AIAssessment{
		Used:            true,
		Confidence:      fallbackConfidence,
		Reasoning:       fallbackReasoning,
		AgreesWithRules: true,
	}

	if payload.Confidence != nil && *payload.Confidence >= 0 && *payload.Confidence <= 100 {
		assessment.Confidence = *payload.Confidence / 100
	} else {
		a.aiLogger.Warn().Msg("Model confidence missing or out of range, substituting default")
	}

	reasoning := payload.ClinicalReasoning
	if reasoning == "" {
		reasoning = payload.Reasoning
	}
	if reasoning != "" {
		assessment.Reasoning = reasoning
	} else {
		a.aiLogger.Warn().Msg("Model reasoning missing, substituting fallback text")
	}

	if payload.RecommendedUrgency != "" {
		if urgency, ok := triage.ParseUrgency(payload.RecommendedUrgency); ok {
			assessment.RecommendedUrgency = &urgency
		} else {
			a.aiLogger.Warn().Str("recommended_urgency", payload.RecommendedUrgency).
				Msg("Model recommended unknown urgency, ignoring")
		}
	}

	if payload.AgreesWithRules != nil {
		assessment.AgreesWithRules = *payload.AgreesWithRules
	}

	return &assessment
}

// stripCodeFence unwraps a response the model wrapped in a markdown code
// block despite the JSON-only instruction.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
