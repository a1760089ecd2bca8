package pipeline

import (
	"context"
	"encoding/json"
	"math"

	"github.com/rs/zerolog"

	"caresignal.com/triage/ai"
	"caresignal.com/triage/alerts"
	"caresignal.com/triage/episodes"
	"caresignal.com/triage/logger"
	"caresignal.com/triage/s3client"
	"caresignal.com/triage/triage"
	"caresignal.com/triage/utils"
)

// Blend weights for the final score when an AI assessment was used:
// finalScore = round(0.6*ruleScore + 0.4*(confidence*100)).
const (
	ruleScoreWeight    = 0.6
	aiConfidenceWeight = 0.4
)

// Triage orchestrates one triage decision: rule engine, conditional AI gate,
// score blend, single persist, audit and supervisor alerting.
//
// The verdict-exists check and the verdict write both happen under the
// episode lock, so at most one request wins the write. The AI call itself
// runs outside the lock window; two requests racing in before either takes
// the lock can still both call the model. The losing call's assessment is
// discarded rather than persisted.
type Triage struct {
	engine   *triage.Engine
	store    episodeStore
	ai       aiAssessor
	audit    auditArchive
	alerts   alertDispatcher
	plLogger *zerolog.Logger
}

// New wires the orchestrator. assessor and archive may be nil: without an
// assessor every verdict is rule-based only, without an archive no audit
// records are written.
func New(
	engine *triage.Engine,
	store episodes.Store,
	assessor *ai.Assessor,
	archive *s3client.Client,
	dispatcher *alerts.Dispatcher,
) *Triage {
	plLogger := logger.NewLogger("Triage pipeline")
	t := &Triage{
		engine:   engine,
		store:    &storeWrapper{store: store},
		alerts:   &dispatcherWrapper{dispatcher: dispatcher},
		plLogger: &plLogger,
	}
	if assessor != nil {
		t.ai = &assessorWrapper{assessor: assessor}
	}
	if archive != nil {
		t.audit = &auditWrapper{s3Client: archive}
	}
	return t
}

// Process produces the final triage verdict for an episode. An episode that
// already carries a verdict is returned unchanged; this is the cost-control
// mechanism that keeps the AI collaborator at one call per episode.
func (t *Triage) Process(ctx context.Context, episodeID string) (verdict *triage.Verdict, err error) {
	defer utils.RecoverWithError(&err)

	episodeLogger := t.plLogger.With().Str("episode_id", episodeID).Logger()

	episode, err := t.store.getEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	if episode.Verdict != nil {
		episodeLogger.Info().Msg("Episode already triaged, returning existing verdict")
		return episode.Verdict, nil
	}

	ruleResult := t.engine.Assess(episode.Report)
	episodeLogger.Info().
		Str("urgency_level", string(ruleResult.Urgency)).
		Int("score", ruleResult.Score).
		Strs("triggered_rules", ruleResult.TriggeredRuleIDs).
		Msg("Rule engine assessment complete")

	var assessment *triage.AIAssessment
	if t.ai != nil && t.engine.NeedsAIAssistance(ruleResult, episode.Report) {
		assessment, err = t.ai.assess(ctx, episode.Report, ruleResult)
		if err != nil {
			// An AI outage must never block triage; fall back to the
			// rule-based verdict.
			episodeLogger.Warn().Err(err).Msg("AI assessment failed, continuing with rule-based result")
			assessment = nil
			err = nil
		}
	}

	candidate := buildVerdict(ruleResult, assessment)
	stored, created, err := t.store.saveVerdict(episodeID, candidate)
	if err != nil {
		return nil, err
	}
	if !created {
		episodeLogger.Info().Msg("Another request stored a verdict first, discarding this one")
		return stored, nil
	}

	t.archiveAudit(&episodeLogger, episode, ruleResult, stored)

	if alertErr := t.alerts.handleVerdict(episodeID, *stored); alertErr != nil {
		episodeLogger.Err(alertErr).Msg("Failed to dispatch supervisor alert")
	}
	episodeLogger.Info().
		Str("urgency_level", string(stored.Urgency)).
		Int("final_score", stored.FinalScore).
		Bool("ai_used", stored.AIAssessment != nil).
		Msg("Triage verdict produced")
	return stored, nil
}

func buildVerdict(ruleResult triage.RuleResult, assessment *triage.AIAssessment) *triage.Verdict {
	verdict := triage.Verdict{
		Urgency:          ruleResult.Urgency,
		RuleBasedScore:   ruleResult.Score,
		FinalScore:       ruleResult.Score,
		TriggeredRuleIDs: ruleResult.TriggeredRuleIDs,
		Reasoning:        ruleResult.Reasoning,
		CreatedAt:        utils.FormattedNow(),
	}
	if assessment != nil {
		verdict.AIAssessment = assessment
		verdict.FinalScore = blendScore(ruleResult.Score, assessment.Confidence)
	}
	return &verdict
}

func blendScore(ruleScore int, aiConfidence float64) int {
	return int(math.Round(ruleScoreWeight*float64(ruleScore) + aiConfidenceWeight*aiConfidence*100))
}

// auditRecord is the JSON document archived for supervisor review.
type auditRecord struct {
	EpisodeID  string               `json:"episode_id"`
	PatientID  string               `json:"patient_id"`
	Report     triage.SymptomReport `json:"symptom_report"`
	RuleResult triage.RuleResult    `json:"rule_based_result"`
	Verdict    triage.Verdict       `json:"triage_verdict"`
	ArchivedAt string               `json:"archived_at"`
}

// Archiving is best effort: a failed upload is logged and never fails the
// triage decision.
func (t *Triage) archiveAudit(episodeLogger *zerolog.Logger, episode *episodes.Episode, ruleResult triage.RuleResult, verdict *triage.Verdict) {
	if t.audit == nil {
		return
	}
	record := auditRecord{
		EpisodeID:  episode.ID,
		PatientID:  episode.PatientID,
		Report:     episode.Report,
		RuleResult: ruleResult,
		Verdict:    *verdict,
		ArchivedAt: utils.FormattedNow(),
	}
	body, err := json.Marshal(record)
	if err != nil {
		episodeLogger.Err(err).Msg("Failed to marshal audit record")
		return
	}
	if err := t.audit.saveAuditRecord(episode.ID, string(body)); err != nil {
		episodeLogger.Err(err).Msg("Failed to archive audit record")
	}
}
