package pipeline

import (
	"context"
	"fmt"
	"path"

	"caresignal.com/triage/ai"
	"caresignal.com/triage/alerts"
	"caresignal.com/triage/s3client"
	"caresignal.com/triage/triage"
)

type aiAssessor interface {
	assess(ctx context.Context, report triage.SymptomReport, result triage.RuleResult) (*triage.AIAssessment, error)
}

type assessorWrapper struct {
	assessor *ai.Assessor
}

func (wrapper *assessorWrapper) assess(ctx context.Context, report triage.SymptomReport, result triage.RuleResult) (*triage.AIAssessment, error) {
	return wrapper.assessor.Assess(ctx, report, result)
}

type auditArchive interface {
	saveAuditRecord(episodeID string, record string) error
}

type auditWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *auditWrapper) saveAuditRecord(episodeID string, record string) error {
	_, err := wrapper.s3Client.Upload(record, AuditFileKey(episodeID))
	return err
}

// AuditFileKey is the audit bucket key for an episode's triage audit record.
func AuditFileKey(episodeID string) string {
	return path.Join(
		"audit",
		"episodes",
		episodeID,
		fmt.Sprintf("%s.triage_audit.json", episodeID),
	)
}

type alertDispatcher interface {
	handleVerdict(episodeID string, verdict triage.Verdict) error
}

type dispatcherWrapper struct {
	dispatcher *alerts.Dispatcher
}

func (wrapper *dispatcherWrapper) handleVerdict(episodeID string, verdict triage.Verdict) error {
	return wrapper.dispatcher.HandleVerdict(episodeID, verdict)
}
