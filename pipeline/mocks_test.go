package pipeline

import (
	"context"

	"caresignal.com/triage/episodes"
	"caresignal.com/triage/triage"
)

type storeMockCalls struct {
	getEpisode  int
	saveVerdict int
}

type storeMock struct {
	episode        *episodes.Episode
	existingOnSave *triage.Verdict
	getErr         error
	saveErr        error
	calls          storeMockCalls
}

func (mock *storeMock) getEpisode(episodeID string) (*episodes.Episode, error) {
	mock.calls.getEpisode++
	if mock.getErr != nil {
		return nil, mock.getErr
	}
	if mock.episode == nil {
		return nil, episodes.ErrNotFound
	}
	copied := *mock.episode
	return &copied, nil
}

func (mock *storeMock) saveVerdict(episodeID string, verdict *triage.Verdict) (*triage.Verdict, bool, error) {
	mock.calls.saveVerdict++
	if mock.saveErr != nil {
		return nil, false, mock.saveErr
	}
	if mock.existingOnSave != nil {
		return mock.existingOnSave, false, nil
	}
	if mock.episode.Verdict != nil {
		return mock.episode.Verdict, false, nil
	}
	mock.episode.Verdict = verdict
	mock.episode.Status = episodes.StatusTriaged
	return verdict, true, nil
}

type aiMock struct {
	calls      int
	assessment *triage.AIAssessment
	err        error
}

func (mock *aiMock) assess(ctx context.Context, report triage.SymptomReport, result triage.RuleResult) (*triage.AIAssessment, error) {
	mock.calls++
	if mock.err != nil {
		return nil, mock.err
	}
	copied := *mock.assessment
	return &copied, nil
}

type auditMock struct {
	calls         int
	lastEpisodeID string
	lastRecord    string
	err           error
}

func (mock *auditMock) saveAuditRecord(episodeID string, record string) error {
	mock.calls++
	mock.lastEpisodeID = episodeID
	mock.lastRecord = record
	return mock.err
}

type alertsMock struct {
	calls         int
	lastEpisodeID string
	lastVerdict   triage.Verdict
	err           error
}

func (mock *alertsMock) handleVerdict(episodeID string, verdict triage.Verdict) error {
	mock.calls++
	mock.lastEpisodeID = episodeID
	mock.lastVerdict = verdict
	return mock.err
}
