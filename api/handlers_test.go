package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"caresignal.com/triage/episodes"
	"caresignal.com/triage/triage"
)

type runnerMock struct {
	calls     int
	ctx       context.Context
	episodeID string
	verdict   *triage.Verdict
	err       error
}

func (mock *runnerMock) Process(ctx context.Context, episodeID string) (*triage.Verdict, error) {
	mock.calls++
	mock.ctx = ctx
	mock.episodeID = episodeID
	if mock.err != nil {
		return nil, mock.err
	}
	return mock.verdict, nil
}

type ctxKey string

func TestRunTriagePassesRequestContext(t *testing.T) {
	mock := &runnerMock{verdict: &triage.Verdict{Urgency: triage.UrgencyRoutine, RuleBasedScore: 50, FinalScore: 50}}
	handlers := &Handlers{Pipeline: mock}
	mux := http.NewServeMux()
	handlers.Register(mux)

	request := httptest.NewRequest(http.MethodPost, "/episodes/ep-1/triage", nil)
	request = request.WithContext(context.WithValue(request.Context(), ctxKey("marker"), "present"))
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 1, mock.calls)
	require.Equal(t, "ep-1", mock.episodeID)
	require.NotNil(t, mock.ctx)
	require.Equal(t, "present", mock.ctx.Value(ctxKey("marker")))

	var verdict triage.Verdict
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &verdict))
	require.Equal(t, triage.UrgencyRoutine, verdict.Urgency)
	require.Equal(t, 50, verdict.FinalScore)
}

func TestRunTriageUnknownEpisode(t *testing.T) {
	mock := &runnerMock{err: episodes.ErrNotFound}
	handlers := &Handlers{Pipeline: mock}
	mux := http.NewServeMux()
	handlers.Register(mux)

	request := httptest.NewRequest(http.MethodPost, "/episodes/missing/triage", nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "missing", mock.episodeID)
}
