package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"caresignal.com/triage/episodes"
	"caresignal.com/triage/pipeline"
	"caresignal.com/triage/s3client"
	"caresignal.com/triage/triage"
	"caresignal.com/triage/utils"
)

// TriageRunner produces the triage verdict for an episode.
type TriageRunner interface {
	Process(ctx context.Context, episodeID string) (*triage.Verdict, error)
}

// Handlers exposes the triage service over HTTP. Routing and status mapping
// only; all decisions live in the pipeline.
type Handlers struct {
	Store    episodes.Store
	Pipeline TriageRunner
	Audit    *s3client.Client
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /episodes", h.SubmitReport)
	mux.HandleFunc("GET /episodes/{id}", h.GetEpisode)
	mux.HandleFunc("POST /episodes/{id}/triage", h.RunTriage)
	mux.HandleFunc("PATCH /episodes/{id}/validation", h.ValidateVerdict)
	mux.HandleFunc("GET /episodes/{id}/audit", h.GetAuditRecord)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	PatientID string               `json:"patient_id"`
	Report    triage.SymptomReport `json:"symptom_report"`
}

type submitResponse struct {
	EpisodeID   string `json:"episode_id"`
	Fingerprint string `json:"report_fingerprint"`
	Status      string `json:"status"`
}

func (h *Handlers) SubmitReport(w http.ResponseWriter, r *http.Request) {
	requestLogger := makeRequestLogger(r)

	var request submitRequest
	if !readBody(w, r, &requestLogger, &request) {
		return
	}
	if request.Report.PrimaryComplaint == "" {
		requestLogger.Err(nil).Int("status", http.StatusBadRequest).Msg("Missing primary complaint")
		http.Error(w, "primary_complaint is required", http.StatusBadRequest)
		return
	}

	episode := episodes.New(request.PatientID, request.Report)
	if err := h.Store.Create(episode); err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not create episode")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	requestLogger.Info().Str("episode_id", episode.ID).Msg("Episode created")
	writeJSON(w, http.StatusCreated, submitResponse{
		EpisodeID:   episode.ID,
		Fingerprint: episode.Fingerprint,
		Status:      string(episode.Status),
	})
}

func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	requestLogger := makeRequestLogger(r)
	episodeID := r.PathValue("id")

	episode, err := h.Store.Get(episodeID)
	if errors.Is(err, episodes.ErrNotFound) {
		requestLogger.Err(err).Int("status", http.StatusNotFound).Msg("Episode not found")
		http.Error(w, "", http.StatusNotFound)
		return
	}
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not fetch episode")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

func (h *Handlers) RunTriage(w http.ResponseWriter, r *http.Request) {
	requestLogger := makeRequestLogger(r)
	episodeID := r.PathValue("id")

	requestLogger.Info().Str("episode_id", episodeID).Msg("Starting triage for request from API")
	verdict, err := h.Pipeline.Process(r.Context(), episodeID)
	if errors.Is(err, episodes.ErrNotFound) {
		requestLogger.Err(err).Int("status", http.StatusNotFound).Msg("Episode not found")
		http.Error(w, "", http.StatusNotFound)
		return
	}
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Triage failed")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	requestLogger.Info().Int("status", http.StatusOK).Msg("Finished processing triage request")
	writeJSON(w, http.StatusOK, verdict)
}

// ValidateVerdict applies a supervisor's validation to an already triaged
// episode as a merge patch on the persisted record.
func (h *Handlers) ValidateVerdict(w http.ResponseWriter, r *http.Request) {
	requestLogger := makeRequestLogger(r)
	episodeID := r.PathValue("id")

	var validation triage.HumanValidation
	if !readBody(w, r, &requestLogger, &validation) {
		return
	}
	if validation.SupervisorID == "" {
		requestLogger.Err(nil).Int("status", http.StatusBadRequest).Msg("Missing supervisor id")
		http.Error(w, "supervisor_id is required", http.StatusBadRequest)
		return
	}
	if validation.ValidatedAt == "" {
		validation.ValidatedAt = utils.FormattedNow()
	}

	episode, err := h.Store.Get(episodeID)
	if errors.Is(err, episodes.ErrNotFound) {
		requestLogger.Err(err).Int("status", http.StatusNotFound).Msg("Episode not found")
		http.Error(w, "", http.StatusNotFound)
		return
	}
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not fetch episode")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if episode.Verdict == nil {
		requestLogger.Err(nil).Int("status", http.StatusConflict).Msg("Episode has no verdict to validate")
		http.Error(w, "episode has not been triaged yet", http.StatusConflict)
		return
	}

	patch, err := episodes.ValidationPatch(validation)
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not build validation patch")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if err := h.Store.ApplyPatch(episodeID, patch); err != nil {
		requestLogger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not apply validation patch")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	requestLogger.Info().
		Str("episode_id", episodeID).
		Str("supervisor_id", validation.SupervisorID).
		Msg("Supervisor validation recorded")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetAuditRecord(w http.ResponseWriter, r *http.Request) {
	requestLogger := makeRequestLogger(r)
	episodeID := r.PathValue("id")

	if h.Audit == nil {
		requestLogger.Err(nil).Int("status", http.StatusNotFound).Msg("Audit archive is not configured")
		http.Error(w, "", http.StatusNotFound)
		return
	}
	record, err := h.Audit.Download(pipeline.AuditFileKey(episodeID))
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusNotFound).Msg("Audit record not found")
		http.Error(w, "", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(record)
}

func readBody(w http.ResponseWriter, r *http.Request, requestLogger *zerolog.Logger, into interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		requestLogger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, into); err != nil {
		requestLogger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not parse request body")
		http.Error(w, "", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
