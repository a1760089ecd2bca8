package episodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"caresignal.com/triage/redis"
	"caresignal.com/triage/triage"
	"caresignal.com/triage/utils"
)

const EpisodesDB redis.DB = 0

var (
	ErrNotFound      = errors.New("episode not found")
	ErrAlreadyExists = errors.New("episode already exists")
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusTriaged   Status = "triaged"
)

// Episode is one patient symptom-report-to-resolution record.
type Episode struct {
	ID          string               `json:"episode_id"`
	PatientID   string               `json:"patient_id"`
	Report      triage.SymptomReport `json:"symptom_report"`
	Fingerprint string               `json:"report_fingerprint"`
	Status      Status               `json:"status"`
	CreatedAt   string               `json:"created_at"`
	Verdict     *triage.Verdict      `json:"triage_verdict,omitempty"`
}

// New builds a fresh episode for a submitted report.
func New(patientID string, report triage.SymptomReport) Episode {
	return Episode{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		Report:      report,
		Fingerprint: Fingerprint(report),
		Status:      StatusSubmitted,
		CreatedAt:   utils.FormattedNow(),
	}
}

// Fingerprint derives a stable hash of the report contents, used to spot
// duplicate submissions of the same complaint.
func Fingerprint(report triage.SymptomReport) string {
	parts := make([]string, 0, len(report.AssociatedSymptoms)+3)
	parts = append(parts, report.PrimaryComplaint, report.Duration, strconv.Itoa(report.Severity))
	parts = append(parts, report.AssociatedSymptoms...)
	return fmt.Sprintf("%016x", utils.HashStrings(parts...))
}

type Store struct {
	client redis.Client
}

func NewStore() (Store, error) {
	client, err := redis.NewClient(EpisodesDB)
	if err != nil {
		return Store{}, err
	}
	return Store{client: client}, nil
}

func episodeKey(episodeID string) string {
	return fmt.Sprintf("episode:%s", episodeID)
}

func (store Store) Get(episodeID string) (*Episode, error) {
	var episode Episode
	err := store.client.GetJSON(episodeKey(episodeID), &episode)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

func (store Store) Create(episode Episode) error {
	created, err := store.client.SetJSONIfAbsent(episodeKey(episode.ID), episode)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

// Update applies updateFunc to the episode under the episode's lock, so the
// read-modify-write cycle is not interleaved with concurrent updates.
func (store Store) Update(episodeID string, updateFunc func(episode *Episode)) (err error) {
	key := episodeKey(episodeID)
	releaseLock, err := store.client.Lock(key)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	var episode Episode
	err = store.client.GetJSON(key, &episode)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	updateFunc(&episode)
	return store.client.SetJSON(key, episode)
}

// ValidationPatch builds the merge patch that records a supervisor's
// validation on the episode's verdict, leaving every other field untouched.
func ValidationPatch(validation triage.HumanValidation) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"triage_verdict": map[string]interface{}{
			"human_validation": validation,
		},
	})
}

// ApplyPatch applies an RFC 7386 merge patch to the raw episode document.
// Used by the supervisor validation workflow.
func (store Store) ApplyPatch(episodeID string, patch []byte) error {
	err := store.client.MergePatch(episodeKey(episodeID), patch)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (store Store) Close() {
	_ = store.client.Close()
}
