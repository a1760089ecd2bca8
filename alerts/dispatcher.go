package alerts

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"caresignal.com/triage/logger"
	"caresignal.com/triage/triage"
	"caresignal.com/triage/utils"
)

// Severity bands map the final triage score onto an expected supervisor
// response time.
const (
	BandCritical = "critical"
	BandHigh     = "high"
	BandMedium   = "medium"

	criticalScoreMin = 90
	highScoreMin     = 75

	criticalSLAMinutes = 15
	highSLAMinutes     = 30
	mediumSLAMinutes   = 60

	// Final scores inside this closed band are treated as uncertain and
	// widen the notified supervisor pool for human review.
	uncertainScoreLow  = 40
	uncertainScoreHigh = 60

	baseTier    = 1
	widenedTier = 2
)

const (
	AlertTypeEmergency = "emergency"
	AlertTypeReview    = "review"
)

type publisher interface {
	PublishAlert(messageID string, body []byte) error
}

// Message is the payload published to the supervisor alerts queue.
type Message struct {
	AlertType          string         `json:"alert_type"`
	EpisodeID          string         `json:"episode_id"`
	Urgency            triage.Urgency `json:"urgency_level"`
	FinalScore         int            `json:"final_score"`
	SeverityBand       string         `json:"severity_band"`
	ResponseSLAMinutes int            `json:"response_sla_minutes"`
	Reasoning          string         `json:"reasoning"`
	Supervisors        []Supervisor   `json:"supervisors"`
	CreatedAt          string         `json:"created_at"`
}

// Dispatcher turns triage verdicts into supervisor notifications.
type Dispatcher struct {
	publisher    publisher
	roster       []Supervisor
	alertsLogger *zerolog.Logger
}

func NewDispatcher(pub publisher, roster []Supervisor) *Dispatcher {
	alertsLogger := logger.NewLogger("Alerts dispatcher")
	return &Dispatcher{
		publisher:    pub,
		roster:       roster,
		alertsLogger: &alertsLogger,
	}
}

// HandleVerdict publishes an emergency alert for EMERGENCY verdicts and a
// review alert for verdicts inside the uncertainty band. All other verdicts
// produce no notification.
func (d *Dispatcher) HandleVerdict(episodeID string, verdict triage.Verdict) error {
	switch {
	case verdict.Urgency == triage.UrgencyEmergency:
		return d.publish(AlertTypeEmergency, episodeID, verdict)
	case IsUncertainScore(verdict.FinalScore):
		return d.publish(AlertTypeReview, episodeID, verdict)
	}
	return nil
}

func (d *Dispatcher) publish(alertType string, episodeID string, verdict triage.Verdict) error {
	band, slaMinutes := SeverityBand(verdict.FinalScore)
	message := Message{
		AlertType:          alertType,
		EpisodeID:          episodeID,
		Urgency:            verdict.Urgency,
		FinalScore:         verdict.FinalScore,
		SeverityBand:       band,
		ResponseSLAMinutes: slaMinutes,
		Reasoning:          verdict.Reasoning,
		Supervisors:        d.SelectPool(verdict.FinalScore),
		CreatedAt:          utils.FormattedNow(),
	}
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	messageID := fmt.Sprintf("%s:%s", alertType, episodeID)
	if err := d.publisher.PublishAlert(messageID, body); err != nil {
		d.alertsLogger.Err(err).
			Str("episode_id", episodeID).
			Str("alert_type", alertType).
			Msg("Failed to publish supervisor alert")
		return err
	}
	d.alertsLogger.Info().
		Str("episode_id", episodeID).
		Str("alert_type", alertType).
		Str("severity_band", band).
		Int("supervisors", len(message.Supervisors)).
		Msg("Published supervisor alert")
	return nil
}

// SelectPool returns the on-call supervisors to notify for a score. Uncertain
// scores widen the pool from tier 1 to include tier 2.
func (d *Dispatcher) SelectPool(finalScore int) []Supervisor {
	maxTier := baseTier
	if IsUncertainScore(finalScore) {
		maxTier = widenedTier
	}
	pool := make([]Supervisor, 0, len(d.roster))
	for _, supervisor := range d.roster {
		if supervisor.OnCall && supervisor.Tier <= maxTier {
			pool = append(pool, supervisor)
		}
	}
	return pool
}

// SeverityBand maps a final score to its band and response SLA in minutes.
func SeverityBand(finalScore int) (string, int) {
	switch {
	case finalScore >= criticalScoreMin:
		return BandCritical, criticalSLAMinutes
	case finalScore >= highScoreMin:
		return BandHigh, highSLAMinutes
	}
	return BandMedium, mediumSLAMinutes
}

func IsUncertainScore(finalScore int) bool {
	return finalScore >= uncertainScoreLow && finalScore <= uncertainScoreHigh
}
