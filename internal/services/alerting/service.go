package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

// Notifier delivers an alert message to the notification channel.
type Notifier interface {
	Notify(msg models.AlertMessage) error
}

// EvidenceSink persists an annotated frame and returns its media path.
type EvidenceSink interface {
	Save(frame gocv.Mat, channelID string, kind models.ViolationKind, at time.Time) (string, error)
	Location() *time.Location
}

// ViolationStore records raised violations.
type ViolationStore interface {
	Insert(ctx context.Context, rec models.ViolationRecord) error
}

// Pipeline fans one violation out to the log, the notifier, the evidence
// sink and the store, in that order. Stage failures are logged and the
// remaining stages still run, except the store: a violation is only
// inserted when evidence was written, so every row has a media path.
type Pipeline struct {
	cfg         *config.Config
	channelID   string
	channelName string
	notifier    Notifier
	evidence    EvidenceSink
	store       ViolationStore
	logger      zerolog.Logger
}

func NewPipeline(cfg *config.Config, channelID, channelName string, notifier Notifier, evidence EvidenceSink, store ViolationStore, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		channelID:   channelID,
		channelName: channelName,
		notifier:    notifier,
		evidence:    evidence,
		store:       store,
		logger:      logger,
	}
}

// Trigger raises one violation with the given annotated frame.
func (p *Pipeline) Trigger(ctx context.Context, frame gocv.Mat, v models.Violation) {
	now := time.Now().In(p.evidence.Location())

	p.logger.Warn().
		Str("violation", string(v.Kind)).
		Int("track_id", v.TrackID).
		Str("details", v.Details).
		Msg("Violation detected")

	msg := models.AlertMessage{
		ChannelID:   p.channelID,
		ChannelName: p.channelName,
		Kind:        v.Kind,
		Details:     v.Details,
		Timestamp:   now,
		Message:     fmt.Sprintf("Kitchen Alert: %s\nViolation: %s\nDetails: %s", p.channelName, v.Kind, v.Details),
	}
	if err := p.notifier.Notify(msg); err != nil {
		p.logger.Error().Err(err).Msg("Failed to publish alert notification")
	}

	mediaPath, err := p.evidence.Save(frame, p.channelID, v.Kind, now)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to persist violation evidence")
		return
	}

	rec := models.ViolationRecord{
		ChannelID:   p.channelID,
		ChannelName: p.channelName,
		Timestamp:   now,
		Kind:        v.Kind,
		Details:     v.Details,
		MediaPath:   mediaPath,
	}
	if err := p.store.Insert(ctx, rec); err != nil {
		p.logger.Error().Err(err).Str("media_path", mediaPath).Msg("Failed to store violation record")
	}
}
