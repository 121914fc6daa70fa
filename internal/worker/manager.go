package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/logging"
	"kitchen-worker-go/internal/models"
	"kitchen-worker-go/internal/services/alerting"
	"kitchen-worker-go/internal/services/compliance"
	"kitchen-worker-go/internal/services/detection"
	"kitchen-worker-go/internal/services/evidence"
	"kitchen-worker-go/internal/services/monitor"
)

// Manager owns the per-channel monitors. Each channel gets its own detection
// nets, evaluator and frame loop; the notifier, evidence sink and store are
// shared process-wide.
type Manager struct {
	cfg      *config.Config
	notifier alerting.Notifier
	evidence *evidence.Service
	store    alerting.ViolationStore

	mu       sync.RWMutex
	channels map[string]*channel
}

type channel struct {
	req     models.ChannelRequest
	monitor *monitor.Monitor
	closers []func() error
}

func NewManager(cfg *config.Config, notifier alerting.Notifier, evidenceSvc *evidence.Service, store alerting.ViolationStore) *Manager {
	log.Info().
		Int("frame_skip_rate", cfg.FrameSkipRate).
		Float32("confidence_threshold", cfg.ConfidenceThreshold).
		Dur("alert_cooldown", cfg.AlertCooldown).
		Msg("Channel manager initialized")

	return &Manager{
		cfg:      cfg,
		notifier: notifier,
		evidence: evidenceSvc,
		store:    store,
		channels: make(map[string]*channel),
	}
}

// StartChannel creates and starts a monitor for the requested channel. A
// channel that already exists is stopped and rebuilt so the request always
// wins. The monitor outlives the caller, so it runs on the background
// context rather than the request's.
func (m *Manager) StartChannel(req models.ChannelRequest) (models.ChannelStatus, error) {
	if req.ChannelName == "" {
		req.ChannelName = req.ChannelID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.channels[req.ChannelID]; ok {
		log.Info().Str("channel_id", req.ChannelID).Msg("Stopping existing channel for clean restart")
		existing.teardown()
		delete(m.channels, req.ChannelID)
	}

	ch := m.buildChannel(req)
	m.channels[req.ChannelID] = ch
	ch.monitor.Start(context.Background())

	return ch.monitor.Status(), nil
}

// buildChannel loads the channel's detection resources and assembles the
// monitor. Load failures produce a monitor pinned in the error state rather
// than an error, so the channel stays visible and serves its error frame.
func (m *Manager) buildChannel(req models.ChannelRequest) *channel {
	logger := logging.WithChannel(log.Logger, req.ChannelID)

	ch := &channel{req: req}

	netOpts := detection.NetOptions{
		Backend:    gocv.NetBackendDefault,
		Target:     gocv.NetTargetCPU,
		InputSize:  m.cfg.ModelInputSize,
		Confidence: m.cfg.ConfidenceThreshold,
		NMS:        m.cfg.NMSThreshold,
	}

	generalNet, err := detection.NewYOLONet(filepath.Join(m.cfg.ModelsDir, m.cfg.GeneralModelFile), detection.CocoClasses, netOpts)
	if err != nil {
		ch.monitor = monitor.NewFailed(m.cfg, req.ChannelID, req.ChannelName, req.StreamURL, fmt.Errorf("load general model: %w", err), logger)
		return ch
	}
	ch.closers = append(ch.closers, generalNet.Close)

	apronCapNet, err := detection.NewYOLONet(filepath.Join(m.cfg.ModelsDir, m.cfg.ApronCapModelFile), detection.ApronCapClasses, netOpts)
	if err != nil {
		ch.monitor = monitor.NewFailed(m.cfg, req.ChannelID, req.ChannelName, req.StreamURL, fmt.Errorf("load apron/cap model: %w", err), logger)
		return ch
	}
	ch.closers = append(ch.closers, apronCapNet.Close)

	glovesNet, err := detection.NewYOLONet(filepath.Join(m.cfg.ModelsDir, m.cfg.GlovesModelFile), detection.GloveClasses, netOpts)
	if err != nil {
		ch.monitor = monitor.NewFailed(m.cfg, req.ChannelID, req.ChannelName, req.StreamURL, fmt.Errorf("load gloves model: %w", err), logger)
		return ch
	}
	ch.closers = append(ch.closers, glovesNet.Close)

	stage := detection.NewStage(m.cfg, detection.NewGeneralNet(generalNet), apronCapNet, glovesNet, logger)
	evaluator := compliance.NewEvaluator(m.cfg, logger)
	ch.closers = append(ch.closers, evaluator.Close)

	pipeline := alerting.NewPipeline(m.cfg, req.ChannelID, req.ChannelName, m.notifier, m.evidence, m.store, logger)
	ch.monitor = monitor.New(m.cfg, req.ChannelID, req.ChannelName, req.StreamURL, stage, evaluator, pipeline, logger)
	return ch
}

// StopChannel stops the channel's monitor and releases its resources.
func (m *Manager) StopChannel(channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s not found", channelID)
	}

	ch.teardown()
	delete(m.channels, channelID)
	log.Info().Str("channel_id", channelID).Msg("Channel stopped")
	return nil
}

// Status returns the status of one channel.
func (m *Manager) Status(channelID string) (models.ChannelStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.channels[channelID]
	if !ok {
		return models.ChannelStatus{}, fmt.Errorf("channel %s not found", channelID)
	}
	return ch.monitor.Status(), nil
}

// List returns the status of every channel.
func (m *Manager) List() []models.ChannelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ChannelStatus, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.monitor.Status())
	}
	return out
}

// Frame returns the latest published JPEG for one channel.
func (m *Manager) Frame(channelID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}
	return ch.monitor.Frame(), nil
}

// Shutdown stops every channel.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ch := range m.channels {
		ch.teardown()
		delete(m.channels, id)
	}
	log.Info().Msg("All channels stopped")
}

func (c *channel) teardown() {
	c.monitor.Stop()
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			log.Warn().Err(err).Str("channel_id", c.req.ChannelID).Msg("Failed to release channel resource")
		}
	}
}
