package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/helpers"
	"kitchen-worker-go/internal/models"
	"kitchen-worker-go/internal/services/alerting"
	"kitchen-worker-go/internal/services/compliance"
	"kitchen-worker-go/internal/services/detection"
	"kitchen-worker-go/internal/services/streamsource"
)

// Monitor runs the per-channel frame loop: acquire a frame, run detection,
// publish the annotated snapshot and raise violations. One monitor owns one
// channel and all of its resources.
type Monitor struct {
	cfg         *config.Config
	channelID   string
	channelName string
	streamURL   string

	stage     *detection.Stage
	evaluator *compliance.Evaluator
	pipeline  *alerting.Pipeline
	logger    zerolog.Logger

	mu            sync.RWMutex
	state         models.MonitorState
	lastErr       string
	frameCount    int64
	lastFrameTime time.Time
	frame         []byte

	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(cfg *config.Config, channelID, channelName, streamURL string, stage *detection.Stage, evaluator *compliance.Evaluator, pipeline *alerting.Pipeline, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		cfg:         cfg,
		channelID:   channelID,
		channelName: channelName,
		streamURL:   streamURL,
		stage:       stage,
		evaluator:   evaluator,
		pipeline:    pipeline,
		logger:      logger,
		state:       models.MonitorStateInit,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	m.frame = m.placeholderJPEG("Connecting...")
	return m
}

// NewFailed builds a monitor pinned in the error state. Used when required
// detection resources could not be loaded; the monitor serves the error
// placeholder forever and never cycles.
func NewFailed(cfg *config.Config, channelID, channelName, streamURL string, initErr error, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		cfg:         cfg,
		channelID:   channelID,
		channelName: channelName,
		streamURL:   streamURL,
		logger:      logger,
		state:       models.MonitorStateError,
		lastErr:     initErr.Error(),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	errFrame := helpers.NewErrorPlaceholder(cfg.PlaceholderWidth, cfg.PlaceholderHeight, initErr.Error())
	defer errFrame.Close()
	if buf, err := helpers.EncodeJPEG(errFrame, cfg.MediaQuality); err == nil {
		m.frame = buf
	}
	close(m.done)
	return m
}

// Start launches the frame loop. Safe to call more than once; only the
// first call takes effect. A monitor in the error state never starts.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.RLock()
	state, lastErr := m.state, m.lastErr
	m.mu.RUnlock()
	if state == models.MonitorStateError {
		m.logger.Error().Str("error", lastErr).Msg("Monitor is in error state, refusing to start")
		return
	}
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		go m.run(ctx)
	})
}

// Stop requests a cooperative shutdown and waits for the loop to exit.
// Idempotent; a no-op on a monitor that never started.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if !started {
		// The error state is pinned; anything else becomes a clean stop.
		if m.State() != models.MonitorStateError {
			m.setState(models.MonitorStateStopped, "")
		}
		return
	}
	<-m.done
}

// Frame returns the latest published JPEG. It always returns a frame: a
// connecting placeholder before the first capture, the error placeholder
// when initialization failed.
func (m *Monitor) Frame() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame
}

func (m *Monitor) State() models.MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) Status() models.ChannelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ChannelStatus{
		ChannelID:     m.channelID,
		ChannelName:   m.channelName,
		StreamURL:     m.streamURL,
		State:         m.state,
		FrameCount:    m.frameCount,
		LastFrameTime: m.lastFrameTime,
		Error:         m.lastErr,
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Frame loop panicked")
			m.setState(models.MonitorStateError, fmt.Sprintf("frame loop panic: %v", r))
		}
	}()

	source := m.openSource()
	defer func() { source.Close() }()

	m.setState(models.MonitorStateRunning, "")
	m.logger.Info().
		Str("url", m.streamURL).
		Float64("fps", source.FPS()).
		Msg("Channel monitor running")

	persistFrames := int(m.cfg.PhonePersistence.Seconds() * source.FPS())

	frame := gocv.NewMat()
	defer frame.Close()

	var cycle int64
	for {
		select {
		case <-m.stop:
			m.setState(models.MonitorStateStopped, "")
			m.logger.Info().Msg("Channel monitor stopped")
			return
		default:
		}

		if err := source.Next(m.stop, &frame); err != nil {
			if err == streamsource.ErrStopped {
				m.setState(models.MonitorStateStopped, "")
				m.logger.Info().Msg("Channel monitor stopped")
				return
			}
			m.logger.Error().Err(err).Msg("Frame acquisition failed, switching to placeholder feed")
			source.Close()
			source = streamsource.NewPlaceholder(m.cfg, m.channelName)
			continue
		}

		cycle++
		res := m.stage.Infer(frame, cycle)

		now := time.Now()
		violations := m.evaluator.EvaluatePersons(frame, res, now)
		violations = append(violations, m.evaluator.EvaluatePhones(res.Phones, persistFrames)...)

		annotated := frame.Clone()
		helpers.DrawOverlay(&annotated, res.Persons, res.Phones, res.ApronCap, res.Gloves, violationLabels(res.ApronCap))

		if buf, err := helpers.EncodeJPEG(annotated, m.cfg.MediaQuality); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to encode frame for publishing")
		} else {
			m.publishFrame(buf, now)
		}

		for _, v := range violations {
			m.pipeline.Trigger(ctx, annotated, v)
		}
		annotated.Close()
	}
}

// openSource opens the configured stream, falling back to the offline
// placeholder feed when the stream cannot be opened at all.
func (m *Monitor) openSource() streamsource.FrameSource {
	src, err := streamsource.Open(m.cfg, m.streamURL, m.logger)
	if err != nil {
		m.logger.Error().Err(err).Str("url", m.streamURL).Msg("Stream open failed, serving placeholder feed")
		return streamsource.NewPlaceholder(m.cfg, m.channelName)
	}
	return src
}

func (m *Monitor) publishFrame(buf []byte, at time.Time) {
	m.mu.Lock()
	m.frame = buf
	m.frameCount++
	m.lastFrameTime = at
	m.mu.Unlock()
}

func (m *Monitor) setState(state models.MonitorState, errText string) {
	m.mu.Lock()
	m.state = state
	m.lastErr = errText
	m.mu.Unlock()
}

func (m *Monitor) placeholderJPEG(lines ...string) []byte {
	lines = append([]string{m.channelName}, lines...)
	mat := helpers.NewPlaceholder(m.cfg.PlaceholderWidth, m.cfg.PlaceholderHeight, lines...)
	defer mat.Close()

	buf, err := helpers.EncodeJPEG(mat, m.cfg.MediaQuality)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to encode placeholder frame")
		return nil
	}
	return buf
}

// violationLabels marks the apron/cap labels drawn in the violation color.
func violationLabels(apronCap []models.Detection) map[string]bool {
	var out map[string]bool
	for _, d := range apronCap {
		if detection.IsViolationLabel(d.Label) {
			if out == nil {
				out = make(map[string]bool)
			}
			out[d.Label] = true
		}
	}
	return out
}
