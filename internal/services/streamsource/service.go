package streamsource

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/helpers"
)

// ErrStopped is returned from Next when the stop channel fires while the
// source is waiting on a read or a reconnect backoff.
var ErrStopped = errors.New("stream source stopped")

// FrameSource yields sequential frames. Next blocks until a frame is
// available or the stop channel fires; it never returns a read error to the
// caller; end-of-stream and transient failures are absorbed internally.
type FrameSource interface {
	Next(stop <-chan struct{}, img *gocv.Mat) error
	FPS() float64
	Close() error
}

// capture is the subset of gocv.VideoCapture the source needs. Tests inject
// fakes through it.
type capture interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Set(prop gocv.VideoCaptureProperties, value float64)
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Source reads frames from a live RTSP stream or a video file. File-backed
// sources loop back to frame zero on end-of-stream; live sources reconnect
// with a fixed backoff and unbounded retries.
type Source struct {
	cfg    *config.Config
	url    string
	isFile bool
	cap    capture
	fps    float64
	openFn func() (capture, error)
	logger zerolog.Logger
}

// Open opens the stream at url. A nil error means at least one handle was
// established; later read failures are handled inside Next.
func Open(cfg *config.Config, url string, logger zerolog.Logger) (*Source, error) {
	s := &Source{
		cfg:    cfg,
		url:    url,
		isFile: isFileURL(url),
		logger: logger,
	}
	s.openFn = func() (capture, error) { return openCapture(cfg, url) }

	cap, err := s.openFn()
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", url, err)
	}
	s.cap = cap

	s.fps = cap.Get(gocv.VideoCaptureFPS)
	if s.fps <= 0 {
		s.fps = cfg.DefaultFPS
	}

	logger.Info().
		Str("url", url).
		Bool("is_file", s.isFile).
		Float64("fps", s.fps).
		Msg("Stream source opened")

	return s, nil
}

// FPS is the source frame rate queried at open time, defaulted when the
// backend does not report one.
func (s *Source) FPS() float64 { return s.fps }

// Next reads the next frame into img. On end-of-stream a file source seeks
// back to frame zero; a live source closes, waits the reconnect interval and
// reopens. Returns ErrStopped if the stop channel fires while waiting.
func (s *Source) Next(stop <-chan struct{}, img *gocv.Mat) error {
	for {
		select {
		case <-stop:
			return ErrStopped
		default:
		}

		if s.cap != nil && s.cap.Read(img) && !img.Empty() {
			return nil
		}

		if s.isFile {
			s.logger.Info().Str("url", s.url).Msg("Restarting video file from frame zero")
			s.cap.Set(gocv.VideoCapturePosFrames, 0)
			continue
		}

		s.logger.Warn().
			Str("url", s.url).
			Dur("backoff", s.cfg.ReconnectInterval).
			Msg("Stream read failed, reconnecting")

		if s.cap != nil {
			s.cap.Close()
			s.cap = nil
		}

		select {
		case <-stop:
			return ErrStopped
		case <-time.After(s.cfg.ReconnectInterval):
		}

		cap, err := s.openFn()
		if err != nil {
			s.logger.Warn().Err(err).Str("url", s.url).Msg("Reconnect attempt failed")
			continue
		}
		s.cap = cap
	}
}

// Close releases the underlying capture handle.
func (s *Source) Close() error {
	if s.cap != nil {
		err := s.cap.Close()
		s.cap = nil
		return err
	}
	return nil
}

// openCapture opens a gocv VideoCapture with the FFmpeg backend and the
// transport/timeout options the worker needs for RTSP.
func openCapture(cfg *config.Config, url string) (capture, error) {
	opts := fmt.Sprintf("rtsp_transport;tcp|stimeout;%d|rw_timeout;%d",
		cfg.StreamOpenTimeout.Microseconds(), cfg.StreamReadTimeout.Microseconds())
	os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", opts)

	cap, err := gocv.OpenVideoCaptureWithAPI(url, gocv.VideoCaptureFFmpeg)
	if err != nil {
		return nil, err
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("video capture is not opened")
	}

	// Minimal buffering keeps read latency close to live.
	cap.Set(gocv.VideoCaptureBufferSize, 1)
	return cap, nil
}

func isFileURL(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range []string{".mp4", ".avi", ".mov"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Placeholder is the synthetic fallback feed used when the real source
// cannot be opened at all. It emits fixed-size offline frames at a fixed
// rate so the rest of the pipeline keeps running in degraded mode.
type Placeholder struct {
	cfg         *config.Config
	channelName string
	counter     int64
}

func NewPlaceholder(cfg *config.Config, channelName string) *Placeholder {
	return &Placeholder{cfg: cfg, channelName: channelName}
}

func (p *Placeholder) FPS() float64 {
	return float64(time.Second) / float64(p.cfg.PlaceholderInterval)
}

func (p *Placeholder) Next(stop <-chan struct{}, img *gocv.Mat) error {
	select {
	case <-stop:
		return ErrStopped
	case <-time.After(p.cfg.PlaceholderInterval):
	}

	frame := helpers.NewPlaceholder(p.cfg.PlaceholderWidth, p.cfg.PlaceholderHeight,
		p.channelName,
		"Camera Offline - Test Mode",
		fmt.Sprintf("Frame: %d", p.counter))
	defer frame.Close()
	frame.CopyTo(img)
	p.counter++
	return nil
}

func (p *Placeholder) Close() error { return nil }
