package streamsource

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
)

// fakeCapture scripts a sequence of read results. A true read fills the
// destination Mat so it is non-empty.
type fakeCapture struct {
	reads    []bool
	idx      int
	setCalls []gocv.VideoCaptureProperties
	closed   bool
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	ok := false
	if f.idx < len(f.reads) {
		ok = f.reads[f.idx]
	}
	f.idx++
	if ok {
		frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
		defer frame.Close()
		frame.CopyTo(m)
	}
	return ok
}

func (f *fakeCapture) IsOpened() bool { return !f.closed }

func (f *fakeCapture) Set(prop gocv.VideoCaptureProperties, value float64) {
	f.setCalls = append(f.setCalls, prop)
}

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 { return 0 }

func (f *fakeCapture) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.ReconnectInterval = 5 * time.Millisecond
	return cfg
}

func TestFileSourceLoopsOnEndOfStream(t *testing.T) {
	cap := &fakeCapture{reads: []bool{true, false, true}}
	src := &Source{
		cfg:    testConfig(),
		url:    "clip.mp4",
		isFile: true,
		cap:    cap,
		fps:    30,
		logger: zerolog.Nop(),
	}

	img := gocv.NewMat()
	defer img.Close()
	stop := make(chan struct{})

	if err := src.Next(stop, &img); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	// Second read hits end-of-stream, which must seek to frame zero and
	// deliver the next frame instead of failing.
	if err := src.Next(stop, &img); err != nil {
		t.Fatalf("Next after end-of-stream: %v", err)
	}

	seeked := false
	for _, prop := range cap.setCalls {
		if prop == gocv.VideoCapturePosFrames {
			seeked = true
		}
	}
	if !seeked {
		t.Error("expected seek to frame zero on end-of-stream")
	}
	if cap.closed {
		t.Error("file source must not close the capture on end-of-stream")
	}
}

func TestLiveSourceReconnectsUntilSuccess(t *testing.T) {
	attempts := 0
	src := &Source{
		cfg:    testConfig(),
		url:    "rtsp://cam/stream",
		isFile: false,
		cap:    &fakeCapture{reads: []bool{false}},
		fps:    30,
		logger: zerolog.Nop(),
	}
	src.openFn = func() (capture, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return &fakeCapture{reads: []bool{true}}, nil
	}

	img := gocv.NewMat()
	defer img.Close()
	stop := make(chan struct{})

	if err := src.Next(stop, &img); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if attempts != 3 {
		t.Errorf("reconnect attempts = %d, want 3", attempts)
	}
	if img.Empty() {
		t.Error("expected a frame after reconnect")
	}
}

func TestNextReturnsErrStoppedDuringBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectInterval = time.Hour

	src := &Source{
		cfg:    cfg,
		url:    "rtsp://cam/stream",
		isFile: false,
		cap:    &fakeCapture{reads: []bool{false}},
		fps:    30,
		logger: zerolog.Nop(),
	}
	src.openFn = func() (capture, error) { return nil, errors.New("unreachable") }

	img := gocv.NewMat()
	defer img.Close()
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- src.Next(stop, &img) }()

	time.Sleep(20 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Next = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after stop")
	}
}

func TestIsFileURL(t *testing.T) {
	cases := map[string]bool{
		"rtsp://10.0.0.5/stream1": false,
		"clips/kitchen.MP4":       true,
		"archive/shift.avi":       true,
		"pan.mov":                 true,
		"http://cam/live":         false,
	}
	for url, want := range cases {
		if got := isFileURL(url); got != want {
			t.Errorf("isFileURL(%q) = %v, want %v", url, got, want)
		}
	}
}
