package worker

import (
	"testing"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
	"kitchen-worker-go/internal/services/evidence"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := config.Load()
	cfg.ModelsDir = t.TempDir() // no model files: channels start in error state
	cfg.MediaDir = t.TempDir()
	cfg.Timezone = "UTC"

	evidenceSvc, err := evidence.NewService(cfg)
	if err != nil {
		t.Fatalf("evidence service: %v", err)
	}

	return NewManager(cfg, nil, evidenceSvc, nil)
}

func TestStartChannelWithMissingModelsPinsErrorState(t *testing.T) {
	m := newTestManager(t)
	defer m.Shutdown()

	status, err := m.StartChannel(models.ChannelRequest{
		ChannelID: "cam-1",
		StreamURL: "rtsp://example/stream",
	})
	if err != nil {
		t.Fatalf("StartChannel: %v", err)
	}

	if status.State != models.MonitorStateError {
		t.Errorf("state = %s, want %s", status.State, models.MonitorStateError)
	}
	if status.Error == "" {
		t.Error("error state carries no error text")
	}
	if status.ChannelName != "cam-1" {
		t.Errorf("channel name = %q, want the id as fallback", status.ChannelName)
	}

	// The failed channel still serves its error frame.
	frame, err := m.Frame("cam-1")
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(frame) == 0 {
		t.Error("error-state channel returned no frame bytes")
	}
}

func TestStopChannelRemovesIt(t *testing.T) {
	m := newTestManager(t)
	defer m.Shutdown()

	if _, err := m.StartChannel(models.ChannelRequest{ChannelID: "cam-1", StreamURL: "rtsp://x"}); err != nil {
		t.Fatalf("StartChannel: %v", err)
	}

	if err := m.StopChannel("cam-1"); err != nil {
		t.Fatalf("StopChannel: %v", err)
	}
	if _, err := m.Status("cam-1"); err == nil {
		t.Error("stopped channel still visible")
	}
	if err := m.StopChannel("cam-1"); err == nil {
		t.Error("stopping an unknown channel did not error")
	}
}

func TestStartChannelReplacesExisting(t *testing.T) {
	m := newTestManager(t)
	defer m.Shutdown()

	if _, err := m.StartChannel(models.ChannelRequest{ChannelID: "cam-1", StreamURL: "rtsp://old"}); err != nil {
		t.Fatalf("StartChannel: %v", err)
	}
	if _, err := m.StartChannel(models.ChannelRequest{ChannelID: "cam-1", ChannelName: "Main Kitchen", StreamURL: "rtsp://new"}); err != nil {
		t.Fatalf("restart StartChannel: %v", err)
	}

	list := m.List()
	if len(list) != 1 {
		t.Fatalf("channels = %d, want 1 after restart", len(list))
	}
	if list[0].StreamURL != "rtsp://new" || list[0].ChannelName != "Main Kitchen" {
		t.Errorf("restart did not replace channel config: %+v", list[0])
	}
}
