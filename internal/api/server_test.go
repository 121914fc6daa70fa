package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/services/evidence"
	"kitchen-worker-go/internal/worker"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Load()
	cfg.ModelsDir = t.TempDir()
	cfg.MediaDir = t.TempDir()
	cfg.Timezone = "UTC"

	evidenceSvc, err := evidence.NewService(cfg)
	if err != nil {
		t.Fatalf("evidence service: %v", err)
	}

	manager := worker.NewManager(cfg, nil, evidenceSvc, nil)
	t.Cleanup(manager.Shutdown)

	s := NewServer(cfg, manager)
	if err := s.Setup(); err != nil {
		t.Fatalf("server setup: %v", err)
	}
	return s
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestStartChannelValidation(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(`{"channel_name":"no id or url"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing required fields", w.Code)
	}
}

func TestStartAndQueryChannel(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(`{"channel_id":"cam-1","stream_url":"rtsp://example/stream"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/channels/cam-1/frame", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("frame status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("frame content type = %q, want image/jpeg", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("frame body is empty")
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/channels/unknown/status", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown channel status = %d, want 404", w.Code)
	}
}
