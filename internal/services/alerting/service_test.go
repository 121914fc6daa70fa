package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

type fakeNotifier struct {
	msgs []models.AlertMessage
	err  error
}

func (f *fakeNotifier) Notify(msg models.AlertMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeEvidence struct {
	path  string
	err   error
	saves int
}

func (f *fakeEvidence) Save(frame gocv.Mat, channelID string, kind models.ViolationKind, at time.Time) (string, error) {
	f.saves++
	return f.path, f.err
}

func (f *fakeEvidence) Location() *time.Location { return time.UTC }

type fakeStore struct {
	recs []models.ViolationRecord
	err  error
}

func (f *fakeStore) Insert(ctx context.Context, rec models.ViolationRecord) error {
	f.recs = append(f.recs, rec)
	return f.err
}

func newTestPipeline(n *fakeNotifier, e *fakeEvidence, s *fakeStore) *Pipeline {
	cfg := config.Load()
	return NewPipeline(cfg, "cam-1", "Kitchen Cam 1", n, e, s, zerolog.Nop())
}

func TestTriggerRunsAllStages(t *testing.T) {
	notifier := &fakeNotifier{}
	evidence := &fakeEvidence{path: "media/kitchen/cam-1.jpg"}
	store := &fakeStore{}
	p := newTestPipeline(notifier, evidence, store)

	frame := gocv.NewMat()
	defer frame.Close()

	p.Trigger(context.Background(), frame, models.Violation{
		Kind:    models.ViolationMissingApron,
		TrackID: 4,
		Details: "Person ID 4 detected with \"Without-apron\".",
	})

	if len(notifier.msgs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.msgs))
	}
	msg := notifier.msgs[0]
	if !strings.HasPrefix(msg.Message, "Kitchen Alert: Kitchen Cam 1\n") {
		t.Errorf("unexpected message header: %q", msg.Message)
	}
	if !strings.Contains(msg.Message, "Violation: "+string(models.ViolationMissingApron)) {
		t.Errorf("message missing violation line: %q", msg.Message)
	}

	if evidence.saves != 1 {
		t.Errorf("evidence saves = %d, want 1", evidence.saves)
	}
	if len(store.recs) != 1 {
		t.Fatalf("stored records = %d, want 1", len(store.recs))
	}
	if store.recs[0].MediaPath != evidence.path {
		t.Errorf("stored media path = %q, want %q", store.recs[0].MediaPath, evidence.path)
	}
}

func TestTriggerSkipsStoreWhenEvidenceFails(t *testing.T) {
	notifier := &fakeNotifier{}
	evidence := &fakeEvidence{err: errors.New("disk full")}
	store := &fakeStore{}
	p := newTestPipeline(notifier, evidence, store)

	frame := gocv.NewMat()
	defer frame.Close()

	p.Trigger(context.Background(), frame, models.Violation{Kind: models.ViolationPhoneUsage})

	if len(notifier.msgs) != 1 {
		t.Errorf("notifications = %d, want 1 even when evidence fails", len(notifier.msgs))
	}
	if len(store.recs) != 0 {
		t.Errorf("stored records = %d, want 0 without a media path", len(store.recs))
	}
}

func TestTriggerContinuesPastNotifierAndStoreErrors(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("nats down")}
	evidence := &fakeEvidence{path: "media/kitchen/cam-1.jpg"}
	store := &fakeStore{err: errors.New("db down")}
	p := newTestPipeline(notifier, evidence, store)

	frame := gocv.NewMat()
	defer frame.Close()

	// Must not panic or abort; every stage still gets its chance.
	p.Trigger(context.Background(), frame, models.Violation{Kind: models.ViolationUniformColor})

	if evidence.saves != 1 {
		t.Errorf("evidence saves = %d, want 1 despite notifier error", evidence.saves)
	}
	if len(store.recs) != 1 {
		t.Errorf("store insert attempts = %d, want 1 despite store error", len(store.recs))
	}
}
