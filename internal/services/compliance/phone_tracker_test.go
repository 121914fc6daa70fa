package compliance

import (
	"image"
	"testing"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

// phoneAt builds a phone detection whose box center is (cx, cy).
func phoneAt(cx, cy int) models.Detection {
	return models.Detection{
		Label: "cell phone",
		Score: 0.9,
		Box:   image.Rect(cx-20, cy-10, cx+20, cy+10),
	}
}

func newTestPhoneTracker() *PhoneTracker {
	cfg := config.Load()
	cfg.PhoneMatchDistance = 50
	return NewPhoneTracker(cfg)
}

func TestPhoneTrackerMergesWithinMatchDistance(t *testing.T) {
	tr := newTestPhoneTracker()

	first := tr.Update([]models.Detection{phoneAt(100, 100)})
	if len(first) != 1 || first[0].ConsecutiveFrames != 1 {
		t.Fatalf("unexpected initial tracks: %+v", first)
	}

	// 49 px away: merges into the same track.
	second := tr.Update([]models.Detection{phoneAt(149, 100)})
	if len(second) != 1 {
		t.Fatalf("tracks = %d, want 1", len(second))
	}
	if second[0].TrackID != first[0].TrackID {
		t.Errorf("track id changed: %d -> %d", first[0].TrackID, second[0].TrackID)
	}
	if second[0].ConsecutiveFrames != 2 {
		t.Errorf("consecutive frames = %d, want 2", second[0].ConsecutiveFrames)
	}
}

func TestPhoneTrackerSplitsBeyondMatchDistance(t *testing.T) {
	tr := newTestPhoneTracker()

	first := tr.Update([]models.Detection{phoneAt(100, 100)})

	// 51 px away: a distinct track, and the old one is not carried forward.
	second := tr.Update([]models.Detection{phoneAt(151, 100)})
	if len(second) != 1 {
		t.Fatalf("tracks = %d, want 1", len(second))
	}
	if second[0].TrackID == first[0].TrackID {
		t.Error("detection beyond the match distance reused the old track id")
	}
	if second[0].ConsecutiveFrames != 1 {
		t.Errorf("consecutive frames = %d, want 1", second[0].ConsecutiveFrames)
	}
}

func TestPhoneTrackerDropsUnmatchedTracks(t *testing.T) {
	tr := newTestPhoneTracker()

	tr.Update([]models.Detection{phoneAt(100, 100)})
	if got := tr.Update(nil); len(got) != 0 {
		t.Fatalf("tracks after empty cycle = %d, want 0", len(got))
	}

	// The phone reappearing in place is a brand new track: no persistence
	// across a gap.
	back := tr.Update([]models.Detection{phoneAt(100, 100)})
	if back[0].ConsecutiveFrames != 1 {
		t.Errorf("consecutive frames = %d, want 1 after a gap", back[0].ConsecutiveFrames)
	}
}

func TestPhoneTrackerMatchesAtMostOneDetectionPerTrack(t *testing.T) {
	tr := newTestPhoneTracker()

	tr.Update([]models.Detection{phoneAt(100, 100)})

	// Two detections both within range of the single prior track: exactly
	// one merges (first match), the other becomes a new track.
	got := tr.Update([]models.Detection{phoneAt(110, 100), phoneAt(90, 100)})
	if len(got) != 2 {
		t.Fatalf("tracks = %d, want 2", len(got))
	}
	if got[0].ConsecutiveFrames != 2 {
		t.Errorf("first match frames = %d, want 2", got[0].ConsecutiveFrames)
	}
	if got[1].ConsecutiveFrames != 1 {
		t.Errorf("second detection frames = %d, want 1 (new track)", got[1].ConsecutiveFrames)
	}
}

func TestPhonePersistenceAlertFiresExactlyOnce(t *testing.T) {
	cfg := config.Load()
	cfg.PhoneMatchDistance = 50
	e := &Evaluator{cfg: cfg, phones: NewPhoneTracker(cfg)}

	const persistFrames = 3
	alerts := 0
	for cycle := 0; cycle < 10; cycle++ {
		got := e.EvaluatePhones([]models.Detection{phoneAt(100, 100)}, persistFrames)
		alerts += len(got)

		// Threshold is strict: the alert fires on the first cycle where
		// consecutive frames exceed persistFrames.
		if cycle < persistFrames && alerts != 0 {
			t.Fatalf("cycle %d: alert fired before persistence threshold", cycle)
		}
	}

	if alerts != 1 {
		t.Errorf("persistence alerts = %d, want exactly 1", alerts)
	}
}
