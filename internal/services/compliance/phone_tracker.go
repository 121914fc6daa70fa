package compliance

import (
	"gonum.org/v1/gonum/floats"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

// PhoneTracker assigns local identities to phone detections, which carry no
// stable id from the detector. The track set is rebuilt every cycle: each
// detection merges into the first prior track whose last center lies within
// the match distance, and prior tracks left unmatched are dropped. Matching
// is first-match greedy, not a global optimal assignment.
type PhoneTracker struct {
	matchDistance float64
	nextID        int
	tracks        []models.PhoneTrack
}

func NewPhoneTracker(cfg *config.Config) *PhoneTracker {
	return &PhoneTracker{
		matchDistance: cfg.PhoneMatchDistance,
		nextID:        1,
	}
}

// Update rebuilds the track set from this cycle's detections and returns it.
// At most one detection merges into each prior track.
func (t *PhoneTracker) Update(phones []models.Detection) []models.PhoneTrack {
	claimed := make([]bool, len(t.tracks))
	next := make([]models.PhoneTrack, 0, len(phones))

	for _, det := range phones {
		center := det.Center()
		matched := false

		for i, tr := range t.tracks {
			if claimed[i] {
				continue
			}
			dist := floats.Distance(
				[]float64{float64(center.X), float64(center.Y)},
				[]float64{float64(tr.LastCenter.X), float64(tr.LastCenter.Y)},
				2,
			)
			if dist < t.matchDistance {
				claimed[i] = true
				next = append(next, models.PhoneTrack{
					TrackID:           tr.TrackID,
					Box:               det.Box,
					LastCenter:        center,
					ConsecutiveFrames: tr.ConsecutiveFrames + 1,
					Alerted:           tr.Alerted,
				})
				matched = true
				break
			}
		}

		if !matched {
			next = append(next, models.PhoneTrack{
				TrackID:           t.nextID,
				Box:               det.Box,
				LastCenter:        center,
				ConsecutiveFrames: 1,
			})
			t.nextID++
		}
	}

	t.tracks = next
	out := make([]models.PhoneTrack, len(next))
	copy(out, next)
	return out
}

// MarkAlerted latches the alert flag for a track id. The latch never resets
// while the id persists, so a sustained phone alerts exactly once.
func (t *PhoneTracker) MarkAlerted(trackID int) {
	for i := range t.tracks {
		if t.tracks[i].TrackID == trackID {
			t.tracks[i].Alerted = true
			return
		}
	}
}
