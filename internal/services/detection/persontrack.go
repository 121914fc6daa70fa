package detection

import (
	"image"

	"kitchen-worker-go/internal/models"
)

const (
	// idMatchMinIoU is the minimum box overlap for a detection to inherit
	// an existing identity.
	idMatchMinIoU = 0.3
	// idMaxMissed is how many cycles an unmatched identity survives before
	// it is dropped.
	idMaxMissed = 30
)

type idTrack struct {
	id     int
	box    image.Rectangle
	missed int
}

// idAssigner gives person detections stable integer identities across
// cycles by greedy IoU matching. Good enough for "same id, same person,
// best effort"; identities tolerate short detection gaps.
type idAssigner struct {
	nextID int
	tracks []idTrack
}

func newIDAssigner() *idAssigner {
	return &idAssigner{nextID: 1}
}

func (a *idAssigner) assign(dets []models.Detection) []models.TrackedPerson {
	claimed := make([]bool, len(a.tracks))
	persons := make([]models.TrackedPerson, 0, len(dets))

	for _, det := range dets {
		best := -1
		bestIoU := idMatchMinIoU
		for i, tr := range a.tracks {
			if claimed[i] {
				continue
			}
			if overlap := iou(det.Box, tr.box); overlap >= bestIoU {
				bestIoU = overlap
				best = i
			}
		}

		var id int
		if best >= 0 {
			claimed[best] = true
			a.tracks[best].box = det.Box
			a.tracks[best].missed = 0
			id = a.tracks[best].id
		} else {
			id = a.nextID
			a.nextID++
			a.tracks = append(a.tracks, idTrack{id: id, box: det.Box})
			claimed = append(claimed, true)
		}

		persons = append(persons, models.TrackedPerson{TrackID: id, Box: det.Box, Score: det.Score})
	}

	kept := a.tracks[:0]
	for i, tr := range a.tracks {
		if !claimed[i] {
			tr.missed++
		}
		if tr.missed <= idMaxMissed {
			kept = append(kept, tr)
		}
	}
	a.tracks = kept

	return persons
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}
