package compliance

import (
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/helpers"
	"kitchen-worker-go/internal/models"
	"kitchen-worker-go/internal/services/detection"
)

// Evaluator applies the compliance rules to one cycle's detections and
// returns the violations to raise, already gated by the cooldown tracker
// (person rules) or the one-shot latch (phone persistence).
type Evaluator struct {
	cfg        *config.Config
	color      *ColorClassifier
	violations *ViolationTracker
	phones     *PhoneTracker
	logger     zerolog.Logger
}

func NewEvaluator(cfg *config.Config, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		color:      NewColorClassifier(cfg),
		violations: NewViolationTracker(cfg),
		phones:     NewPhoneTracker(cfg),
		logger:     logger,
	}
}

func (e *Evaluator) Close() error {
	return e.color.Close()
}

// EvaluatePersons runs the apron/cap, glove and uniform-color rules for each
// tracked person. The frame is the raw capture; rule logic never reads the
// annotated overlay.
func (e *Evaluator) EvaluatePersons(frame gocv.Mat, res detection.Results, now time.Time) []models.Violation {
	var out []models.Violation
	frameRect := image.Rect(0, 0, frame.Cols(), frame.Rows())

	var gloveBoxes []models.Detection
	for _, d := range res.Gloves {
		if detection.IsGlove(d) {
			gloveBoxes = append(gloveBoxes, d)
		}
	}

	for _, person := range res.Persons {
		// Apron/cap violations reported by the classifier.
		for _, d := range res.ApronCap {
			kind, ok := detection.KindForLabel(d.Label)
			if !ok {
				continue
			}
			if e.violations.ShouldAlert(person.TrackID, kind, now) {
				out = append(out, models.Violation{
					Kind:    kind,
					TrackID: person.TrackID,
					Details: fmt.Sprintf("Person ID %d detected with %q.", person.TrackID, d.Label),
				})
			}
		}

		// Glove presence requires a worn-glove box strictly inside the
		// person box; partial overlap counts as no gloves.
		hasGloves := false
		for _, g := range gloveBoxes {
			if helpers.StrictlyContains(person.Box, g.Box) {
				hasGloves = true
				break
			}
		}
		if !hasGloves {
			if e.violations.ShouldAlert(person.TrackID, models.ViolationMissingGlove, now) {
				out = append(out, models.Violation{
					Kind:    models.ViolationMissingGlove,
					TrackID: person.TrackID,
					Details: fmt.Sprintf("Person ID %d has no gloves.", person.TrackID),
				})
			}
		}

		// Uniform color on the torso band. An empty crop is no data, never
		// a violation.
		crop := TorsoCrop(person.Box, frameRect, e.cfg.TorsoTopFraction, e.cfg.TorsoBottomFrac)
		if crop.Empty() {
			continue
		}
		region := frame.Region(crop)
		ratio, hasData := e.color.CompliantRatio(region)
		region.Close()
		if !hasData || e.color.IsCompliant(ratio) {
			continue
		}
		if e.violations.ShouldAlert(person.TrackID, models.ViolationUniformColor, now) {
			out = append(out, models.Violation{
				Kind:    models.ViolationUniformColor,
				TrackID: person.TrackID,
				Details: fmt.Sprintf("Person ID %d has a uniform color violation.", person.TrackID),
			})
		}
	}

	return out
}

// EvaluatePhones feeds this cycle's phone detections through the tracker
// and returns a violation for each track that crossed the persistence
// threshold and has not alerted yet. persistFrames is the persistence
// window converted to frames at the source frame rate.
func (e *Evaluator) EvaluatePhones(phones []models.Detection, persistFrames int) []models.Violation {
	var out []models.Violation

	for _, tr := range e.phones.Update(phones) {
		if tr.ConsecutiveFrames <= persistFrames || tr.Alerted {
			continue
		}
		e.phones.MarkAlerted(tr.TrackID)
		out = append(out, models.Violation{
			Kind:    models.ViolationPhoneUsage,
			TrackID: tr.TrackID,
			Details: fmt.Sprintf("Mobile phone detected in restricted area for %.0f seconds.", e.cfg.PhonePersistence.Seconds()),
		})
	}

	return out
}
