package detection

import (
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

// GeneralDetector is the person+phone capability. Person detections carry
// stable track identities; phone detections do not.
type GeneralDetector interface {
	TrackPersons(frame gocv.Mat) ([]models.TrackedPerson, error)
	DetectPhones(frame gocv.Mat) ([]models.Detection, error)
}

// ObjectDetector runs one model pass over a frame.
type ObjectDetector interface {
	Detect(frame gocv.Mat) ([]models.Detection, error)
}

// Results is one cycle's detection set.
type Results struct {
	Persons  []models.TrackedPerson
	Phones   []models.Detection
	ApronCap []models.Detection
	Gloves   []models.Detection
}

// Stage orchestrates the three detectors over each frame. Person and phone
// detection run every cycle; apron/cap and gloves run every Nth cycle and
// serve cached results in between so violations do not flicker purely from
// sampling. A failed detector contributes nothing for the cycle but never
// aborts it.
type Stage struct {
	general    GeneralDetector
	apronCap   ObjectDetector
	gloves     ObjectDetector
	confidence float32
	skipRate   int
	logger     zerolog.Logger

	lastApronCap []models.Detection
	lastGloves   []models.Detection
}

func NewStage(cfg *config.Config, general GeneralDetector, apronCap, gloves ObjectDetector, logger zerolog.Logger) *Stage {
	return &Stage{
		general:    general,
		apronCap:   apronCap,
		gloves:     gloves,
		confidence: cfg.ConfidenceThreshold,
		skipRate:   cfg.FrameSkipRate,
		logger:     logger,
	}
}

// Infer runs the detectors for one cycle.
func (s *Stage) Infer(frame gocv.Mat, cycle int64) Results {
	var res Results

	persons, err := s.general.TrackPersons(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Person tracking failed, skipping for this cycle")
	} else {
		res.Persons = filterPersons(persons, s.confidence)
	}

	phones, err := s.general.DetectPhones(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Phone detection failed, skipping for this cycle")
	} else {
		res.Phones = filterDetections(phones, s.confidence)
	}

	if cycle%int64(s.skipRate) == 0 {
		apronCap, err := s.apronCap.Detect(frame)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Apron/cap detection failed, clearing cached results")
			s.lastApronCap = nil
		} else {
			s.lastApronCap = filterDetections(apronCap, s.confidence)
		}

		gloves, err := s.gloves.Detect(frame)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Glove detection failed, clearing cached results")
			s.lastGloves = nil
		} else {
			s.lastGloves = filterDetections(gloves, s.confidence)
		}
	}

	res.ApronCap = s.lastApronCap
	res.Gloves = s.lastGloves
	return res
}

// filterDetections keeps detections at or above the confidence threshold.
func filterDetections(dets []models.Detection, threshold float32) []models.Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Score >= threshold {
			out = append(out, d)
		}
	}
	return out
}

func filterPersons(persons []models.TrackedPerson, threshold float32) []models.TrackedPerson {
	out := persons[:0:0]
	for _, p := range persons {
		if p.Score >= threshold {
			out = append(out, p)
		}
	}
	return out
}
