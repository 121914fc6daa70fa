package models

import (
	"image"
	"time"
)

// ViolationKind is the closed set of compliance violations the worker raises.
// Detector label strings are mapped into this enum at the detection boundary;
// rule logic never compares raw labels.
type ViolationKind string

const (
	ViolationMissingApron ViolationKind = "MISSING_APRON"
	ViolationMissingCap   ViolationKind = "MISSING_CAP"
	ViolationMissingGlove ViolationKind = "MISSING_GLOVES"
	ViolationUniformColor ViolationKind = "UNIFORM_COLOR"
	ViolationPhoneUsage   ViolationKind = "PHONE_USAGE"
)

// Detection is a single labeled, confidence-scored bounding box from one
// model pass. Produced fresh each cycle and never mutated.
type Detection struct {
	Label string          `json:"label"`
	Score float32         `json:"score"`
	Box   image.Rectangle `json:"box"`
}

// Center returns the center point of the detection box.
func (d Detection) Center() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// TrackedPerson is a person detection carrying a stable track identity.
// Same id means same physical person, best-effort.
type TrackedPerson struct {
	TrackID int             `json:"track_id"`
	Box     image.Rectangle `json:"box"`
	Score   float32         `json:"score"`
}

// PhoneTrack is the persistence state for a phone detection. Phones carry no
// stable identity from the detector, so ids are assigned locally by the
// nearest-centroid tracker.
type PhoneTrack struct {
	TrackID           int
	Box               image.Rectangle
	LastCenter        image.Point
	ConsecutiveFrames int
	Alerted           bool
}

// Violation is an ephemeral rule-evaluation result, consumed immediately by
// the alert pipeline.
type Violation struct {
	Kind    ViolationKind
	TrackID int
	Details string
}

// ViolationRecord is the persisted shape of a raised alert. MediaPath is
// unique in the store.
type ViolationRecord struct {
	ChannelID   string        `json:"channel_id"`
	ChannelName string        `json:"channel_name"`
	Timestamp   time.Time     `json:"timestamp"`
	Kind        ViolationKind `json:"violation_type"`
	Details     string        `json:"details"`
	MediaPath   string        `json:"media_path"`
}

// AlertMessage is the payload published to the notification channel.
type AlertMessage struct {
	ChannelID   string        `json:"channel_id"`
	ChannelName string        `json:"channel_name"`
	Kind        ViolationKind `json:"violation_type"`
	Details     string        `json:"details"`
	Timestamp   time.Time     `json:"timestamp"`
	Message     string        `json:"message"`
}
