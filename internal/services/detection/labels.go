package detection

import "kitchen-worker-go/internal/models"

// Label space of the apron/cap and glove models. Rule logic works on
// ViolationKind; these strings only exist at the detector boundary.
const (
	labelWithoutApron = "Without-apron"
	labelWithoutCap   = "Without-cap"
	labelGloves       = "surgical-gloves"
)

var violationKinds = map[string]models.ViolationKind{
	labelWithoutApron: models.ViolationMissingApron,
	labelWithoutCap:   models.ViolationMissingCap,
}

// KindForLabel maps an apron/cap model label onto a violation kind. The
// second return is false for compliant labels.
func KindForLabel(label string) (models.ViolationKind, bool) {
	kind, ok := violationKinds[label]
	return kind, ok
}

// IsViolationLabel reports whether the label denotes a missing-PPE class.
func IsViolationLabel(label string) bool {
	_, ok := violationKinds[label]
	return ok
}

// IsGlove reports whether the detection is a worn-glove class.
func IsGlove(d models.Detection) bool {
	return d.Label == labelGloves
}
