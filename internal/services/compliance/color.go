package compliance

import (
	"image"

	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
)

// ColorClassifier decides whether a cropped region is dominated by an
// allowed uniform color. Illumination is normalized with CLAHE on the
// lightness channel before the hue/saturation/value bands are applied.
type ColorClassifier struct {
	cfg   *config.Config
	clahe gocv.CLAHE
}

func NewColorClassifier(cfg *config.Config) *ColorClassifier {
	return &ColorClassifier{
		cfg:   cfg,
		clahe: gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8)),
	}
}

func (c *ColorClassifier) Close() error {
	return c.clahe.Close()
}

// CompliantRatio returns the fraction of region pixels falling inside one of
// the allowed color bands. The second return is false when the region is
// empty ("no data"), which callers must never treat as a violation.
func (c *ColorClassifier) CompliantRatio(region gocv.Mat) (float64, bool) {
	if region.Empty() || region.Rows() == 0 || region.Cols() == 0 {
		return 0, false
	}

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(region, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	equalized := gocv.NewMat()
	defer equalized.Close()
	c.clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.CvtColor(merged, &normalized, gocv.ColorLabToBGR)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(normalized, &hsv, gocv.ColorBGRToHSV)

	return c.ratioInBands(hsv), true
}

// IsCompliant applies the configured ratio threshold, inclusive.
func (c *ColorClassifier) IsCompliant(ratio float64) bool {
	return ratio >= c.cfg.CompliantRatioMin
}

// ratioInBands computes the fraction of HSV pixels inside either allowed band.
func (c *ColorClassifier) ratioInBands(hsv gocv.Mat) float64 {
	total := hsv.Rows() * hsv.Cols()
	if total == 0 {
		return 0
	}

	maskA := bandMask(hsv, c.cfg.YellowBand)
	defer maskA.Close()
	maskB := bandMask(hsv, c.cfg.BlackBand)
	defer maskB.Close()

	compliant := gocv.NewMat()
	defer compliant.Close()
	gocv.BitwiseOr(maskA, maskB, &compliant)

	return float64(gocv.CountNonZero(compliant)) / float64(total)
}

func bandMask(hsv gocv.Mat, band config.HSVRange) gocv.Mat {
	mask := gocv.NewMat()
	lower := gocv.NewScalar(band.LowH, band.LowS, band.LowV, 0)
	upper := gocv.NewScalar(band.HighH, band.HighS, band.HighV, 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)
	return mask
}

// TorsoCrop is the middle vertical band of a person box, clipped to the
// frame bounds. Head and legs are excluded so they do not skew the color
// signal. The result may be empty.
func TorsoCrop(person, bounds image.Rectangle, topFrac, bottomFrac float64) image.Rectangle {
	h := person.Dy()
	crop := image.Rect(
		person.Min.X,
		person.Min.Y+int(float64(h)*topFrac),
		person.Max.X,
		person.Min.Y+int(float64(h)*bottomFrac),
	)
	return crop.Intersect(bounds)
}
