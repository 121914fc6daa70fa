package compliance

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
)

// hsvMat builds a single-color HSV image for band tests.
func hsvMat(h, s, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(h, s, v, 0), 20, 20, gocv.MatTypeCV8UC3)
}

func TestRatioInBands(t *testing.T) {
	cfg := config.Load()
	c := NewColorClassifier(cfg)
	defer c.Close()

	tests := []struct {
		name    string
		h, s, v float64
		want    float64
	}{
		{"inside yellow band", 26, 200, 150, 1.0},
		{"inside black band", 90, 30, 20, 1.0},
		{"outside both bands", 100, 200, 200, 0.0},
		{"yellow hue but washed out", 26, 20, 150, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hsv := hsvMat(tt.h, tt.s, tt.v)
			defer hsv.Close()

			got := c.ratioInBands(hsv)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ratioInBands(%v,%v,%v) = %v, want %v", tt.h, tt.s, tt.v, got, tt.want)
			}
		})
	}
}

func TestCompliantRatioEmptyRegionIsNoData(t *testing.T) {
	cfg := config.Load()
	c := NewColorClassifier(cfg)
	defer c.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if _, hasData := c.CompliantRatio(empty); hasData {
		t.Error("empty region reported as having data")
	}
}

func TestCompliantRatioRejectsNonUniformColor(t *testing.T) {
	cfg := config.Load()
	c := NewColorClassifier(cfg)
	defer c.Close()

	// Saturated red: the hue stays far from the yellow band and the
	// normalized lightness stays above the black band ceiling.
	red := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 40, 40, gocv.MatTypeCV8UC3)
	defer red.Close()

	ratio, hasData := c.CompliantRatio(red)
	if !hasData {
		t.Fatal("non-empty region reported as no data")
	}
	if c.IsCompliant(ratio) {
		t.Errorf("red region classified compliant, ratio = %v", ratio)
	}
}

func TestIsCompliantThresholdIsInclusive(t *testing.T) {
	cfg := config.Load()
	cfg.CompliantRatioMin = 0.30
	c := NewColorClassifier(cfg)
	defer c.Close()

	if c.IsCompliant(0.29) {
		t.Error("ratio below threshold classified compliant")
	}
	if !c.IsCompliant(0.30) {
		t.Error("ratio at threshold classified non-compliant; threshold is inclusive")
	}
}

func TestTorsoCrop(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)
	person := image.Rect(100, 100, 200, 300)

	crop := TorsoCrop(person, bounds, 0.1, 0.7)
	want := image.Rect(100, 120, 200, 240)
	if crop != want {
		t.Errorf("TorsoCrop = %v, want %v", crop, want)
	}

	// A person box hanging off the frame clips to the bounds.
	offscreen := image.Rect(600, -50, 700, 150)
	clipped := TorsoCrop(offscreen, bounds, 0.1, 0.7)
	if !clipped.In(bounds) {
		t.Errorf("clipped crop %v escapes frame bounds", clipped)
	}

	// A box fully outside the frame yields an empty crop.
	outside := TorsoCrop(image.Rect(700, 0, 800, 200), bounds, 0.1, 0.7)
	if !outside.Empty() {
		t.Errorf("crop outside bounds = %v, want empty", outside)
	}
}
