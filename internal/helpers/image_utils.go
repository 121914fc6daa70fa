package helpers

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/models"
)

var (
	colorPerson    = color.RGBA{G: 255, A: 255}
	colorPhone     = color.RGBA{R: 255, A: 255}
	colorViolation = color.RGBA{R: 255, A: 255}
	colorOK        = color.RGBA{G: 255, A: 255}
	colorGlove     = color.RGBA{R: 255, G: 255, A: 255}
	colorDimText   = color.RGBA{R: 201, G: 209, B: 217, A: 255}
	colorWarnText  = color.RGBA{R: 100, G: 150, B: 255, A: 255}
)

// backgroundScalar is the dark slate fill used on placeholder frames (BGR).
var backgroundScalar = gocv.NewScalar(34, 27, 22, 0)

// StrictlyContains reports whether inner lies strictly inside outer: all four
// edges of inner inside outer's edges, touching not included.
func StrictlyContains(outer, inner image.Rectangle) bool {
	return inner.Min.X > outer.Min.X && inner.Max.X < outer.Max.X &&
		inner.Min.Y > outer.Min.Y && inner.Max.Y < outer.Max.Y
}

// EncodeJPEG encodes a Mat as JPEG and returns an owned copy of the bytes.
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// NewPlaceholder renders a placeholder frame with the given text lines.
// Caller owns the returned Mat.
func NewPlaceholder(width, height int, lines ...string) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(backgroundScalar, height, width, gocv.MatTypeCV8UC3)

	y := height/2 - (len(lines)-1)*25
	for i, line := range lines {
		textColor := colorDimText
		if i > 0 {
			textColor = colorWarnText
		}
		gocv.PutText(&mat, line, image.Pt(width/8, y), gocv.FontHersheySimplex, 0.7, textColor, 2)
		y += 50
	}
	return mat
}

// NewErrorPlaceholder renders the permanent error frame shown when the
// monitor failed to initialize.
func NewErrorPlaceholder(width, height int, message string) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(backgroundScalar, height, width, gocv.MatTypeCV8UC3)
	gocv.PutText(&mat, "Error: "+message, image.Pt(50, height/2), gocv.FontHersheySimplex, 0.7, color.RGBA{R: 255, A: 255}, 2)
	return mat
}

// DrawOverlay draws the detection overlay onto frame in place. The overlay is
// a viewing artifact only; rule evaluation never reads it back.
func DrawOverlay(frame *gocv.Mat, persons []models.TrackedPerson, phones, apronCap, gloves []models.Detection, violationLabels map[string]bool) {
	for _, p := range persons {
		gocv.Rectangle(frame, p.Box, colorPerson, 2)
		gocv.PutText(frame, fmt.Sprintf("Person %d", p.TrackID),
			image.Pt(p.Box.Min.X, p.Box.Min.Y-10), gocv.FontHersheySimplex, 0.5, colorPerson, 2)
	}

	for _, d := range phones {
		gocv.Rectangle(frame, d.Box, colorPhone, 2)
		gocv.PutText(frame, fmt.Sprintf("Phone %.2f", d.Score),
			image.Pt(d.Box.Min.X, d.Box.Min.Y-10), gocv.FontHersheySimplex, 0.5, colorPhone, 2)
	}

	for _, d := range apronCap {
		boxColor := colorOK
		if violationLabels[d.Label] {
			boxColor = colorViolation
		}
		gocv.Rectangle(frame, d.Box, boxColor, 2)
		gocv.PutText(frame, fmt.Sprintf("%s %.2f", d.Label, d.Score),
			image.Pt(d.Box.Min.X, d.Box.Min.Y-10), gocv.FontHersheySimplex, 0.5, boxColor, 2)
	}

	for _, d := range gloves {
		gocv.Rectangle(frame, d.Box, colorGlove, 2)
		gocv.PutText(frame, fmt.Sprintf("%s %.2f", d.Label, d.Score),
			image.Pt(d.Box.Min.X, d.Box.Min.Y-10), gocv.FontHersheySimplex, 0.5, colorGlove, 2)
	}
}
