package detection

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/models"
)

// COCO class indices used by the general model.
const (
	cocoPerson    = 0
	cocoCellPhone = 67
)

// CocoClasses is the label space of the general-purpose model.
var CocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// ApronCapClasses is the label space of the apron/cap model.
var ApronCapClasses = []string{"Apron", "Cap", labelWithoutApron, labelWithoutCap}

// GloveClasses is the label space of the glove model.
var GloveClasses = []string{"no-gloves", labelGloves}

// NetOptions carries the explicit device and decode configuration for one
// model. Device selection is per-net construction rather than process-wide
// state so workers can be built independently.
type NetOptions struct {
	Backend    gocv.NetBackendType
	Target     gocv.NetTargetType
	InputSize  int
	Confidence float32
	NMS        float32
}

// YOLONet is a single-model detector backed by the gocv DNN module.
type YOLONet struct {
	net        gocv.Net
	classNames []string
	opts       NetOptions
}

// NewYOLONet loads a model file and prepares it on the configured device.
func NewYOLONet(modelPath string, classNames []string, opts NetOptions) (*YOLONet, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", modelPath, err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}
	if err := net.SetPreferableBackend(opts.Backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set DNN backend: %w", err)
	}
	if err := net.SetPreferableTarget(opts.Target); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set DNN target: %w", err)
	}

	return &YOLONet{net: net, classNames: classNames, opts: opts}, nil
}

func (y *YOLONet) Close() error {
	return y.net.Close()
}

// Detect runs a full-class pass over the frame.
func (y *YOLONet) Detect(frame gocv.Mat) ([]models.Detection, error) {
	return y.detect(frame, nil)
}

// DetectClasses runs a pass restricted to the given class indices.
func (y *YOLONet) DetectClasses(frame gocv.Mat, classes []int) ([]models.Detection, error) {
	filter := make(map[int]bool, len(classes))
	for _, c := range classes {
		filter[c] = true
	}
	return y.detect(frame, filter)
}

func (y *YOLONet) detect(frame gocv.Mat, classFilter map[int]bool) ([]models.Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	size := y.opts.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	pred, err := normalizeOutput(out, len(y.classNames))
	if err != nil {
		return nil, err
	}
	defer pred.Close()

	xScale := float32(frame.Cols()) / float32(size)
	yScale := float32(frame.Rows()) / float32(size)

	boxes, scores, classIDs := decodeRows(pred, len(y.classNames), y.opts.Confidence, xScale, yScale, classFilter)
	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, y.opts.Confidence, y.opts.NMS)

	detections := make([]models.Detection, 0, len(indices))
	for _, idx := range indices {
		label := ""
		if classIDs[idx] < len(y.classNames) {
			label = y.classNames[classIDs[idx]]
		}
		detections = append(detections, models.Detection{
			Label: label,
			Score: scores[idx],
			Box:   boxes[idx],
		})
	}
	return detections, nil
}

// normalizeOutput reduces a forward-pass tensor to one candidate per row.
// Two export layouts exist: anchor-based rows of
// [x,y,w,h,objectness,class scores] (width classCount+5), and the newer
// channel-major [1, 4+classCount, anchors] tensor with no objectness, which
// must be transposed so candidates run down the rows. normalizeOutput owns
// out and the caller owns the result.
func normalizeOutput(out gocv.Mat, classCount int) (gocv.Mat, error) {
	if out.Dims() > 2 {
		flat := out.Reshape(1, out.Size()[1])
		out.Close()
		out = flat
	}

	if out.Rows() == classCount+4 && out.Cols() != classCount+5 {
		transposed := gocv.NewMat()
		gocv.Transpose(out, &transposed)
		out.Close()
		return transposed, nil
	}

	if cols := out.Cols(); cols != classCount+5 && cols != classCount+4 {
		rows := out.Rows()
		out.Close()
		return gocv.NewMat(), fmt.Errorf("unexpected model output shape %dx%d for %d classes", rows, cols, classCount)
	}
	return out, nil
}

// decodeRows extracts candidate boxes from a normalized prediction matrix.
// Rows of width classCount+5 carry an objectness column that scales the
// class scores; rows of width classCount+4 carry class scores only.
func decodeRows(pred gocv.Mat, classCount int, confidence, xScale, yScale float32, classFilter map[int]bool) ([]image.Rectangle, []float32, []int) {
	hasObjectness := pred.Cols() == classCount+5
	scoreCol := 4
	if hasObjectness {
		scoreCol = 5
	}

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < pred.Rows(); i++ {
		objectness := float32(1)
		if hasObjectness {
			objectness = pred.GetFloatAt(i, 4)
			if objectness < confidence {
				continue
			}
		}

		bestClass := -1
		var bestScore float32
		for c := 0; c < classCount; c++ {
			score := pred.GetFloatAt(i, scoreCol+c) * objectness
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < confidence {
			continue
		}
		if classFilter != nil && !classFilter[bestClass] {
			continue
		}

		cx := pred.GetFloatAt(i, 0) * xScale
		cy := pred.GetFloatAt(i, 1) * yScale
		w := pred.GetFloatAt(i, 2) * xScale
		h := pred.GetFloatAt(i, 3) * yScale

		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	return boxes, scores, classIDs
}

// GeneralNet adapts the general-purpose model to the person+phone contract.
// Person detections get stable track identities from the id assigner; phone
// detections are returned as-is.
type GeneralNet struct {
	net *YOLONet
	ids *idAssigner
}

func NewGeneralNet(net *YOLONet) *GeneralNet {
	return &GeneralNet{net: net, ids: newIDAssigner()}
}

func (g *GeneralNet) TrackPersons(frame gocv.Mat) ([]models.TrackedPerson, error) {
	dets, err := g.net.DetectClasses(frame, []int{cocoPerson})
	if err != nil {
		return nil, err
	}
	return g.ids.assign(dets), nil
}

func (g *GeneralNet) DetectPhones(frame gocv.Mat) ([]models.Detection, error) {
	return g.net.DetectClasses(frame, []int{cocoCellPhone})
}

func (g *GeneralNet) Close() error {
	return g.net.Close()
}
