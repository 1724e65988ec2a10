package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// Box is one face detection in original-image pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float64
	Score          float64
}

// Width returns the box width in pixels.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Detector locates faces in a decoded image.
type Detector interface {
	Detect(img image.Image) ([]Box, error)
}

// The detection model is a YOLO-family face export with a 640x640 input
// named "images" and a single "output0" head laid out as
// [1, 4+1+extra, anchors]: center-x, center-y, width, height, confidence.
// Extra attributes (landmarks) are ignored.
const detectorInputSize = 640

type faceDetector struct {
	session   *ort.DynamicAdvancedSession
	inputSize int
	scoreMin  float32
	iouMax    float64
}

func newFaceDetector(modelPath string, so *ort.SessionOptions, scoreMin, iouMax float32) (*faceDetector, error) {
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		so,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}

	return &faceDetector{
		session:   session,
		inputSize: detectorInputSize,
		scoreMin:  scoreMin,
		iouMax:    float64(iouMax),
	}, nil
}

func (d *faceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
}

// Detect runs the model and returns NMS-filtered face boxes mapped back to
// the original image's pixel coordinates.
func (d *faceDetector) Detect(img image.Image) ([]Box, error) {
	bounds := img.Bounds()
	imgW := float64(bounds.Dx())
	imgH := float64(bounds.Dy())
	if imgW < 1 || imgH < 1 {
		return nil, fmt.Errorf("empty image")
	}

	input, scale, padX, padY := d.letterbox(img)

	inputTensor, err := ort.NewTensor([]int64{1, 3, int64(d.inputSize), int64(d.inputSize)}, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// Output allocated by the runtime; head size varies between exports
	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("detector inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected detector output type %T", outputs[0])
	}

	boxes, err := d.decode(out.GetShape(), out.GetData(), scale, padX, padY, imgW, imgH)
	if err != nil {
		return nil, err
	}

	return nms(boxes, d.iouMax), nil
}

// letterbox resizes the image into the square model input, preserving aspect
// ratio with gray padding, and reports the mapping back to source pixels.
func (d *faceDetector) letterbox(img image.Image) (input []float32, scale, padX, padY float64) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale = math.Min(float64(d.inputSize)/float64(w), float64(d.inputSize)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(d.inputSize, d.inputSize, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	padX = float64(d.inputSize-newW) / 2
	padY = float64(d.inputSize-newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(int(padX), int(padY)))

	plane := d.inputSize * d.inputSize
	input = make([]float32, 3*plane)
	for y := 0; y < d.inputSize; y++ {
		for x := 0; x < d.inputSize; x++ {
			c := canvas.NRGBAAt(x, y)
			idx := y*d.inputSize + x
			input[idx] = float32(c.R) / 255.0
			input[plane+idx] = float32(c.G) / 255.0
			input[2*plane+idx] = float32(c.B) / 255.0
		}
	}
	return input, scale, padX, padY
}

// decode converts the raw output head into boxes in source-image pixels,
// handling both [1, attrs, anchors] and [1, anchors, attrs] layouts.
func (d *faceDetector) decode(shape []int64, data []float32, scale, padX, padY, imgW, imgH float64) ([]Box, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected detector output shape %v", shape)
	}

	attrs, anchors := int(shape[1]), int(shape[2])
	attrsFirst := true
	if attrs > anchors {
		// [1, anchors, attrs] layout
		attrs, anchors = anchors, attrs
		attrsFirst = false
	}
	if attrs < 5 {
		return nil, fmt.Errorf("detector output has %d attributes, need at least 5", attrs)
	}

	at := func(attr, anchor int) float32 {
		if attrsFirst {
			return data[attr*anchors+anchor]
		}
		return data[anchor*attrs+attr]
	}

	var boxes []Box
	for i := 0; i < anchors; i++ {
		score := at(4, i)
		if score < d.scoreMin {
			continue
		}

		cx := float64(at(0, i))
		cy := float64(at(1, i))
		w := float64(at(2, i))
		h := float64(at(3, i))

		// Undo the letterbox transform
		x1 := (cx - w/2 - padX) / scale
		y1 := (cy - h/2 - padY) / scale
		x2 := (cx + w/2 - padX) / scale
		y2 := (cy + h/2 - padY) / scale

		x1 = math.Max(0, math.Min(x1, imgW-1))
		y1 = math.Max(0, math.Min(y1, imgH-1))
		x2 = math.Max(0, math.Min(x2, imgW-1))
		y2 = math.Max(0, math.Min(y2, imgH-1))
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		boxes = append(boxes, Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Score: float64(score)})
	}
	return boxes, nil
}

// nms keeps the highest-scoring boxes, suppressing overlaps above iouMax.
func nms(boxes []Box, iouMax float64) []Box {
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].Score > boxes[j].Score })

	var kept []Box
	for _, cand := range boxes {
		suppressed := false
		for _, k := range kept {
			if iou(cand, k) > iouMax {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}

func iou(a, b Box) float64 {
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)

	iw := math.Max(0, ix2-ix1)
	ih := math.Max(0, iy2-iy1)
	inter := iw * ih
	if inter <= 0 {
		return 0
	}

	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
