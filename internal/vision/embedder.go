package vision

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// Embedder turns a face crop into a feature vector.
type Embedder interface {
	Embed(crop image.Image) ([]float32, error)
	InputSize() int
}

// The embedding model takes a single grayscale face as [1, 1, size, size]
// named "input", normalized to [-1, 1], and produces one vector at "output".
type faceEmbedder struct {
	session   *ort.DynamicAdvancedSession
	inputSize int
}

func newFaceEmbedder(modelPath string, so *ort.SessionOptions, inputSize int) (*faceEmbedder, error) {
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"output"},
		so,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder session: %w", err)
	}

	return &faceEmbedder{
		session:   session,
		inputSize: inputSize,
	}, nil
}

func (e *faceEmbedder) InputSize() int { return e.inputSize }

func (e *faceEmbedder) Close() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// embedInput preprocesses a crop into the model's input layout: grayscale,
// resized to size x size, normalized to [-1, 1].
func embedInput(crop image.Image, size int) []float32 {
	gray := imaging.Grayscale(crop)
	resized := imaging.Resize(gray, size, size, imaging.Lanczos)

	input := make([]float32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// Grayscale NRGBA has R == G == B
			v := float32(resized.NRGBAAt(x, y).R) / 255.0
			input[y*size+x] = (v - 0.5) / 0.5
		}
	}
	return input
}

// Embed preprocesses the crop (grayscale, resize, normalize) and runs the
// model, returning a copy of the output vector.
func (e *faceEmbedder) Embed(crop image.Image) ([]float32, error) {
	bounds := crop.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("empty face crop")
	}

	input := embedInput(crop, e.inputSize)

	inputTensor, err := ort.NewTensor([]int64{1, 1, int64(e.inputSize), int64(e.inputSize)}, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("embedder inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected embedder output type %T", outputs[0])
	}

	data := out.GetData()
	vec := make([]float32, len(data))
	copy(vec, data)
	return vec, nil
}
