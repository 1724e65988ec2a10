// Package match turns detected faces into identity assignments against a
// gallery of enrolled embeddings.
package match

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"go-attendance-server/internal/gallery"
	"go-attendance-server/internal/vision"
)

// Candidate is one gallery identity scoring above the match threshold.
type Candidate struct {
	RegisterNumber string
	Similarity     float64
}

// DetectedFace is one face found in a single image, with its candidate
// identities and the final assignment. Scoped to one matching call.
type DetectedFace struct {
	Box        vision.Box
	Embedding  []float32
	Candidates []Candidate // descending by similarity
	AssignedTo string      // empty when unknown
	Score      float64
}

// Known reports whether the face was assigned an identity.
func (f DetectedFace) Known() bool { return f.AssignedTo != "" }

// Options tunes the pre-embedding face filtering.
type Options struct {
	PadRatio    float64 // box expansion per side, fraction of box w/h
	MinFaceSize int     // discard padded boxes smaller than this in either dimension
}

// Matcher runs the detect, embed, and assign pipeline for one image at a
// time. Safe for concurrent use when the detector and embedder are.
type Matcher struct {
	detector vision.Detector
	embedder vision.Embedder
	opts     Options
}

// NewMatcher builds a matcher over the given model handles.
func NewMatcher(detector vision.Detector, embedder vision.Embedder, opts Options) *Matcher {
	return &Matcher{detector: detector, embedder: embedder, opts: opts}
}

// MatchFaces detects faces in img and assigns each at most one gallery
// identity. Identities are claimed greedily: faces ordered by their own best
// similarity, each taking its best still-unclaimed candidate above
// threshold. Faces left without a claim stay unknown. The returned slice is
// in detection order.
func (m *Matcher) MatchFaces(img image.Image, g gallery.Gallery, threshold float64) ([]DetectedFace, error) {
	bounds := img.Bounds()
	imgW := float64(bounds.Dx())
	imgH := float64(bounds.Dy())

	boxes, err := m.detector.Detect(img)
	if err != nil {
		return nil, err
	}

	var faces []DetectedFace
	for _, raw := range boxes {
		box := padBox(raw, m.opts.PadRatio, imgW, imgH)
		if box.Width() < float64(m.opts.MinFaceSize) || box.Height() < float64(m.opts.MinFaceSize) {
			continue
		}

		face := DetectedFace{Box: box}
		crop := imaging.Crop(img, cropRect(box))

		vec, err := m.embedder.Embed(crop)
		if err != nil {
			// A face that cannot be embedded stays unknown but keeps its
			// box for annotation
			faces = append(faces, face)
			continue
		}
		face.Embedding = vec
		face.Candidates = rankCandidates(vec, g, threshold)
		faces = append(faces, face)
	}

	assignIdentities(faces)
	return faces, nil
}

// rankCandidates scores vec against every gallery entry and keeps those
// strictly above threshold, descending by similarity. Ties keep gallery
// order (register number ascending).
func rankCandidates(vec []float32, g gallery.Gallery, threshold float64) []Candidate {
	var candidates []Candidate
	for _, e := range g.Entries {
		s := CosineSimilarity(vec, e.Vector)
		if s > threshold {
			candidates = append(candidates, Candidate{RegisterNumber: e.RegisterNumber, Similarity: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates
}

// assignIdentities runs the greedy pass: faces in descending order of their
// best candidate score, each claiming its first unclaimed candidate. At most
// one face per identity per image.
func assignIdentities(faces []DetectedFace) {
	order := make([]int, 0, len(faces))
	for i := range faces {
		if len(faces[i].Candidates) > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return faces[order[a]].Candidates[0].Similarity > faces[order[b]].Candidates[0].Similarity
	})

	claimed := make(map[string]bool)
	for _, i := range order {
		for _, c := range faces[i].Candidates {
			if claimed[c.RegisterNumber] {
				continue
			}
			claimed[c.RegisterNumber] = true
			faces[i].AssignedTo = c.RegisterNumber
			faces[i].Score = c.Similarity
			break
		}
	}
}

// padBox expands a detection by ratio of its size on every side and clamps
// to image bounds.
func padBox(b vision.Box, ratio float64, imgW, imgH float64) vision.Box {
	padW := b.Width() * ratio
	padH := b.Height() * ratio

	return vision.Box{
		X1:    math.Max(0, b.X1-padW),
		Y1:    math.Max(0, b.Y1-padH),
		X2:    math.Min(imgW-1, b.X2+padW),
		Y2:    math.Min(imgH-1, b.Y2+padH),
		Score: b.Score,
	}
}

func cropRect(b vision.Box) image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2)+1, int(b.Y2)+1)
}
