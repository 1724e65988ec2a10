// Package gallery loads and caches per-cohort face embedding galleries.
// A gallery file maps student register numbers to embedding vectors; one
// file exists per (department, batch year) cohort.
package gallery

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go-attendance-server/internal/utils"
)

// Entry is one enrolled identity: a register number and its embedding.
type Entry struct {
	RegisterNumber string
	Vector         []float32
}

// Gallery is an ordered set of enrolled identities, sorted by register
// number. The zero value is an empty gallery.
type Gallery struct {
	Entries []Entry
}

// Len returns the number of enrolled identities.
func (g Gallery) Len() int { return len(g.Entries) }

// Empty reports whether the gallery has no identities.
func (g Gallery) Empty() bool { return len(g.Entries) == 0 }

// Dim returns the embedding dimensionality, 0 for an empty gallery.
func (g Gallery) Dim() int {
	if len(g.Entries) == 0 {
		return 0
	}
	return len(g.Entries[0].Vector)
}

// Intersect returns the identities whose register numbers are in keep,
// preserving order. This is a strict set intersection: an empty keep set
// yields an empty gallery. Vectors are shared, not copied.
func (g Gallery) Intersect(keep map[string]bool) Gallery {
	if len(keep) == 0 {
		return Gallery{}
	}
	var entries []Entry
	for _, e := range g.Entries {
		if keep[e.RegisterNumber] {
			entries = append(entries, e)
		}
	}
	return Gallery{Entries: entries}
}

// tensorObject is the packed vector form written by gallery build tooling:
// base64 little-endian float32 data with an explicit dtype and shape.
type tensorObject struct {
	Dtype string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

// Load reads a gallery file. Each value is either a plain JSON number array
// or a tensor object. All vectors must share one dimensionality. Missing
// files surface as the underlying os error for the caller to interpret.
func Load(path string) (Gallery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Gallery{}, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Gallery{}, fmt.Errorf("failed to parse gallery %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(raw))
	for regno, msg := range raw {
		regno = strings.TrimSpace(regno)
		if regno == "" {
			return Gallery{}, fmt.Errorf("gallery %s has an empty register number key", path)
		}

		vec, err := decodeVector(msg)
		if err != nil {
			return Gallery{}, fmt.Errorf("gallery %s entry %q: %w", path, regno, err)
		}
		entries = append(entries, Entry{RegisterNumber: regno, Vector: vec})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RegisterNumber < entries[j].RegisterNumber
	})

	for i := 1; i < len(entries); i++ {
		if len(entries[i].Vector) != len(entries[0].Vector) {
			return Gallery{}, fmt.Errorf("gallery %s entry %q has dimension %d, others have %d",
				path, entries[i].RegisterNumber, len(entries[i].Vector), len(entries[0].Vector))
		}
	}

	return Gallery{Entries: entries}, nil
}

func decodeVector(msg json.RawMessage) ([]float32, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty vector value")
	}

	switch trimmed[0] {
	case '[':
		var vec []float32
		if err := json.Unmarshal(trimmed, &vec); err != nil {
			return nil, fmt.Errorf("invalid vector array: %w", err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty vector")
		}
		return vec, nil

	case '{':
		var tensor tensorObject
		if err := json.Unmarshal(trimmed, &tensor); err != nil {
			return nil, fmt.Errorf("invalid tensor object: %w", err)
		}
		if !strings.EqualFold(tensor.Dtype, "float32") {
			return nil, fmt.Errorf("unsupported dtype %q", tensor.Dtype)
		}

		packed, err := base64.StdEncoding.DecodeString(tensor.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
		vec, err := utils.BytesToFloat32(packed)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty vector")
		}

		if len(tensor.Shape) > 0 {
			n := 1
			for _, d := range tensor.Shape {
				n *= d
			}
			if n != len(vec) {
				return nil, fmt.Errorf("shape %v does not match %d values", tensor.Shape, len(vec))
			}
		}
		return vec, nil

	default:
		return nil, fmt.Errorf("vector must be an array or tensor object")
	}
}
