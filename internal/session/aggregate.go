// Package session merges per-image face detections into one attendance
// verdict per roster student.
package session

import (
	"sort"

	"go-attendance-server/internal/match"
	"go-attendance-server/internal/roster"
)

// Prediction is the per-student output record handed to persistence.
type Prediction struct {
	RegisterNumber string  `json:"register_number"`
	Name           string  `json:"name"`
	Present        bool    `json:"present"`
	Confidence     float64 `json:"confidence"`
	Section        string  `json:"section"`
	Department     string  `json:"department"`
}

// Aggregate reduces all images in a session to one record per roster
// student: detected students carry their single highest score across
// images, everyone else is absent at confidence 0. The image order cannot
// affect the result. Identities detected but missing from the roster are
// returned separately for the caller to log. Output is sorted by register
// number.
func Aggregate(perImage [][]match.DetectedFace, students []roster.Student) ([]Prediction, []string) {
	best := make(map[string]float64)
	for _, faces := range perImage {
		for _, f := range faces {
			if !f.Known() {
				continue
			}
			if s, ok := best[f.AssignedTo]; !ok || f.Score > s {
				best[f.AssignedTo] = f.Score
			}
		}
	}

	out := make([]Prediction, 0, len(students))
	inRoster := make(map[string]bool, len(students))
	for _, st := range students {
		if inRoster[st.RegisterNumber] {
			continue
		}
		inRoster[st.RegisterNumber] = true

		p := Prediction{
			RegisterNumber: st.RegisterNumber,
			Name:           st.Name,
			Section:        st.Section,
			Department:     st.Department,
		}
		if score, ok := best[st.RegisterNumber]; ok {
			p.Present = true
			p.Confidence = score
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisterNumber < out[j].RegisterNumber })

	var dropped []string
	for id := range best {
		if !inRoster[id] {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)

	return out, dropped
}

// Summary counts present and absent students in a prediction list.
func Summary(preds []Prediction) (present, absent int) {
	for _, p := range preds {
		if p.Present {
			present++
		} else {
			absent++
		}
	}
	return present, absent
}
