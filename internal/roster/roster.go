// Package roster reads the authoritative student records the pipeline
// reconciles detections against. The records are owned by the academic
// records system; this package only queries them.
package roster

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a register number has no student record.
var ErrNotFound = errors.New("roster: student not found")

// Student is one roster record.
type Student struct {
	RegisterNumber string `db:"register_number" json:"register_number"`
	Name           string `db:"name" json:"name"`
	Department     string `db:"department" json:"department"`
	BatchYear      int    `db:"batch_year" json:"batch_year"`
	Section        string `db:"section" json:"section"`
}

// Store is a read-only roster lookup.
type Store interface {
	// StudentsBySections lists a cohort's students restricted to the given
	// sections; an empty section list means the whole cohort. Results are
	// sorted by register number.
	StudentsBySections(ctx context.Context, department string, batchYear int, sections []string) ([]Student, error)

	// StudentByRegisterNumber resolves a single student, ErrNotFound when
	// the register number is unknown.
	StudentByRegisterNumber(ctx context.Context, registerNumber string) (Student, error)
}

// RegisterNumbers collects the identifier set of a student list, the shape
// gallery filtering consumes.
func RegisterNumbers(students []Student) map[string]bool {
	set := make(map[string]bool, len(students))
	for _, s := range students {
		set[s.RegisterNumber] = true
	}
	return set
}
