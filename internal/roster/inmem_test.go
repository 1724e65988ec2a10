package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func seedStore() *InMemoryStore {
	return NewInMemoryStore(
		Student{RegisterNumber: "URK22CS3000", Name: "Meera", Department: "CSE", BatchYear: 2022, Section: "B"},
		Student{RegisterNumber: "URK22CS1000", Name: "Arun", Department: "CSE", BatchYear: 2022, Section: "A"},
		Student{RegisterNumber: "URK22CS2000", Name: "Divya", Department: "CSE", BatchYear: 2022, Section: "A"},
		Student{RegisterNumber: "URK22EC1000", Name: "Kiran", Department: "ECE", BatchYear: 2022, Section: "A"},
		Student{RegisterNumber: "URK21CS1000", Name: "Ravi", Department: "CSE", BatchYear: 2021, Section: "A"},
	)
}

func TestStudentsBySections(t *testing.T) {
	s := seedStore()
	ctx := context.Background()

	tests := []struct {
		name     string
		sections []string
		want     []string
	}{
		{"Single section", []string{"A"}, []string{"URK22CS1000", "URK22CS2000"}},
		{"Multiple sections", []string{"A", "B"}, []string{"URK22CS1000", "URK22CS2000", "URK22CS3000"}},
		{"Empty means whole cohort", nil, []string{"URK22CS1000", "URK22CS2000", "URK22CS3000"}},
		{"Unknown section", []string{"Z"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.StudentsBySections(ctx, "CSE", 2022, tt.sections)
			if err != nil {
				t.Fatalf("StudentsBySections() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("StudentsBySections() returned %d students, want %d", len(got), len(tt.want))
			}
			for i, regno := range tt.want {
				if got[i].RegisterNumber != regno {
					t.Errorf("student[%d] = %s, want %s (sorted order)", i, got[i].RegisterNumber, regno)
				}
			}
		})
	}
}

func TestStudentsBySectionsScopesCohort(t *testing.T) {
	s := seedStore()

	got, err := s.StudentsBySections(context.Background(), "ECE", 2022, nil)
	if err != nil {
		t.Fatalf("StudentsBySections() error = %v", err)
	}
	if len(got) != 1 || got[0].RegisterNumber != "URK22EC1000" {
		t.Errorf("StudentsBySections(ECE, 2022) = %v, want only URK22EC1000", got)
	}
}

func TestStudentByRegisterNumber(t *testing.T) {
	s := seedStore()
	ctx := context.Background()

	st, err := s.StudentByRegisterNumber(ctx, "URK22CS1000")
	if err != nil {
		t.Fatalf("StudentByRegisterNumber() error = %v", err)
	}
	if st.Name != "Arun" || st.Section != "A" {
		t.Errorf("StudentByRegisterNumber() = %+v, want Arun in section A", st)
	}

	if _, err := s.StudentByRegisterNumber(ctx, "URK99XX9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("StudentByRegisterNumber(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestLoadInMemoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	seed := `[
		{"register_number": "URK22CS1000", "name": "Arun", "department": "CSE", "batch_year": 2022, "section": "A"},
		{"register_number": "URK22CS2000", "name": "Divya", "department": "CSE", "batch_year": 2022, "section": "B"}
	]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadInMemoryStore(path)
	if err != nil {
		t.Fatalf("LoadInMemoryStore() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	st, err := s.StudentByRegisterNumber(context.Background(), "URK22CS2000")
	if err != nil {
		t.Fatalf("StudentByRegisterNumber() error = %v", err)
	}
	if st.Name != "Divya" || st.BatchYear != 2022 {
		t.Errorf("loaded student = %+v", st)
	}

	if _, err := LoadInMemoryStore(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadInMemoryStore(missing) error = nil, want error")
	}
}

func TestRegisterNumbers(t *testing.T) {
	set := RegisterNumbers([]Student{
		{RegisterNumber: "A"},
		{RegisterNumber: "B"},
	})
	if len(set) != 2 || !set["A"] || !set["B"] {
		t.Errorf("RegisterNumbers() = %v, want {A, B}", set)
	}
}
