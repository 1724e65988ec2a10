package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// InMemoryStore serves a roster from memory, seeded from a JSON file or
// directly from records. Used for development and tests when no roster
// database is available.
type InMemoryStore struct {
	mu       sync.RWMutex
	students map[string]Student
}

// NewInMemoryStore builds a store holding the given students.
func NewInMemoryStore(students ...Student) *InMemoryStore {
	s := &InMemoryStore{students: make(map[string]Student, len(students))}
	for _, st := range students {
		s.students[st.RegisterNumber] = st
	}
	return s
}

// LoadInMemoryStore reads a JSON array of students from path.
func LoadInMemoryStore(path string) (*InMemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster seed: %w", err)
	}

	var students []Student
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("failed to parse roster seed %s: %w", path, err)
	}
	return NewInMemoryStore(students...), nil
}

// Add inserts or replaces one student record.
func (s *InMemoryStore) Add(st Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.RegisterNumber] = st
}

// Len reports how many students are loaded.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students)
}

func (s *InMemoryStore) StudentsBySections(ctx context.Context, department string, batchYear int, sections []string) ([]Student, error) {
	wanted := make(map[string]bool, len(sections))
	for _, sec := range sections {
		wanted[sec] = true
	}

	s.mu.RLock()
	var out []Student
	for _, st := range s.students {
		if st.Department != department || st.BatchYear != batchYear {
			continue
		}
		if len(wanted) > 0 && !wanted[st.Section] {
			continue
		}
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RegisterNumber < out[j].RegisterNumber })
	return out, nil
}

func (s *InMemoryStore) StudentByRegisterNumber(ctx context.Context, registerNumber string) (Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[registerNumber]
	if !ok {
		return Student{}, ErrNotFound
	}
	return st, nil
}
