package store

import (
	"errors"
	"testing"
)

func createTestSession(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.Sessions().Create(&Session{ID: id, Department: "CSE", BatchYear: 2022, Threshold: 0.45}); err != nil {
		t.Fatalf("failed to create session %s: %v", id, err)
	}
}

func TestPredictionRepository_ReplaceForSession(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")
	repo := s.Predictions()

	first := []Prediction{
		{RegisterNumber: "CSE2022003", Name: "Charlie", Present: false, Confidence: 0, Section: "A", Department: "CSE", DetectionMethod: "camera"},
		{RegisterNumber: "CSE2022001", Name: "Alice", Present: true, Confidence: 0.91, Section: "A", Department: "CSE", DetectionMethod: "camera"},
	}
	if err := repo.ReplaceForSession("sess-001", first); err != nil {
		t.Fatalf("failed to store predictions: %v", err)
	}

	preds, err := repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list predictions: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].RegisterNumber != "CSE2022001" || preds[1].RegisterNumber != "CSE2022003" {
		t.Errorf("predictions not ordered by register number: got [%s %s]",
			preds[0].RegisterNumber, preds[1].RegisterNumber)
	}
	if !preds[0].Present || preds[0].Confidence != 0.91 {
		t.Errorf("Alice record = present %v conf %f, want present true conf 0.91",
			preds[0].Present, preds[0].Confidence)
	}
	if preds[0].DetectionMethod != "camera" {
		t.Errorf("DetectionMethod = %q, want %q", preds[0].DetectionMethod, "camera")
	}
	if preds[0].PredictedAt.IsZero() {
		t.Error("PredictedAt should be set on stored predictions")
	}

	// A re-run replaces the old verdicts wholesale.
	second := []Prediction{
		{RegisterNumber: "CSE2022001", Name: "Alice", Present: false, Confidence: 0, Section: "A", Department: "CSE"},
	}
	if err := repo.ReplaceForSession("sess-001", second); err != nil {
		t.Fatalf("failed to replace predictions: %v", err)
	}

	preds, err = repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list predictions: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("after replace got %d predictions, want 1", len(preds))
	}
	if preds[0].Present {
		t.Error("replaced record should have present = false")
	}
}

func TestPredictionRepository_SetPresent(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")
	repo := s.Predictions()

	preds := []Prediction{
		{RegisterNumber: "CSE2022001", Name: "Alice", Present: false, Confidence: 0.2, Section: "A", Department: "CSE"},
	}
	if err := repo.ReplaceForSession("sess-001", preds); err != nil {
		t.Fatalf("failed to store predictions: %v", err)
	}

	if err := repo.SetPresent("sess-001", "CSE2022001", true); err != nil {
		t.Fatalf("failed to override presence: %v", err)
	}

	stored, err := repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list predictions: %v", err)
	}
	if !stored[0].Present {
		t.Error("override should flip present to true")
	}
	if stored[0].Confidence != 0.2 {
		t.Errorf("override must not touch confidence: got %f, want 0.2", stored[0].Confidence)
	}
}

func TestPredictionRepository_SetPresent_NotFound(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")

	err := s.Predictions().SetPresent("sess-001", "GHOST", true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPresent(unknown student) = %v, want ErrNotFound", err)
	}
}

func TestPredictionRepository_CascadeDelete(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")
	repo := s.Predictions()

	preds := []Prediction{
		{RegisterNumber: "CSE2022001", Name: "Alice", Present: true, Confidence: 0.9, Section: "A", Department: "CSE"},
	}
	if err := repo.ReplaceForSession("sess-001", preds); err != nil {
		t.Fatalf("failed to store predictions: %v", err)
	}

	if _, err := s.DB().Exec(`DELETE FROM sessions WHERE id = ?`, "sess-001"); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	stored, err := repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list predictions: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("predictions should cascade with their session, got %d rows", len(stored))
	}
}
