package store

import (
	"testing"
)

func TestSubmissionRepository_UpsertAndList(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")
	repo := s.Submissions()

	subs := []Submission{
		{RegisterNumber: "CSE2022002", Present: true, WasEdited: true, SubmittedBy: "staff-42", Period: "2026-08-21/3", Notes: "seat swap with CSE2022001"},
		{RegisterNumber: "CSE2022001", Present: true, WasEdited: false, SubmittedBy: "staff-42", Period: "2026-08-21/3"},
	}
	if err := repo.UpsertForSession("sess-001", subs); err != nil {
		t.Fatalf("failed to upsert submissions: %v", err)
	}

	stored, err := repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d submissions, want 2", len(stored))
	}
	if stored[0].RegisterNumber != "CSE2022001" || stored[1].RegisterNumber != "CSE2022002" {
		t.Errorf("submissions not ordered by register number: got [%s %s]",
			stored[0].RegisterNumber, stored[1].RegisterNumber)
	}
	if stored[0].WasEdited {
		t.Error("CSE2022001 should not be flagged as edited")
	}
	if !stored[1].WasEdited {
		t.Error("CSE2022002 should be flagged as edited")
	}
	if stored[0].SubmittedBy != "staff-42" {
		t.Errorf("SubmittedBy mismatch: got %q, want %q", stored[0].SubmittedBy, "staff-42")
	}
	if stored[1].Notes != "seat swap with CSE2022001" {
		t.Errorf("Notes mismatch: got %q", stored[1].Notes)
	}
	if stored[0].Notes != "" {
		t.Errorf("CSE2022001 should have no notes, got %q", stored[0].Notes)
	}
	if stored[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on stored submissions")
	}
}

func TestSubmissionRepository_ResubmitReplacesDecision(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")
	repo := s.Submissions()

	if err := repo.UpsertForSession("sess-001", []Submission{
		{RegisterNumber: "CSE2022001", Present: false, WasEdited: false},
	}); err != nil {
		t.Fatalf("failed to upsert submissions: %v", err)
	}

	if err := repo.UpsertForSession("sess-001", []Submission{
		{RegisterNumber: "CSE2022001", Present: true, WasEdited: true, SubmittedBy: "staff-7", Notes: "came in late"},
	}); err != nil {
		t.Fatalf("failed to resubmit: %v", err)
	}

	stored, err := repo.ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("resubmission should replace, not append: got %d rows", len(stored))
	}
	if !stored[0].Present || !stored[0].WasEdited {
		t.Errorf("resubmitted decision not stored: present %v edited %v, want true true",
			stored[0].Present, stored[0].WasEdited)
	}
	if stored[0].SubmittedBy != "staff-7" {
		t.Errorf("SubmittedBy mismatch: got %q, want %q", stored[0].SubmittedBy, "staff-7")
	}
	if stored[0].Notes != "came in late" {
		t.Errorf("resubmission should replace notes: got %q", stored[0].Notes)
	}
}

func TestSubmissionRepository_ListEmpty(t *testing.T) {
	s := newTestStore(t)
	createTestSession(t, s, "sess-001")

	stored, err := s.Submissions().ListBySession("sess-001")
	if err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("unsubmitted session should have no submissions, got %d", len(stored))
	}
}
