package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Submission is the final, staff-confirmed decision for one student in a
// session. WasEdited is true when the decision disagrees with what the
// pipeline predicted.
type Submission struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	RegisterNumber string    `json:"register_number"`
	Present        bool      `json:"present"`
	WasEdited      bool      `json:"was_edited"`
	SubmittedBy    string    `json:"submitted_by,omitempty"`
	Period         string    `json:"period,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmissionRepository handles submission persistence.
type SubmissionRepository struct {
	db *sql.DB
}

// Submissions returns the submission repository.
func (s *Store) Submissions() *SubmissionRepository {
	return &SubmissionRepository{db: s.db}
}

// UpsertForSession writes a batch of final decisions in one transaction.
// Resubmitting a student replaces the earlier decision.
func (r *SubmissionRepository) UpsertForSession(sessionID string, subs []Submission) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO submissions (session_id, register_number, present, was_edited, submitted_by, period, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, register_number) DO UPDATE SET
			present = excluded.present,
			was_edited = excluded.was_edited,
			submitted_by = excluded.submitted_by,
			period = excluded.period,
			notes = excluded.notes,
			created_at = excluded.created_at`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, sub := range subs {
		if _, err := stmt.Exec(sessionID, sub.RegisterNumber, sub.Present, sub.WasEdited,
			sub.SubmittedBy, sub.Period, sub.Notes, now); err != nil {
			return fmt.Errorf("failed to upsert submission for %s: %w", sub.RegisterNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submissions: %w", err)
	}
	return nil
}

// ListBySession returns a session's submissions ordered by register number.
func (r *SubmissionRepository) ListBySession(sessionID string) ([]*Submission, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, register_number, present, was_edited, submitted_by, period, notes, created_at
		 FROM submissions WHERE session_id = ? ORDER BY register_number`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.RegisterNumber, &sub.Present,
			&sub.WasEdited, &sub.SubmittedBy, &sub.Period, &sub.Notes, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}
