package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Prediction is the stored attendance verdict for one student in one
// session. DetectionMethod records how the verdict was produced; PredictedAt
// is set by the store at insert time.
type Prediction struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	RegisterNumber  string    `json:"register_number"`
	Name            string    `json:"name"`
	Present         bool      `json:"present"`
	Confidence      float64   `json:"confidence"`
	Section         string    `json:"section"`
	Department      string    `json:"department"`
	DetectionMethod string    `json:"detection_method"`
	PredictedAt     time.Time `json:"predicted_at"`
}

// PredictionRepository handles prediction persistence.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// ReplaceForSession swaps the full prediction set for a session in one
// transaction. Re-running a session overwrites its previous verdicts.
func (r *PredictionRepository) ReplaceForSession(sessionID string, preds []Prediction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM predictions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear predictions: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO predictions (session_id, register_number, name, present, confidence, section, department, detection_method, predicted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range preds {
		if _, err := stmt.Exec(sessionID, p.RegisterNumber, p.Name, p.Present,
			p.Confidence, p.Section, p.Department, p.DetectionMethod, now); err != nil {
			return fmt.Errorf("failed to insert prediction for %s: %w", p.RegisterNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit predictions: %w", err)
	}
	return nil
}

// GetOne returns the stored prediction for a single student.
func (r *PredictionRepository) GetOne(sessionID, registerNumber string) (*Prediction, error) {
	var p Prediction
	err := r.db.QueryRow(
		`SELECT id, session_id, register_number, name, present, confidence, section, department, detection_method, predicted_at
		 FROM predictions WHERE session_id = ? AND register_number = ?`,
		sessionID, registerNumber,
	).Scan(&p.ID, &p.SessionID, &p.RegisterNumber, &p.Name,
		&p.Present, &p.Confidence, &p.Section, &p.Department,
		&p.DetectionMethod, &p.PredictedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return &p, nil
}

// ListBySession returns a session's predictions ordered by register number.
func (r *PredictionRepository) ListBySession(sessionID string) ([]*Prediction, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, register_number, name, present, confidence, section, department, detection_method, predicted_at
		 FROM predictions WHERE session_id = ? ORDER BY register_number`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var preds []*Prediction
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.ID, &p.SessionID, &p.RegisterNumber, &p.Name,
			&p.Present, &p.Confidence, &p.Section, &p.Department,
			&p.DetectionMethod, &p.PredictedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, &p)
	}
	return preds, rows.Err()
}

// SetPresent overrides the presence flag for one student. Confidence is
// left as the model reported it.
func (r *PredictionRepository) SetPresent(sessionID, registerNumber string, present bool) error {
	res, err := r.db.Exec(
		`UPDATE predictions SET present = ? WHERE session_id = ? AND register_number = ?`,
		present, sessionID, registerNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update prediction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
