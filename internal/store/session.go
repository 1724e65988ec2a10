package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionStatus tracks where a session is in its lifecycle.
type SessionStatus string

const (
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
	StatusSubmitted  SessionStatus = "submitted"
)

// Session is one attendance-marking run over a batch of classroom images.
type Session struct {
	ID          string        `json:"id"`
	Department  string        `json:"department"`
	BatchYear   int           `json:"batch_year"`
	Sections    []string      `json:"sections"`
	Threshold   float64       `json:"threshold"`
	ImageCount  int           `json:"image_count"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// SessionRepository handles session persistence.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. Status defaults to processing.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.Status == "" {
		sess.Status = StatusProcessing
	}
	sess.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, department, batch_year, sections, threshold, image_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Department, sess.BatchYear, joinSections(sess.Sections),
		sess.Threshold, sess.ImageCount, sess.Status, sess.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("session %s: %w", sess.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its identifier.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	var (
		sess        Session
		sections    string
		completedAt sql.NullTime
	)
	err := r.db.QueryRow(
		`SELECT id, department, batch_year, sections, threshold, image_count, status, created_at, completed_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Department, &sess.BatchYear, &sections,
		&sess.Threshold, &sess.ImageCount, &sess.Status, &sess.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Sections = splitSections(sections)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	return &sess, nil
}

// UpdateStatus moves a session to a new status. Terminal statuses stamp
// completed_at.
func (r *SessionRepository) UpdateStatus(id string, status SessionStatus) error {
	var (
		res sql.Result
		err error
	)
	if status == StatusCompleted || status == StatusFailed {
		res, err = r.db.Exec(
			`UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?`,
			status, time.Now(), id,
		)
	} else {
		res, err = r.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
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

// List returns the most recent sessions, newest first.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, department, batch_year, sections, threshold, image_count, status, created_at, completed_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var (
			sess        Session
			sections    string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&sess.ID, &sess.Department, &sess.BatchYear, &sections,
			&sess.Threshold, &sess.ImageCount, &sess.Status, &sess.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.Sections = splitSections(sections)
		if completedAt.Valid {
			sess.CompletedAt = &completedAt.Time
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func joinSections(sections []string) string {
	return strings.Join(sections, ",")
}

func splitSections(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
