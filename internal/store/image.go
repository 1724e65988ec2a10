package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ProcessedImage records what happened to one image within a session. The
// annotated JPEG is stored alongside the counts but never listed; fetch it
// with GetAnnotated.
type ProcessedImage struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"session_id"`
	ImageIndex   int    `json:"image_index"`
	FaceCount    int    `json:"face_count"`
	MatchedCount int    `json:"matched_count"`
	ProcessMS    int64  `json:"process_ms"`
	Error        string `json:"error,omitempty"`
	Annotated    []byte `json:"-"`
}

// ImageRepository handles per-image processing records.
type ImageRepository struct {
	db *sql.DB
}

// Images returns the processed-image repository.
func (s *Store) Images() *ImageRepository {
	return &ImageRepository{db: s.db}
}

// Record upserts the outcome for one image slot. Reprocessing an index
// replaces the previous record.
func (r *ImageRepository) Record(img *ProcessedImage) error {
	_, err := r.db.Exec(
		`INSERT INTO processed_images (session_id, image_index, face_count, matched_count, process_ms, error, annotated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, image_index) DO UPDATE SET
			face_count = excluded.face_count,
			matched_count = excluded.matched_count,
			process_ms = excluded.process_ms,
			error = excluded.error,
			annotated = excluded.annotated`,
		img.SessionID, img.ImageIndex, img.FaceCount, img.MatchedCount, img.ProcessMS, img.Error, img.Annotated,
	)
	if err != nil {
		return fmt.Errorf("failed to record image %d: %w", img.ImageIndex, err)
	}
	return nil
}

// ListBySession returns a session's image records ordered by index, without
// the annotated payloads.
func (r *ImageRepository) ListBySession(sessionID string) ([]*ProcessedImage, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, image_index, face_count, matched_count, process_ms, error
		 FROM processed_images WHERE session_id = ? ORDER BY image_index`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed images: %w", err)
	}
	defer rows.Close()

	var images []*ProcessedImage
	for rows.Next() {
		var img ProcessedImage
		if err := rows.Scan(&img.ID, &img.SessionID, &img.ImageIndex, &img.FaceCount,
			&img.MatchedCount, &img.ProcessMS, &img.Error); err != nil {
			return nil, fmt.Errorf("failed to scan processed image: %w", err)
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// GetAnnotated returns the stored annotated JPEG for one image slot.
func (r *ImageRepository) GetAnnotated(sessionID string, imageIndex int) ([]byte, error) {
	var annotated []byte
	err := r.db.QueryRow(
		`SELECT annotated FROM processed_images WHERE session_id = ? AND image_index = ?`,
		sessionID, imageIndex,
	).Scan(&annotated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotated image: %w", err)
	}
	return annotated, nil
}
