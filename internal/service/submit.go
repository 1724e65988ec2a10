package service

import (
	"context"
	"fmt"
	"log"

	"go-attendance-server/internal/store"
)

// Decision is one staff-confirmed presence verdict.
type Decision struct {
	RegisterNumber string `json:"register_number"`
	Present        bool   `json:"present"`
}

// SubmitRequest finalizes a processed session's attendance.
type SubmitRequest struct {
	SessionID   string
	Decisions   []Decision
	SubmittedBy string
	Period      string
	Notes       string
}

// SubmitResult echoes what was stored.
type SubmitResult struct {
	SessionID   string              `json:"session_id"`
	Submissions []*store.Submission `json:"submissions"`
	EditedCount int                 `json:"edited_count"`
}

// SubmitAttendance records final decisions against a session, flagging each
// one that disagrees with the stored prediction. Decisions for students the
// session never predicted are rejected.
func (s *Service) SubmitAttendance(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.Decisions) == 0 {
		return nil, fmt.Errorf("submit attendance: no decisions")
	}

	if _, err := s.store.Sessions().GetByID(req.SessionID); err != nil {
		return nil, fmt.Errorf("session %s: %w", req.SessionID, err)
	}

	preds, err := s.store.Predictions().ListBySession(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("predictions for session %s: %w", req.SessionID, err)
	}
	predicted := make(map[string]bool, len(preds))
	for _, p := range preds {
		predicted[p.RegisterNumber] = p.Present
	}

	subs := make([]store.Submission, 0, len(req.Decisions))
	edited := 0
	for _, d := range req.Decisions {
		was, ok := predicted[d.RegisterNumber]
		if !ok {
			return nil, fmt.Errorf("no prediction for %s in session %s: %w",
				d.RegisterNumber, req.SessionID, store.ErrNotFound)
		}
		wasEdited := was != d.Present
		if wasEdited {
			edited++
		}
		subs = append(subs, store.Submission{
			RegisterNumber: d.RegisterNumber,
			Present:        d.Present,
			WasEdited:      wasEdited,
			SubmittedBy:    req.SubmittedBy,
			Period:         req.Period,
			Notes:          req.Notes,
		})
	}

	if err := s.store.Submissions().UpsertForSession(req.SessionID, subs); err != nil {
		return nil, fmt.Errorf("store submissions for session %s: %w", req.SessionID, err)
	}
	if err := s.store.Sessions().UpdateStatus(req.SessionID, store.StatusSubmitted); err != nil {
		return nil, fmt.Errorf("mark session %s submitted: %w", req.SessionID, err)
	}

	stored, err := s.store.Submissions().ListBySession(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list submissions for session %s: %w", req.SessionID, err)
	}

	log.Printf("✅ Session %s submitted: %d decisions (%d edited)", req.SessionID, len(subs), edited)
	return &SubmitResult{
		SessionID:   req.SessionID,
		Submissions: stored,
		EditedCount: edited,
	}, nil
}

// SessionData is everything stored about one session.
type SessionData struct {
	Session     *store.Session          `json:"session"`
	Predictions []*store.Prediction     `json:"predictions"`
	Submissions []*store.Submission     `json:"submissions"`
	Images      []*store.ProcessedImage `json:"images"`
}

// GetSessionData loads a session with its predictions, submissions, and
// per-image records.
func (s *Service) GetSessionData(ctx context.Context, sessionID string) (*SessionData, error) {
	sess, err := s.store.Sessions().GetByID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	preds, err := s.store.Predictions().ListBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("predictions for session %s: %w", sessionID, err)
	}
	subs, err := s.store.Submissions().ListBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("submissions for session %s: %w", sessionID, err)
	}
	images, err := s.store.Images().ListBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("images for session %s: %w", sessionID, err)
	}

	return &SessionData{
		Session:     sess,
		Predictions: preds,
		Submissions: subs,
		Images:      images,
	}, nil
}

// AnnotatedImage returns the stored annotated JPEG for one image slot.
func (s *Service) AnnotatedImage(ctx context.Context, sessionID string, imageIndex int) ([]byte, error) {
	data, err := s.store.Images().GetAnnotated(sessionID, imageIndex)
	if err != nil {
		return nil, fmt.Errorf("annotated image %d for session %s: %w", imageIndex, sessionID, err)
	}
	return data, nil
}
