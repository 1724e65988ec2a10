package service

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/google/uuid"

	"go-attendance-server/internal/executor"
	"go-attendance-server/internal/imageio"
	"go-attendance-server/internal/match"
	"go-attendance-server/internal/roster"
	"go-attendance-server/internal/session"
	"go-attendance-server/internal/store"
)

// ProcessRequest is one attendance run over a batch of classroom photos.
// SessionID is optional; clients that want live progress generate their own
// id, open the WebSocket, then submit with it.
type ProcessRequest struct {
	SessionID  string
	Images     [][]byte
	Department string
	BatchYear  int
	Sections   []string
	Threshold  float64
}

// ImageResult is the per-image slice of a process response.
type ImageResult struct {
	Index        int    `json:"index"`
	FaceCount    int    `json:"face_count"`
	MatchedCount int    `json:"matched_count"`
	AnnotatedB64 string `json:"annotated_image,omitempty"`
	ProcessMS    int64  `json:"process_ms"`
	Error        string `json:"error,omitempty"`
}

// ProcessResult is the full outcome of one attendance run.
type ProcessResult struct {
	SessionID    string               `json:"session_id"`
	Degraded     bool                 `json:"degraded,omitempty"`
	Predictions  []session.Prediction `json:"predictions"`
	Images       []ImageResult        `json:"images"`
	PresentCount int                  `json:"present_count"`
	AbsentCount  int                  `json:"absent_count"`
	TotalFaces   int                  `json:"total_faces"`
	ElapsedMS    int64                `json:"elapsed_ms"`
}

// ProcessImages runs the whole pipeline for one session: roster, gallery,
// per-image detection and matching on the pool, aggregation, persistence.
// Model unavailability and per-image failures degrade to empty detections;
// only roster, gallery, or session-creation failures abort the run.
func (s *Service) ProcessImages(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	start := time.Now()

	if len(req.Images) == 0 {
		return nil, fmt.Errorf("process images: empty batch")
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.Pipeline.MatchThreshold
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	students, err := s.roster.StudentsBySections(ctx, req.Department, req.BatchYear, req.Sections)
	if err != nil {
		return nil, fmt.Errorf("roster lookup for %s %d: %w", req.Department, req.BatchYear, err)
	}

	g, err := s.galleries.Get(req.Department, req.BatchYear)
	if err != nil {
		return nil, fmt.Errorf("gallery for %s %d: %w", req.Department, req.BatchYear, err)
	}
	// Only roster members are matchable; everyone else in the gallery file
	// is invisible to this session.
	trimmed := g.Intersect(roster.RegisterNumbers(students))
	if trimmed.Len() != g.Len() {
		log.Printf("⚠️  Session %s: %d gallery identities outside the roster ignored",
			sessionID, g.Len()-trimmed.Len())
	}
	g = trimmed

	if err := s.store.Sessions().Create(&store.Session{
		ID:         sessionID,
		Department: req.Department,
		BatchYear:  req.BatchYear,
		Sections:   req.Sections,
		Threshold:  threshold,
		ImageCount: len(req.Images),
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	finder, ferr := s.newFinder()
	degraded := ferr != nil
	if degraded {
		log.Printf("⚠️  Session %s running degraded: %v", sessionID, ferr)
	}

	results := make([]ImageResult, len(req.Images))
	perImage := make([][]match.DetectedFace, len(req.Images))
	annotated := make([][]byte, len(req.Images))

	type pending struct {
		index int
		req   *executor.Request
	}
	var awaiting []pending

	for i, data := range req.Images {
		results[i] = ImageResult{Index: i}
		if degraded {
			continue
		}

		img, err := imageio.Decode(data)
		if err != nil {
			results[i].Error = err.Error()
			log.Printf("⚠️  Session %s image %d: %v", sessionID, i, err)
			continue
		}

		work := func() ([]match.DetectedFace, *image.NRGBA, error) {
			faces, err := finder.MatchFaces(img, g, threshold)
			if err != nil {
				return nil, nil, err
			}
			if s.cfg.Output.DisableAnnotation {
				return faces, nil, nil
			}
			return faces, match.Annotate(img, faces), nil
		}

		preq := executor.NewRequest(sessionID, i, work)
		if err := s.pool.Submit(preq); err != nil {
			results[i].Error = err.Error()
			log.Printf("⚠️  Session %s image %d rejected: %v", sessionID, i, err)
			continue
		}
		awaiting = append(awaiting, pending{index: i, req: preq})
	}

	timeout := time.Duration(s.cfg.Pipeline.ImageTimeoutSecs) * time.Second
	for _, p := range awaiting {
		select {
		case res := <-p.req.ResultChan:
			if res.Err != nil {
				results[p.index].Error = res.Err.Error()
				log.Printf("⚠️  Session %s image %d failed: %v", sessionID, p.index, res.Err)
			} else {
				perImage[p.index] = res.Faces
				results[p.index].FaceCount = len(res.Faces)
				results[p.index].MatchedCount = matchedCount(res.Faces)
				if res.Annotated != nil {
					jpeg, err := imageio.EncodeJPEG(res.Annotated, s.cfg.Output.JPEGQuality)
					if err != nil {
						log.Printf("⚠️  Session %s image %d: annotate encode: %v", sessionID, p.index, err)
					} else {
						annotated[p.index] = jpeg
						results[p.index].AnnotatedB64 = imageio.EncodeBase64(jpeg)
					}
				}
			}
			results[p.index].ProcessMS = res.ProcessTime.Milliseconds()
			if s.cfg.Logging.LogMatchTimes {
				log.Printf("⏱️  Session %s image %d: %d faces in %s (queued %s)",
					sessionID, p.index, results[p.index].FaceCount, res.ProcessTime, res.QueueTime)
			}
		case <-time.After(timeout):
			results[p.index].Error = fmt.Sprintf("timed out after %s", timeout)
			log.Printf("⚠️  Session %s image %d timed out after %s", sessionID, p.index, timeout)
		case <-ctx.Done():
			results[p.index].Error = ctx.Err().Error()
		}

		s.progress.publish(ProgressEvent{
			SessionID:    sessionID,
			Stage:        "image",
			ImageIndex:   p.index,
			FaceCount:    results[p.index].FaceCount,
			MatchedCount: results[p.index].MatchedCount,
			Error:        results[p.index].Error,
		})
	}

	for i := range results {
		if err := s.store.Images().Record(&store.ProcessedImage{
			SessionID:    sessionID,
			ImageIndex:   i,
			FaceCount:    results[i].FaceCount,
			MatchedCount: results[i].MatchedCount,
			ProcessMS:    results[i].ProcessMS,
			Error:        results[i].Error,
			Annotated:    annotated[i],
		}); err != nil {
			log.Printf("❌ Session %s: persist image %d: %v", sessionID, i, err)
		}
	}

	preds, dropped := session.Aggregate(perImage, students)
	if len(dropped) > 0 {
		log.Printf("⚠️  Session %s: dropped %d matched identities not on the roster: %v",
			sessionID, len(dropped), dropped)
	}

	if err := s.store.Predictions().ReplaceForSession(sessionID, storePredictions(preds)); err != nil {
		log.Printf("❌ Session %s: persist predictions: %v", sessionID, err)
	}
	if err := s.store.Sessions().UpdateStatus(sessionID, store.StatusCompleted); err != nil {
		log.Printf("❌ Session %s: mark completed: %v", sessionID, err)
	}

	s.progress.publish(ProgressEvent{SessionID: sessionID, Stage: "completed", Done: true})
	s.progress.finish(sessionID)

	present, absent := session.Summary(preds)
	total := 0
	for i := range results {
		total += results[i].FaceCount
	}

	log.Printf("✅ Session %s: %d images, %d faces, %d/%d present (%.0fms)",
		sessionID, len(req.Images), total, present, present+absent,
		float64(time.Since(start).Microseconds())/1000)

	return &ProcessResult{
		SessionID:    sessionID,
		Degraded:     degraded,
		Predictions:  preds,
		Images:       results,
		PresentCount: present,
		AbsentCount:  absent,
		TotalFaces:   total,
		ElapsedMS:    time.Since(start).Milliseconds(),
	}, nil
}

func matchedCount(faces []match.DetectedFace) int {
	n := 0
	for _, f := range faces {
		if f.Known() {
			n++
		}
	}
	return n
}

// detectionMethodCamera tags verdicts produced by the classroom-photo
// pipeline, as opposed to a manual entry path.
const detectionMethodCamera = "camera"

func storePredictions(preds []session.Prediction) []store.Prediction {
	out := make([]store.Prediction, len(preds))
	for i, p := range preds {
		out[i] = store.Prediction{
			RegisterNumber:  p.RegisterNumber,
			Name:            p.Name,
			Present:         p.Present,
			Confidence:      p.Confidence,
			Section:         p.Section,
			Department:      p.Department,
			DetectionMethod: detectionMethodCamera,
		}
	}
	return out
}
