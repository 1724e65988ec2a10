// Package service wires the vision bundle, gallery cache, worker pool,
// roster, and attendance store behind one object the HTTP edge calls into.
// Handlers stay thin: every pipeline decision lives here.
package service

import (
	"errors"
	"fmt"
	"image"
	"log"

	"go-attendance-server/config"
	"go-attendance-server/internal/executor"
	"go-attendance-server/internal/gallery"
	"go-attendance-server/internal/match"
	"go-attendance-server/internal/roster"
	"go-attendance-server/internal/store"
	"go-attendance-server/internal/vision"
)

// ErrDegraded is returned when the model bundle cannot be loaded. Processing
// continues with empty detections instead of failing the request.
var ErrDegraded = errors.New("models unavailable, running degraded")

// FaceFinder runs detection and identity matching for one image.
type FaceFinder interface {
	MatchFaces(img image.Image, g gallery.Gallery, threshold float64) ([]match.DetectedFace, error)
}

// Deps collects everything the service needs. All fields are required.
type Deps struct {
	Config    *config.Config
	Bundle    *vision.Bundle
	Galleries *gallery.Cache
	Pool      *executor.Pool
	Roster    roster.Store
	Store     *store.Store
}

// Service orchestrates attendance processing end to end.
type Service struct {
	cfg       *config.Config
	bundle    *vision.Bundle
	galleries *gallery.Cache
	pool      *executor.Pool
	roster    roster.Store
	store     *store.Store
	progress  *progressBroker

	// newFinder builds the per-request face pipeline. Swappable so tests can
	// run without ONNX checkpoints.
	newFinder func() (FaceFinder, error)
}

// New builds a Service from its dependencies.
func New(deps Deps) *Service {
	s := &Service{
		cfg:       deps.Config,
		bundle:    deps.Bundle,
		galleries: deps.Galleries,
		pool:      deps.Pool,
		roster:    deps.Roster,
		store:     deps.Store,
		progress:  newProgressBroker(),
	}
	s.newFinder = s.defaultFinder
	return s
}

func (s *Service) defaultFinder() (FaceFinder, error) {
	if err := s.bundle.EnsureInitialized(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegraded, err)
	}
	return match.NewMatcher(s.bundle.Detector(), s.bundle.Embedder(), match.Options{
		PadRatio:    s.cfg.Pipeline.BoxPaddingRatio,
		MinFaceSize: s.cfg.Pipeline.MinFaceSize,
	}), nil
}

// SystemStatus is the full observability snapshot for the status endpoint.
type SystemStatus struct {
	Models       vision.Status      `json:"models"`
	DetectorPath string             `json:"detector_path"`
	EmbedderPath string             `json:"embedder_path"`
	GalleryCache gallery.CacheStats `json:"gallery_cache"`
	WorkerPool   executor.Stats     `json:"worker_pool"`
}

// Status reports bundle, cache, and pool state.
func (s *Service) Status() SystemStatus {
	return SystemStatus{
		Models:       s.bundle.Snapshot(),
		DetectorPath: s.cfg.Models.DetectorPath,
		EmbedderPath: s.cfg.Models.EmbedderPath,
		GalleryCache: s.galleries.Stats(),
		WorkerPool:   s.pool.Snapshot(),
	}
}

// Degraded reports whether the pipeline is running without models, and why.
func (s *Service) Degraded() (bool, string) {
	degraded, err := s.bundle.Degraded()
	if err != nil {
		return degraded, err.Error()
	}
	return degraded, ""
}

// InvalidateGallery drops one cached gallery so the next request reloads it.
func (s *Service) InvalidateGallery(department string, batchYear int) bool {
	dropped := s.galleries.Invalidate(department, batchYear)
	if dropped {
		log.Printf("🔄 Gallery cache invalidated for %s", gallery.Key(department, batchYear))
	}
	return dropped
}

// InvalidateAllGalleries drops every cached gallery.
func (s *Service) InvalidateAllGalleries() int {
	n := s.galleries.InvalidateAll()
	log.Printf("🔄 Gallery cache cleared (%d entries)", n)
	return n
}

// WatchSession subscribes to a session's processing events.
func (s *Service) WatchSession(sessionID string) (<-chan ProgressEvent, func()) {
	return s.progress.Subscribe(sessionID)
}
