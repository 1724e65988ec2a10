package vision

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Bundle owns the detector and embedder sessions as a unit. Both load
// together on first use; a failed load leaves the bundle degraded and the
// next call retries from scratch.
type Bundle struct {
	opts Options

	mu       sync.Mutex
	ready    atomic.Bool
	detector *faceDetector
	embedder *faceEmbedder
	device   Device
	lastErr  error
	loadedAt time.Time
	attempts int
}

// Status is a point-in-time snapshot of the bundle for health reporting.
type Status struct {
	Ready     bool      `json:"ready"`
	Device    string    `json:"device"`
	Attempts  int       `json:"load_attempts"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// NewBundle prepares a bundle without loading anything. Sessions are created
// lazily by EnsureInitialized.
func NewBundle(opts Options) *Bundle {
	return &Bundle{opts: opts}
}

// EnsureInitialized loads both model sessions if they are not loaded yet.
// Safe for concurrent use; exactly one caller performs the load while the
// rest wait on it. On failure the error is returned and retained, and the
// next call attempts the load again.
func (b *Bundle) EnsureInitialized() error {
	if b.ready.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready.Load() {
		return nil
	}

	b.attempts++
	if err := b.load(); err != nil {
		b.lastErr = err
		log.Printf("❌ Model load attempt %d failed: %v", b.attempts, err)
		return err
	}

	b.lastErr = nil
	b.loadedAt = time.Now()
	b.ready.Store(true)
	log.Printf("✅ Models loaded on %s (attempt %d)", b.device, b.attempts)
	return nil
}

func (b *Bundle) load() error {
	if err := initRuntime(b.opts.LibraryPath); err != nil {
		return err
	}

	if _, err := os.Stat(b.opts.DetectorPath); err != nil {
		return fmt.Errorf("detector model not found at %s: %w", b.opts.DetectorPath, err)
	}
	if _, err := os.Stat(b.opts.EmbedderPath); err != nil {
		return fmt.Errorf("embedder model not found at %s: %w", b.opts.EmbedderPath, err)
	}

	so, device, err := newSessionOptions(b.opts)
	if err != nil {
		return err
	}
	defer so.Destroy()

	detector, err := newFaceDetector(b.opts.DetectorPath, so, b.opts.DetectionScore, b.opts.DetectionIoU)
	if err != nil {
		return err
	}

	embedder, err := newFaceEmbedder(b.opts.EmbedderPath, so, b.opts.EmbedInputSize)
	if err != nil {
		detector.Close()
		return err
	}

	b.detector = detector
	b.embedder = embedder
	b.device = device
	return nil
}

// Ready reports whether both sessions are loaded.
func (b *Bundle) Ready() bool { return b.ready.Load() }

// Degraded reports whether the last load attempt failed, with the error.
func (b *Bundle) Degraded() (bool, error) {
	if b.ready.Load() {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr != nil, b.lastErr
}

// Device reports which execution provider the sessions run on.
func (b *Bundle) Device() Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device
}

// Detector returns the loaded face detector, or nil before a successful load.
func (b *Bundle) Detector() Detector {
	if !b.ready.Load() {
		return nil
	}
	return b.detector
}

// Embedder returns the loaded face embedder, or nil before a successful load.
func (b *Bundle) Embedder() Embedder {
	if !b.ready.Load() {
		return nil
	}
	return b.embedder
}

// Snapshot returns the current status for health reporting.
func (b *Bundle) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Ready:    b.ready.Load(),
		Device:   string(b.device),
		Attempts: b.attempts,
		LoadedAt: b.loadedAt,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}

// Close destroys both sessions. The bundle can be reloaded afterwards by
// another EnsureInitialized call.
func (b *Bundle) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ready.Store(false)
	if b.detector != nil {
		b.detector.Close()
		b.detector = nil
	}
	if b.embedder != nil {
		b.embedder.Close()
		b.embedder = nil
	}
}
