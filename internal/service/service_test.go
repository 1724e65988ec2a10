package service

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"go-attendance-server/config"
	"go-attendance-server/internal/executor"
	"go-attendance-server/internal/gallery"
	"go-attendance-server/internal/imageio"
	"go-attendance-server/internal/match"
	"go-attendance-server/internal/roster"
	"go-attendance-server/internal/store"
	"go-attendance-server/internal/vision"
)

func testConfig(modelDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{WorkerCount: 2, QueueSize: 8},
		Models: config.ModelsConfig{
			DetectorPath: filepath.Join(modelDir, "face_detector.onnx"),
			EmbedderPath: filepath.Join(modelDir, "face_embedder.onnx"),
		},
		ONNX: config.ONNXConfig{
			LibraryPath:    filepath.Join(modelDir, "libonnxruntime.so"),
			IntraOpThreads: 1,
			InterOpThreads: 1,
		},
		Pipeline: config.PipelineConfig{
			MatchThreshold:   0.45,
			DetectionScore:   0.5,
			DetectionIoU:     0.45,
			BoxPaddingRatio:  0.2,
			MinFaceSize:      32,
			EmbedInputSize:   128,
			ImageTimeoutSecs: 5,
		},
		Output:  config.OutputConfig{JPEGQuality: 80},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

type testEnv struct {
	svc   *Service
	store *store.Store
	dir   string
}

// newTestEnv builds a Service against a temp SQLite store, a temp gallery
// dir, an in-memory roster, and an intentionally unloadable model bundle.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir, err := os.MkdirTemp("", "attendance-service-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})

	cfg := testConfig(dir)

	st, err := store.New(filepath.Join(dir, "attendance.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})

	pool := executor.NewPool(cfg.Server.WorkerCount, cfg.Server.QueueSize)
	t.Cleanup(pool.Stop)

	rosterStore := roster.NewInMemoryStore(
		roster.Student{RegisterNumber: "CSE2022001", Name: "Alice", Department: "CSE", BatchYear: 2022, Section: "A"},
		roster.Student{RegisterNumber: "CSE2022002", Name: "Bob", Department: "CSE", BatchYear: 2022, Section: "A"},
		roster.Student{RegisterNumber: "CSE2022003", Name: "Carol", Department: "CSE", BatchYear: 2022, Section: "B"},
	)

	bundle := vision.NewBundle(vision.Options{
		LibraryPath:  cfg.ONNX.LibraryPath,
		DetectorPath: cfg.Models.DetectorPath,
		EmbedderPath: cfg.Models.EmbedderPath,
	})
	t.Cleanup(bundle.Close)

	svc := New(Deps{
		Config:    cfg,
		Bundle:    bundle,
		Galleries: gallery.NewCache(dir, false),
		Pool:      pool,
		Roster:    rosterStore,
		Store:     st,
	})

	return &testEnv{svc: svc, store: st, dir: dir}
}

// writeTestGallery drops a gallery file for CSE 2022 into the cache dir.
func (e *testEnv) writeTestGallery(t *testing.T, identities map[string][]float32) {
	t.Helper()

	body := "{"
	first := true
	for regno, vec := range identities {
		if !first {
			body += ","
		}
		first = false
		body += fmt.Sprintf("%q: [", regno)
		for i, v := range vec {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf("%g", v)
		}
		body += "]"
	}
	body += "}"

	path := filepath.Join(e.dir, gallery.FileName("CSE", 2022))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write gallery file: %v", err)
	}
}

// testJPEG encodes a small solid image whose width encodes the image index,
// so a fake finder can tell submitted images apart.
func testJPEG(t *testing.T, index int) []byte {
	t.Helper()

	img := imaging.New(40+8*index, 36, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	data, err := imageio.EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return data
}

// fakeFinder serves canned faces keyed by the width trick in testJPEG.
type fakeFinder struct {
	byIndex map[int][]match.DetectedFace
	err     error
}

func (f fakeFinder) MatchFaces(img image.Image, g gallery.Gallery, threshold float64) ([]match.DetectedFace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byIndex[(img.Bounds().Dx()-40)/8], nil
}

func assignedFace(regno string, score float64) match.DetectedFace {
	return match.DetectedFace{
		Box:        vision.Box{X1: 2, Y1: 2, X2: 20, Y2: 20, Score: 0.9},
		AssignedTo: regno,
		Score:      score,
	}
}

func unknownFace() match.DetectedFace {
	return match.DetectedFace{
		Box: vision.Box{X1: 22, Y1: 2, X2: 34, Y2: 20, Score: 0.8},
	}
}

func TestStatusReportsAllSubsystems(t *testing.T) {
	env := newTestEnv(t)

	status := env.svc.Status()
	if status.Models.Ready {
		t.Error("models should not be ready without checkpoints")
	}
	if status.DetectorPath == "" || status.EmbedderPath == "" {
		t.Error("status should carry checkpoint paths")
	}
	if status.WorkerPool.Workers != 2 {
		t.Errorf("WorkerPool.Workers = %d, want 2", status.WorkerPool.Workers)
	}
	if status.GalleryCache.Cached != 0 {
		t.Errorf("GalleryCache.Cached = %d, want 0 before any request", status.GalleryCache.Cached)
	}
}

func TestInvalidateGallery(t *testing.T) {
	env := newTestEnv(t)
	env.writeTestGallery(t, map[string][]float32{"CSE2022001": {1, 0}})

	if env.svc.InvalidateGallery("CSE", 2022) {
		t.Error("invalidating an unloaded gallery should report false")
	}

	if _, err := env.svc.galleries.Get("CSE", 2022); err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}
	if !env.svc.InvalidateGallery("CSE", 2022) {
		t.Error("invalidating a cached gallery should report true")
	}
	if n := env.svc.InvalidateAllGalleries(); n != 0 {
		t.Errorf("InvalidateAllGalleries() = %d, want 0 after invalidate", n)
	}
}
