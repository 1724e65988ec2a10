package vision

import (
	"path/filepath"
	"sync"
	"testing"
)

func testOptions(dir string) Options {
	return Options{
		LibraryPath:    filepath.Join(dir, "libonnxruntime.so"),
		DetectorPath:   filepath.Join(dir, "face_detector.onnx"),
		EmbedderPath:   filepath.Join(dir, "face_embedder.onnx"),
		DetectionScore: 0.5,
		DetectionIoU:   0.45,
		EmbedInputSize: 128,
	}
}

func TestBundleLoadFailureIsRetryable(t *testing.T) {
	b := NewBundle(testOptions(t.TempDir()))

	if b.Ready() {
		t.Fatal("Ready() = true before any load")
	}
	if d := b.Detector(); d != nil {
		t.Errorf("Detector() = %v before load, want nil", d)
	}
	if e := b.Embedder(); e != nil {
		t.Errorf("Embedder() = %v before load, want nil", e)
	}

	err := b.EnsureInitialized()
	if err == nil {
		t.Fatal("EnsureInitialized() succeeded without a runtime library")
	}

	degraded, lastErr := b.Degraded()
	if !degraded {
		t.Error("Degraded() = false after failed load, want true")
	}
	if lastErr == nil || lastErr.Error() != err.Error() {
		t.Errorf("Degraded() error = %v, want %v", lastErr, err)
	}
	if b.Ready() {
		t.Error("Ready() = true after failed load")
	}

	snap := b.Snapshot()
	if snap.Attempts != 1 {
		t.Errorf("Snapshot().Attempts = %d, want 1", snap.Attempts)
	}
	if snap.Ready {
		t.Error("Snapshot().Ready = true after failed load")
	}
	if snap.LastError == "" {
		t.Error("Snapshot().LastError empty after failed load")
	}

	// The next call retries the load instead of returning a cached failure
	if err := b.EnsureInitialized(); err == nil {
		t.Fatal("retry succeeded without a runtime library")
	}
	if got := b.Snapshot().Attempts; got != 2 {
		t.Errorf("Snapshot().Attempts after retry = %d, want 2", got)
	}

	// Close on a bundle that never loaded is a no-op
	b.Close()
	if b.Ready() {
		t.Error("Ready() = true after Close")
	}
}

func TestBundleConcurrentInitialization(t *testing.T) {
	b := NewBundle(testOptions(t.TempDir()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.EnsureInitialized()
		}()
	}
	wg.Wait()

	// Attempts serialize under the bundle lock, so none are lost
	if got := b.Snapshot().Attempts; got != 4 {
		t.Errorf("Snapshot().Attempts = %d, want 4", got)
	}
}
