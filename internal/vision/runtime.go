// Package vision owns the ONNX Runtime lifecycle for the face detection and
// face embedding models. A Bundle is created once per process and shared by
// all request handlers; checkpoints load lazily on first use.
package vision

import (
	"fmt"
	"log"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Device identifies the compute device selected for inference.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// Options configures the runtime, checkpoint locations, and pipeline
// parameters shared by both models.
type Options struct {
	LibraryPath    string
	DetectorPath   string
	EmbedderPath   string
	UseGPU         bool
	IntraOpThreads int
	InterOpThreads int

	DetectionScore float32 // detector confidence cutoff
	DetectionIoU   float32 // NMS overlap cutoff
	EmbedInputSize int     // square embedder input, px
}

var (
	ortMu    sync.Mutex
	ortReady bool
)

// initRuntime prepares the process-wide ONNX Runtime environment. Safe to
// call repeatedly; a failed attempt may be retried on a later call.
func initRuntime(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortReady {
		return nil
	}
	if libraryPath != "" {
		// Must happen before InitializeEnvironment
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	ortReady = true
	return nil
}

// newSessionOptions builds session options, probing for CUDA when requested.
// Returns the device that will actually be used.
func newSessionOptions(opts Options) (*ort.SessionOptions, Device, error) {
	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, DeviceCPU, fmt.Errorf("failed to create session options: %w", err)
	}
	if opts.IntraOpThreads > 0 {
		if err := so.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			so.Destroy()
			return nil, DeviceCPU, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}
	if opts.InterOpThreads > 0 {
		if err := so.SetInterOpNumThreads(opts.InterOpThreads); err != nil {
			so.Destroy()
			return nil, DeviceCPU, fmt.Errorf("failed to set inter-op threads: %w", err)
		}
	}

	device := DeviceCPU
	if opts.UseGPU {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			if uerr := cudaOptions.Update(map[string]string{"device_id": "0"}); uerr == nil {
				if aerr := so.AppendExecutionProviderCUDA(cudaOptions); aerr == nil {
					device = DeviceGPU
				} else {
					log.Printf("⚠️  Could not enable CUDA: %v (running on CPU)", aerr)
				}
			}
			cudaOptions.Destroy()
		} else {
			log.Printf("⚠️  CUDA not available: %v (running on CPU)", err)
		}
	}

	return so, device, nil
}
