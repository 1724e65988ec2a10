package main

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"go-attendance-server/config"
	"go-attendance-server/internal/gallery"
	"go-attendance-server/internal/imageio"
	"go-attendance-server/internal/vision"
)

var buildOpts struct {
	inputDir   string
	department string
	batchYear  int
	outDir     string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a gallery file from an enrollment image directory",
	Long: `Build walks an enrollment directory laid out as one subdirectory per
student register number, each holding face photos of that student. Every
photo is run through the detector and embedder; the per-student vectors are
averaged into one gallery entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild()
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOpts.inputDir, "input", "i", "", "Enrollment directory (one subdir per register number)")
	buildCmd.Flags().StringVarP(&buildOpts.department, "dept", "d", "", "Department code, e.g. CSE")
	buildCmd.Flags().IntVarP(&buildOpts.batchYear, "year", "y", 0, "Batch year, e.g. 2023")
	buildCmd.Flags().StringVarP(&buildOpts.outDir, "out", "o", "", "Output directory (default: gallery dir from config)")

	buildCmd.MarkFlagRequired("input")
	buildCmd.MarkFlagRequired("dept")
	buildCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(buildCmd)
}

func runBuild() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	outDir := buildOpts.outDir
	if outDir == "" {
		outDir = cfg.Gallery.Dir
	}

	bundle := vision.NewBundle(vision.Options{
		LibraryPath:    cfg.ONNX.LibraryPath,
		DetectorPath:   cfg.Models.DetectorPath,
		EmbedderPath:   cfg.Models.EmbedderPath,
		UseGPU:         cfg.ONNX.UseGPU,
		IntraOpThreads: cfg.ONNX.IntraOpThreads,
		InterOpThreads: cfg.ONNX.InterOpThreads,
		DetectionScore: float32(cfg.Pipeline.DetectionScore),
		DetectionIoU:   float32(cfg.Pipeline.DetectionIoU),
		EmbedInputSize: cfg.Pipeline.EmbedInputSize,
	})
	defer bundle.Close()
	if err := bundle.EnsureInitialized(); err != nil {
		return fmt.Errorf("cannot build without models: %w", err)
	}

	dirs, err := os.ReadDir(buildOpts.inputDir)
	if err != nil {
		return fmt.Errorf("failed to read enrollment directory: %w", err)
	}
	var students []string
	for _, d := range dirs {
		if d.IsDir() {
			students = append(students, d.Name())
		}
	}
	sort.Strings(students)
	if len(students) == 0 {
		return fmt.Errorf("no student subdirectories in %s", buildOpts.inputDir)
	}

	fmt.Fprintf(os.Stderr, "📦 Enrolling %d students from %s\n", len(students), buildOpts.inputDir)
	bar := progressbar.NewOptions(len(students),
		progressbar.OptionSetDescription("🧑 Embedding"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	out := make(map[string][]float32, len(students))
	var skipped []string
	for _, regno := range students {
		vec, n, err := enrollStudent(bundle, cfg, filepath.Join(buildOpts.inputDir, regno))
		bar.Add(1)
		if err != nil {
			return fmt.Errorf("student %s: %w", regno, err)
		}
		if n == 0 {
			skipped = append(skipped, regno)
			continue
		}
		out[regno] = vec
	}
	fmt.Fprintln(os.Stderr)

	if len(out) == 0 {
		return fmt.Errorf("no usable face found for any student")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, gallery.FileName(buildOpts.department, buildOpts.batchYear))
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write gallery: %w", err)
	}

	fmt.Printf("✅ Wrote %s (%d identities)\n", outPath, len(out))
	for _, regno := range skipped {
		fmt.Printf("⚠️  %s: no usable face in any enrollment photo, not enrolled\n", regno)
	}
	return nil
}

// enrollStudent averages the embeddings of every usable enrollment photo in
// dir. Photos where no face clears the size filter are skipped; n reports how
// many photos contributed.
func enrollStudent(bundle *vision.Bundle, cfg *config.Config, dir string) ([]float32, int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read enrollment photos: %w", err)
	}

	var sum []float64
	n := 0
	for _, f := range files {
		if f.IsDir() || !isImageFile(f.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, 0, err
		}
		img, err := imageio.Decode(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  %s: undecodable, skipped (%v)\n", f.Name(), err)
			continue
		}

		crop, ok := largestFaceCrop(bundle.Detector(), img, cfg)
		if !ok {
			continue
		}
		vec, err := bundle.Embedder().Embed(crop)
		if err != nil {
			return nil, 0, fmt.Errorf("embed %s: %w", f.Name(), err)
		}

		if sum == nil {
			sum = make([]float64, len(vec))
		} else if len(sum) != len(vec) {
			return nil, 0, fmt.Errorf("embedding dimension changed mid-build")
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
		n++
	}

	if n == 0 {
		return nil, 0, nil
	}
	floats.Scale(1/float64(n), sum)
	mean := make([]float32, len(sum))
	for i, v := range sum {
		mean[i] = float32(v)
	}
	return mean, n, nil
}

// largestFaceCrop detects faces and crops the biggest one, padded the same
// way the matching pipeline pads, so enrollment and recognition embed
// comparable crops.
func largestFaceCrop(det vision.Detector, img image.Image, cfg *config.Config) (image.Image, bool) {
	boxes, err := det.Detect(img)
	if err != nil || len(boxes) == 0 {
		return nil, false
	}

	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Width()*b.Height() > best.Width()*best.Height() {
			best = b
		}
	}

	imgW := float64(img.Bounds().Dx())
	imgH := float64(img.Bounds().Dy())
	padW := best.Width() * cfg.Pipeline.BoxPaddingRatio
	padH := best.Height() * cfg.Pipeline.BoxPaddingRatio
	x1 := math.Max(0, best.X1-padW)
	y1 := math.Max(0, best.Y1-padH)
	x2 := math.Min(imgW-1, best.X2+padW)
	y2 := math.Min(imgH-1, best.Y2+padH)

	if x2-x1 < float64(cfg.Pipeline.MinFaceSize) || y2-y1 < float64(cfg.Pipeline.MinFaceSize) {
		return nil, false
	}
	return imaging.Crop(img, image.Rect(int(x1), int(y1), int(x2)+1, int(y2)+1)), true
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}
