package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the attendance server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	ONNX     ONNXConfig     `yaml:"onnx"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Roster   RosterConfig   `yaml:"roster"`
	Store    StoreConfig    `yaml:"store"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	MaxUploadSizeMB int    `yaml:"max_upload_size_mb"`
	WorkerCount     int    `yaml:"worker_count"`
	QueueSize       int    `yaml:"queue_size"`
}

type ModelsConfig struct {
	Root         string `yaml:"root"`
	DetectorPath string `yaml:"detector_path"`
	EmbedderPath string `yaml:"embedder_path"`
}

type ONNXConfig struct {
	LibraryPath    string `yaml:"library_path"`
	UseGPU         bool   `yaml:"use_gpu"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	InterOpThreads int    `yaml:"inter_op_threads"`
}

type GalleryConfig struct {
	Dir string `yaml:"dir"`
}

type PipelineConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold"`    // minimum cosine similarity for a match
	DetectionScore   float64 `yaml:"detection_score"`    // detector confidence cutoff
	DetectionIoU     float64 `yaml:"detection_iou"`      // NMS overlap cutoff
	BoxPaddingRatio  float64 `yaml:"box_padding_ratio"`  // box expansion before cropping
	MinFaceSize      int     `yaml:"min_face_size"`      // px, both dimensions
	EmbedInputSize   int     `yaml:"embed_input_size"`   // px, square embedder input
	ImageTimeoutSecs int     `yaml:"image_timeout_secs"` // per-image wait budget
}

type RosterConfig struct {
	Driver   string `yaml:"driver"` // "postgres" or "inmem"
	DSN      string `yaml:"dsn"`
	SeedPath string `yaml:"seed_path"` // JSON roster for the inmem driver
}

type StoreConfig struct {
	Path string `yaml:"path"` // sqlite database file
}

type OutputConfig struct {
	JPEGQuality       int  `yaml:"jpeg_quality"`       // 1-100
	DisableAnnotation bool `yaml:"disable_annotation"` // skip drawing and returning annotated JPEGs
}

type LoggingConfig struct {
	Level           string `yaml:"level"`
	LogMatchTimes   bool   `yaml:"log_match_times"`
	LogCacheStats   bool   `yaml:"log_cache_stats"`
	BufferedLogging bool   `yaml:"buffered_logging"`
	SampleRate      int    `yaml:"sample_rate"`
	AutoFlush       bool   `yaml:"auto_flush"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.MaxUploadSizeMB == 0 {
		cfg.Server.MaxUploadSizeMB = 50
	}
	if cfg.Server.WorkerCount == 0 {
		cfg.Server.WorkerCount = 8
	}
	if cfg.Server.QueueSize == 0 {
		cfg.Server.QueueSize = 32
	}
	if cfg.Models.DetectorPath == "" {
		cfg.Models.DetectorPath = "face_detector.onnx"
	}
	if cfg.Models.EmbedderPath == "" {
		cfg.Models.EmbedderPath = "face_embedder.onnx"
	}
	if cfg.ONNX.IntraOpThreads == 0 {
		cfg.ONNX.IntraOpThreads = 4
	}
	if cfg.ONNX.InterOpThreads == 0 {
		cfg.ONNX.InterOpThreads = 2
	}
	if cfg.Gallery.Dir == "" {
		cfg.Gallery.Dir = "gallery"
	}
	if cfg.Pipeline.MatchThreshold == 0 {
		cfg.Pipeline.MatchThreshold = 0.45
	}
	if cfg.Pipeline.DetectionScore == 0 {
		cfg.Pipeline.DetectionScore = 0.5
	}
	if cfg.Pipeline.DetectionIoU == 0 {
		cfg.Pipeline.DetectionIoU = 0.45
	}
	if cfg.Pipeline.BoxPaddingRatio == 0 {
		cfg.Pipeline.BoxPaddingRatio = 0.2
	}
	if cfg.Pipeline.MinFaceSize == 0 {
		cfg.Pipeline.MinFaceSize = 32
	}
	if cfg.Pipeline.EmbedInputSize == 0 {
		cfg.Pipeline.EmbedInputSize = 128
	}
	if cfg.Pipeline.ImageTimeoutSecs == 0 {
		cfg.Pipeline.ImageTimeoutSecs = 10
	}
	if cfg.Roster.Driver == "" {
		cfg.Roster.Driver = "inmem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "attendance.db"
	}
	if cfg.Output.JPEGQuality == 0 {
		cfg.Output.JPEGQuality = 85
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.SampleRate == 0 {
		cfg.Logging.SampleRate = 1
	}

	// Resolve checkpoint paths relative to models root if needed
	if cfg.Models.Root != "" {
		if !filepath.IsAbs(cfg.Models.DetectorPath) {
			cfg.Models.DetectorPath = filepath.Join(cfg.Models.Root, cfg.Models.DetectorPath)
		}
		if !filepath.IsAbs(cfg.Models.EmbedderPath) {
			cfg.Models.EmbedderPath = filepath.Join(cfg.Models.Root, cfg.Models.EmbedderPath)
		}
	}

	return &cfg, nil
}
