package config

import (
	"os"
	"strings"
)

// Pipeline defaults.
const (
	DefaultTag             = "GENRE_AUTO"
	DefaultThreshold       = 0.1
	DefaultSampleRate      = 16000
	DefaultResampleQuality = 4
	DefaultInputNode       = "serving_default_model_Placeholder"
	DefaultOutputNode      = "PartitionedCall"
)

// allScoresPipelines are the mood and context pipelines whose result records
// list every class mean by default.
var allScoresPipelines = map[string]bool{
	"approachability": true,
	"engagement":      true,
	"danceability":    true,
	"mood_aggressive": true,
	"mood_happy":      true,
	"mood_party":      true,
	"mood_relaxed":    true,
	"mood_sad":        true,
}

// Config holds all autotag configuration.
type Config struct {
	Path      string
	Pipelines []Pipeline
	Runtime   RuntimeConfig
	Logging   LoggingConfig
	Results   ResultsConfig
}

// Pipeline describes one label-extraction task. It is never mutated after
// loading.
type Pipeline struct {
	Name                string
	DataFolder          string
	EmbeddingModelPath  string
	PredictionModelPath string
	MetadataPath        string
	ResultFilePath      string
	TagsToWrite         []string
	Threshold           float64
	MinFrequency        int
	MinScore            float64
	MaxLabels           *int // nil = unlimited
	SampleRate          int
	ResampleQuality     int
	InputNode           string
	OutputNode          string
	EmbeddingInputNode  string // empty = first model input
	EmbeddingOutputNode string // empty = first model output
	ReportAllScores     bool
}

// IsRegression reports whether the pipeline produces continuous values rather
// than class probabilities.
func (p Pipeline) IsRegression() bool {
	return strings.Contains(strings.ToLower(p.Name), "arousal_valence")
}

// RuntimeConfig holds paths to external runtimes.
type RuntimeConfig struct {
	ONNXLibrary string
	FFmpeg      string
	FFprobe     string
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string
	Format string // "auto", "text", "json"
}

// ResultsConfig controls result persistence beyond the per-pipeline text files.
type ResultsConfig struct {
	Database     string // optional SQLite path
	KeepPrevious bool
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	c.Logging.Level = getenv("AUTOTAG_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenv("AUTOTAG_LOG_FORMAT", c.Logging.Format)
	c.Runtime.ONNXLibrary = getenv("AUTOTAG_ONNX_LIBRARY", c.Runtime.ONNXLibrary)
	c.Runtime.FFmpeg = getenv("AUTOTAG_FFMPEG", c.Runtime.FFmpeg)
	c.Runtime.FFprobe = getenv("AUTOTAG_FFPROBE", c.Runtime.FFprobe)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
