package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalPipeline = `{
	"name": "genre",
	"data_folder": "/music",
	"embedding_model_path": "models/effnet.onnx",
	"prediction_model_path": "models/genre.onnx",
	"metadata_path": "models/genre.json",
	"result_file_path": "results/genre.txt"
}`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AUTOTAG_LOG_LEVEL", "AUTOTAG_LOG_FORMAT", "AUTOTAG_ONNX_LIBRARY",
		"AUTOTAG_FFMPEG", "AUTOTAG_FFPROBE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"pipelines": [`+minimalPipeline+`]}`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(cfg.Pipelines))
	}
	p := cfg.Pipelines[0]
	if p.Threshold != DefaultThreshold {
		t.Fatalf("threshold = %v, want %v", p.Threshold, DefaultThreshold)
	}
	if p.MinFrequency != 0 || p.MinScore != 0 || p.MaxLabels != nil {
		t.Fatalf("unexpected filter defaults: %+v", p)
	}
	if p.SampleRate != DefaultSampleRate || p.ResampleQuality != DefaultResampleQuality {
		t.Fatalf("unexpected audio defaults: %d/%d", p.SampleRate, p.ResampleQuality)
	}
	if p.InputNode != DefaultInputNode || p.OutputNode != DefaultOutputNode {
		t.Fatalf("unexpected node defaults: %q/%q", p.InputNode, p.OutputNode)
	}
	if len(p.TagsToWrite) != 1 || p.TagsToWrite[0] != DefaultTag {
		t.Fatalf("tags = %v, want [%s]", p.TagsToWrite, DefaultTag)
	}
	if p.ReportAllScores {
		t.Fatal("genre pipeline should not report all scores by default")
	}
	if p.IsRegression() {
		t.Fatal("genre pipeline is not a regression pipeline")
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{
		"logging": {"level": "debug", "format": "json"},
		"results": {"database": "results.db", "keep_previous": true},
		"pipelines": [{
			"name": "mood_happy",
			"data_folder": "/music",
			"embedding_model_path": "e.onnx",
			"prediction_model_path": "p.onnx",
			"metadata_path": "m.json",
			"result_file_path": "r.txt",
			"tags_to_write": ["TXXX:MOOD_HAPPY"],
			"threshold": 0.3,
			"min_freq": 2,
			"min_score": 0.05,
			"max_labels": 3,
			"sample_rate": 22050,
			"resample_quality": 1,
			"input_node": "in",
			"output_node": "out"
		}]
	}`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Pipelines[0]
	if p.Threshold != 0.3 || p.MinFrequency != 2 || p.MinScore != 0.05 {
		t.Fatalf("unexpected filters: %+v", p)
	}
	if p.MaxLabels == nil || *p.MaxLabels != 3 {
		t.Fatalf("max_labels = %v, want 3", p.MaxLabels)
	}
	if p.SampleRate != 22050 || p.ResampleQuality != 1 {
		t.Fatalf("unexpected audio settings: %d/%d", p.SampleRate, p.ResampleQuality)
	}
	if !p.ReportAllScores {
		t.Fatal("mood_happy should report all scores by default")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Results.Database != "results.db" || !cfg.Results.KeepPrevious {
		t.Fatalf("unexpected results: %+v", cfg.Results)
	}
}

func TestLoad_SkipsDisabledAndNonObjects(t *testing.T) {
	clearEnv(t)
	disabled := strings.Replace(minimalPipeline, `"name": "genre"`, `"name": "off", "enabled": false`, 1)
	odd := strings.Replace(minimalPipeline, `"name": "genre"`, `"name": "odd", "enabled": "yes"`, 1)
	path := writeFile(t, "config.json", `{"pipelines": [42, `+disabled+`, `+odd+`, `+minimalPipeline+`]}`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipelines) != 2 {
		t.Fatalf("expected 2 enabled pipelines, got %d", len(cfg.Pipelines))
	}
	if cfg.Pipelines[0].Name != "odd" || cfg.Pipelines[1].Name != "genre" {
		t.Fatalf("unexpected pipelines: %s, %s", cfg.Pipelines[0].Name, cfg.Pipelines[1].Name)
	}
}

func TestLoad_DisabledPipelineMayBeIncomplete(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"pipelines": [{"name": "draft", "enabled": false}]}`)
	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipelines) != 0 {
		t.Fatalf("expected no pipelines, got %d", len(cfg.Pipelines))
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	missingKey := strings.Replace(minimalPipeline, `"metadata_path": "models/genre.json",`, "", 1)
	badType := strings.Replace(minimalPipeline, `"name": "genre"`, `"name": "genre", "threshold": "high"`, 1)
	badRate := strings.Replace(minimalPipeline, `"name": "genre"`, `"name": "genre", "sample_rate": 0`, 1)

	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"pipelines": [`},
		{"missing pipelines", `{"logging": {}}`},
		{"pipelines not a list", `{"pipelines": {}}`},
		{"root not an object", `[1, 2]`},
		{"missing required key", `{"pipelines": [` + missingKey + `]}`},
		{"wrong value type", `{"pipelines": [` + badType + `]}`},
		{"non-positive sample rate", `{"pipelines": [` + badRate + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.json", tt.content)
			if _, err := Load(path, quietLogger()); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), quietLogger()); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing file, got %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "autotag.toml", `
[runtime]
onnx_library = "/opt/onnx/libonnxruntime.so"

[[pipelines]]
name = "genre"
data_folder = "/music"
embedding_model_path = "e.onnx"
prediction_model_path = "p.onnx"
metadata_path = "m.json"
result_file_path = "r.txt"
threshold = 0.2
max_labels = 5
tags_to_write = ["GENRE_AUTO", "TXXX:STYLE"]

[[pipelines]]
name = "voice"
enabled = false
`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(cfg.Pipelines))
	}
	p := cfg.Pipelines[0]
	if p.Threshold != 0.2 || p.MaxLabels == nil || *p.MaxLabels != 5 {
		t.Fatalf("unexpected filters: %+v", p)
	}
	if len(p.TagsToWrite) != 2 || p.TagsToWrite[1] != "TXXX:STYLE" {
		t.Fatalf("tags = %v", p.TagsToWrite)
	}
	if cfg.Runtime.ONNXLibrary != "/opt/onnx/libonnxruntime.so" {
		t.Fatalf("onnx library = %q", cfg.Runtime.ONNXLibrary)
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "autotag.yaml", `
logging:
  level: debug
results:
  keep_previous: true
pipelines:
  - name: mood_happy
    data_folder: /music
    embedding_model_path: e.onnx
    prediction_model_path: p.onnx
    metadata_path: m.json
    result_file_path: r.txt
    min_freq: 2
  - just a string
`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(cfg.Pipelines))
	}
	p := cfg.Pipelines[0]
	if p.MinFrequency != 2 || !p.ReportAllScores {
		t.Fatalf("unexpected pipeline: %+v", p)
	}
	if cfg.Logging.Level != "debug" || !cfg.Results.KeepPrevious {
		t.Fatalf("unexpected root settings: %+v %+v", cfg.Logging, cfg.Results)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTOTAG_LOG_LEVEL", "warn")
	t.Setenv("AUTOTAG_FFMPEG", "/usr/local/bin/ffmpeg")
	path := writeFile(t, "config.json", `{"logging": {"level": "debug"}, "pipelines": []}`)

	cfg, err := Load(path, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Runtime.FFmpeg != "/usr/local/bin/ffmpeg" {
		t.Fatalf("ffmpeg = %q", cfg.Runtime.FFmpeg)
	}
}

func TestIsRegression(t *testing.T) {
	for name, want := range map[string]bool{
		"arousal_valence":        true,
		"DEAM_Arousal_Valence_2": true,
		"genre":                  false,
	} {
		if got := (Pipeline{Name: name}).IsRegression(); got != want {
			t.Errorf("IsRegression(%q) = %v, want %v", name, got, want)
		}
	}
}
