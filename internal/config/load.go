package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for any configuration file that cannot be read,
// parsed, or validated. It aborts the whole run.
var ErrInvalid = errors.New("invalid configuration")

var requiredKeys = []string{
	"name", "data_folder", "embedding_model_path",
	"prediction_model_path", "metadata_path", "result_file_path",
}

type rawRoot struct {
	Pipelines []json.RawMessage `json:"pipelines"`
	Runtime   struct {
		ONNXLibrary string `json:"onnx_library"`
		FFmpeg      string `json:"ffmpeg"`
		FFprobe     string `json:"ffprobe"`
	} `json:"runtime"`
	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`
	Results struct {
		Database     string `json:"database"`
		KeepPrevious bool   `json:"keep_previous"`
	} `json:"results"`
}

type rawPipeline struct {
	Name                string   `json:"name"`
	DataFolder          string   `json:"data_folder"`
	EmbeddingModelPath  string   `json:"embedding_model_path"`
	PredictionModelPath string   `json:"prediction_model_path"`
	MetadataPath        string   `json:"metadata_path"`
	ResultFilePath      string   `json:"result_file_path"`
	TagsToWrite         []string `json:"tags_to_write"`
	Threshold           *float64 `json:"threshold"`
	MinFrequency        *int     `json:"min_freq"`
	MinScore            *float64 `json:"min_score"`
	MaxLabels           *int     `json:"max_labels"`
	SampleRate          *int     `json:"sample_rate"`
	ResampleQuality     *int     `json:"resample_quality"`
	InputNode           *string  `json:"input_node"`
	OutputNode          *string  `json:"output_node"`
	EmbeddingInputNode  string   `json:"embedding_input_node"`
	EmbeddingOutputNode string   `json:"embedding_output_node"`
	ReportAllScores     *bool    `json:"report_all_scores"`
}

// Load reads the configuration file at path. Files ending in .toml are parsed
// as TOML, .yaml or .yml as YAML, anything else as JSON. Disabled pipelines and non-object entries
// are skipped with a warning; a missing required key in an enabled pipeline
// fails the whole load.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
	}

	doc, err := decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalid, path, err)
	}
	pipelines, ok := doc["pipelines"]
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing root key \"pipelines\"", ErrInvalid, path)
	}
	if _, ok := pipelines.([]any); !ok {
		return nil, fmt.Errorf("%w: %s: \"pipelines\" must be a list", ErrInvalid, path)
	}

	// Round-trip through JSON so both formats share one set of typed decoders.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	var root rawRoot
	if err := json.Unmarshal(normalized, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}

	cfg := &Config{
		Path: path,
		Runtime: RuntimeConfig{
			ONNXLibrary: root.Runtime.ONNXLibrary,
			FFmpeg:      root.Runtime.FFmpeg,
			FFprobe:     root.Runtime.FFprobe,
		},
		Logging: LoggingConfig{
			Level:  root.Logging.Level,
			Format: root.Logging.Format,
		},
		Results: ResultsConfig{
			Database:     root.Results.Database,
			KeepPrevious: root.Results.KeepPrevious,
		},
	}

	for i, msg := range root.Pipelines {
		var fields map[string]any
		if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
			logger.Warn("skipping non-object pipeline entry", "index", i)
			continue
		}
		name, _ := fields["name"].(string)
		if name == "" {
			name = fmt.Sprintf("pipeline_%d", i+1)
		}
		if enabled, present := fields["enabled"]; present {
			b, isBool := enabled.(bool)
			if !isBool {
				logger.Warn("pipeline \"enabled\" is not a boolean, treating as enabled", "pipeline", name)
			} else if !b {
				logger.Info("pipeline disabled, skipping", "pipeline", name)
				continue
			}
		}

		p, err := parsePipeline(msg, fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: pipeline %q: %w", ErrInvalid, path, name, err)
		}
		cfg.Pipelines = append(cfg.Pipelines, p)
	}

	cfg.applyEnv()
	logger.Info("configuration loaded",
		"path", path,
		"enabled", len(cfg.Pipelines),
		"declared", len(root.Pipelines),
	)
	return cfg, nil
}

func decode(path string, data []byte) (map[string]any, error) {
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, errors.New("root must be a mapping")
		}
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("root must be an object")
	}
	return doc, nil
}

func parsePipeline(msg json.RawMessage, fields map[string]any) (Pipeline, error) {
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return Pipeline{}, fmt.Errorf("missing required key %q", key)
		}
	}

	var raw rawPipeline
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Pipeline{}, err
	}

	p := Pipeline{
		Name:                raw.Name,
		DataFolder:          raw.DataFolder,
		EmbeddingModelPath:  raw.EmbeddingModelPath,
		PredictionModelPath: raw.PredictionModelPath,
		MetadataPath:        raw.MetadataPath,
		ResultFilePath:      raw.ResultFilePath,
		TagsToWrite:         raw.TagsToWrite,
		Threshold:           deref(raw.Threshold, DefaultThreshold),
		MinFrequency:        deref(raw.MinFrequency, 0),
		MinScore:            deref(raw.MinScore, 0),
		MaxLabels:           raw.MaxLabels,
		SampleRate:          deref(raw.SampleRate, DefaultSampleRate),
		ResampleQuality:     deref(raw.ResampleQuality, DefaultResampleQuality),
		InputNode:           deref(raw.InputNode, DefaultInputNode),
		OutputNode:          deref(raw.OutputNode, DefaultOutputNode),
		EmbeddingInputNode:  raw.EmbeddingInputNode,
		EmbeddingOutputNode: raw.EmbeddingOutputNode,
	}
	if p.TagsToWrite == nil {
		p.TagsToWrite = []string{DefaultTag}
	}
	p.ReportAllScores = deref(raw.ReportAllScores, allScoresPipelines[p.Name])

	if err := p.validate(); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func deref[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
