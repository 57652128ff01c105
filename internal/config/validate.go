package config

import (
	"errors"
	"fmt"
	"strings"
)

// validate checks structural fields. Filter ranges are checked when the
// analyzer is built so a bad threshold only excludes its own pipeline.
func (p Pipeline) validate() error {
	var problems []string
	for _, f := range []struct {
		key, value string
	}{
		{"name", p.Name},
		{"data_folder", p.DataFolder},
		{"embedding_model_path", p.EmbeddingModelPath},
		{"prediction_model_path", p.PredictionModelPath},
		{"metadata_path", p.MetadataPath},
		{"result_file_path", p.ResultFilePath},
	} {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, fmt.Sprintf("%s must not be empty", f.key))
		}
	}
	if p.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("sample_rate must be positive, got %d", p.SampleRate))
	}
	if p.ResampleQuality < 0 || p.ResampleQuality > 4 {
		problems = append(problems, fmt.Sprintf("resample_quality must be between 0 and 4, got %d", p.ResampleQuality))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
