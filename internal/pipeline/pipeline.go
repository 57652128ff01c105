// Package pipeline runs configured analysis pipelines over audio files:
// features are extracted once per file and group, then every pipeline of the
// group scores, filters, tags and records them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/engine/analyzer"
	"github.com/hejijunhao/autotag/internal/engine/classifier"
	"github.com/hejijunhao/autotag/internal/engine/labels"
	"github.com/hejijunhao/autotag/internal/model"
	"github.com/hejijunhao/autotag/internal/output"
)

var (
	// ErrResource marks a failure to load a model, metadata file, sink or
	// data folder. The affected group or pipeline is skipped.
	ErrResource = errors.New("resource load failed")
	// ErrFile marks a failure confined to one audio file.
	ErrFile = errors.New("file processing failed")
)

// TagWriter writes a value into the metadata of an audio file. Failures are
// handled by the writer.
type TagWriter interface {
	WriteTags(ctx context.Context, path, value string, tagIDs []string)
}

// Pipeline is one prepared configuration: its analyzer, scorer, classes and
// result sink.
type Pipeline struct {
	cfg      config.Pipeline
	analyzer *analyzer.Analyzer
	scorer   classifier.Scorer
	classes  []string
	sink     output.Sink
	tags     TagWriter
	runID    string
	now      func() time.Time
	logger   *slog.Logger
	stat     int // slot in Summary.Pipelines
}

// Name returns the configured pipeline name.
func (p *Pipeline) Name() string { return p.cfg.Name }

// Process scores the features of one file, writes the resulting tag and
// appends a record to the sink. features is only read.
func (p *Pipeline) Process(ctx context.Context, fileName, path string, features model.Matrix) (output.Record, error) {
	scores, err := p.scorer.Score(features)
	if err != nil {
		return output.Record{}, fmt.Errorf("%w: score %s: %w", ErrFile, fileName, err)
	}

	var (
		result    model.AnalysisResult
		final     string
		allScores []model.ClassScore
	)
	if p.cfg.IsRegression() {
		result = analyzer.Regression(scores, p.classes)
		final = labels.FormatRegression(result)
	} else {
		result, err = p.analyzer.Analyze(scores, p.classes)
		if err != nil {
			return output.Record{}, fmt.Errorf("%w: analyze %s: %w", ErrFile, fileName, err)
		}
		final = labels.FormatLabels(result)
		allScores = analyzer.MeanScores(scores, p.classes)
	}

	value := final
	if len(result) == 0 {
		value = labels.NoResult
	}
	p.logger.Debug("analysis complete", "file", fileName, "labels", len(result), "value", value)

	p.tags.WriteTags(ctx, path, value, p.cfg.TagsToWrite)

	params := p.analyzer.Params()
	rec := output.Record{
		RunID:       p.runID,
		Pipeline:    p.cfg.Name,
		File:        fileName,
		Path:        path,
		FinalLabels: final,
		TagValue:    value,
		Regression:  p.cfg.IsRegression(),
		Params:      &params,
		Results:     result,
		AllScores:   allScores,
		AnalyzedAt:  p.now(),
	}
	if err := p.sink.Write(ctx, rec); err != nil {
		return rec, fmt.Errorf("%w: save result for %s: %w", ErrFile, fileName, err)
	}
	return rec, nil
}

// Close releases the scorer and the sink.
func (p *Pipeline) Close() error {
	return errors.Join(p.scorer.Close(), p.sink.Close())
}
