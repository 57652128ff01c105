package autotag

import (
	"context"
	"errors"
	"fmt"

	"github.com/hejijunhao/autotag/internal/audio"
	"github.com/hejijunhao/autotag/internal/engine/analyzer"
	"github.com/hejijunhao/autotag/internal/engine/classifier"
	"github.com/hejijunhao/autotag/internal/engine/embedder"
	"github.com/hejijunhao/autotag/internal/engine/labels"
	"github.com/hejijunhao/autotag/internal/engine/metadata"
	"github.com/hejijunhao/autotag/internal/model"
)

// Tagger runs one feature model and one scoring model over audio files.
type Tagger struct {
	opts     options
	analyzer *analyzer.Analyzer
	classes  []string
	embedder embedder.Embedder
	scorer   classifier.Scorer
	decoder  *audio.Decoder
}

// New loads the models named by WithModels. This is expensive; create once
// and reuse.
func New(opts ...Option) (*Tagger, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.embeddingModel == "" || o.predictionModel == "" || o.metadataPath == "" {
		return nil, errors.New("autotag: WithModels is required")
	}

	an, err := analyzer.New(o.threshold, o.minFrequency, o.minScore, o.maxLabels)
	if err != nil {
		return nil, fmt.Errorf("autotag: %w", err)
	}
	classes, err := metadata.NewLoader(nil).LoadClasses(o.metadataPath)
	if err != nil {
		return nil, fmt.Errorf("autotag: %w", err)
	}
	emb, err := embedder.New(o.embeddingModel, o.onnxLibrary, o.embeddingInput, o.embeddingOutput)
	if err != nil {
		return nil, fmt.Errorf("autotag: %w", err)
	}
	sc, err := classifier.New(o.predictionModel, o.onnxLibrary, o.inputNode, o.outputNode)
	if err != nil {
		emb.Close()
		return nil, fmt.Errorf("autotag: %w", err)
	}

	return &Tagger{
		opts:     o,
		analyzer: an,
		classes:  classes,
		embedder: emb,
		scorer:   sc,
		decoder:  audio.NewDecoder(o.ffmpeg),
	}, nil
}

// TagFile decodes and analyzes the audio file at path. It does not modify
// the file.
func (t *Tagger) TagFile(ctx context.Context, path string) (Result, error) {
	samples, err := t.decoder.Decode(ctx, path, t.opts.sampleRate, t.opts.resampleQuality)
	if err != nil {
		return Result{}, fmt.Errorf("autotag: %w", err)
	}
	features, err := t.embedder.Embed(samples)
	if err != nil {
		return Result{}, fmt.Errorf("autotag: %w", err)
	}
	scores, err := t.scorer.Score(features)
	if err != nil {
		return Result{}, fmt.Errorf("autotag: %w", err)
	}
	return analyze(t.analyzer, scores, t.classes, t.opts.regression)
}

// Close releases model resources.
func (t *Tagger) Close() error {
	return errors.Join(t.scorer.Close(), t.embedder.Close())
}

// AnalyzeScores filters and ranks a precomputed segment x class score matrix.
// Only the filtering options and WithRegression apply.
func AnalyzeScores(scores [][]float32, classes []string, opts ...Option) (Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	an, err := analyzer.New(o.threshold, o.minFrequency, o.minScore, o.maxLabels)
	if err != nil {
		return Result{}, fmt.Errorf("autotag: %w", err)
	}
	m, err := model.FromRows(scores)
	if err != nil {
		return Result{}, fmt.Errorf("autotag: %w", err)
	}
	return analyze(an, m, classes, o.regression)
}

// Normalize title-cases and deduplicates a " ; " separated label list the
// way tag values are written.
func Normalize(value string) string {
	return labels.Normalize(value)
}

func analyze(an *analyzer.Analyzer, scores model.Matrix, classes []string, regression bool) (Result, error) {
	var (
		res   model.AnalysisResult
		value string
	)
	if regression {
		res = analyzer.Regression(scores, classes)
		value = labels.FormatRegression(res)
	} else {
		var err error
		res, err = an.Analyze(scores, classes)
		if err != nil {
			return Result{}, fmt.Errorf("autotag: %w", err)
		}
		value = labels.FormatLabels(res)
	}
	if len(res) == 0 {
		value = labels.NoResult
	}

	tag := value
	if value != labels.NoResult {
		tag = labels.Normalize(value)
	}
	out := Result{Value: value, Tag: tag, Labels: make([]Label, len(res))}
	for i, ls := range res {
		out.Labels[i] = Label{Name: ls.Label, Count: ls.Count, Frequency: ls.Frequency, MeanScore: ls.MeanScore}
	}
	return out, nil
}
