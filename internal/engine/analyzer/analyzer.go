package analyzer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/hejijunhao/autotag/internal/model"
)

var (
	// ErrInvalidParams is returned by New when a filter parameter is out of range.
	ErrInvalidParams = errors.New("analyzer: invalid parameters")
	// ErrShapeMismatch is returned by Analyze when the score matrix width does
	// not match the number of class labels.
	ErrShapeMismatch = errors.New("analyzer: score matrix does not match class labels")
)

// Default filter values.
const (
	DefaultThreshold    = 0.1
	DefaultMinFrequency = 0
	DefaultMinScore     = 0.0
)

// Analyzer filters and ranks per-class scores from a segment x class matrix.
type Analyzer struct {
	Threshold    float64
	MinFrequency int
	MinScore     float64
	MaxLabels    *int // nil = no limit
}

// New creates an Analyzer after validating its parameters.
func New(threshold float64, minFrequency int, minScore float64, maxLabels *int) (*Analyzer, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v not in [0, 1]", ErrInvalidParams, threshold)
	}
	if minFrequency < 0 {
		return nil, fmt.Errorf("%w: min_freq %d is negative", ErrInvalidParams, minFrequency)
	}
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("%w: min_score %v not in [0, 1]", ErrInvalidParams, minScore)
	}
	if maxLabels != nil && *maxLabels < 0 {
		return nil, fmt.Errorf("%w: max_labels %d is negative", ErrInvalidParams, *maxLabels)
	}
	return &Analyzer{
		Threshold:    threshold,
		MinFrequency: minFrequency,
		MinScore:     minScore,
		MaxLabels:    maxLabels,
	}, nil
}

// Params returns the analyzer configuration for reporting.
func (a *Analyzer) Params() model.FilterParams {
	return model.FilterParams{
		Threshold:    a.Threshold,
		MinFrequency: a.MinFrequency,
		MinScore:     a.MinScore,
		MaxLabels:    a.MaxLabels,
	}
}

type candidate struct {
	label string
	count int
	mean  float64
}

// Analyze computes, for each class, the number of segments above the threshold
// and the mean score; keeps classes passing MinFrequency and MinScore; and
// returns them ranked by (count, mean) descending. Classes with identical keys
// keep their column order.
func (a *Analyzer) Analyze(scores model.Matrix, classes []string) (model.AnalysisResult, error) {
	if scores.Cols != len(classes) {
		if scores.Size() == 0 && len(classes) == 0 {
			return model.AnalysisResult{}, nil
		}
		return nil, fmt.Errorf("%w: scores %s, %d classes", ErrShapeMismatch, scores.Shape(), len(classes))
	}
	if scores.Rows == 0 {
		return model.AnalysisResult{}, nil
	}

	// Scores are float32; compare at that precision so a score equal to the
	// threshold never counts.
	threshold := float32(a.Threshold)
	minScore := float32(a.MinScore)

	kept := make([]candidate, 0, len(classes))
	for j, label := range classes {
		col := scores.Column(j)
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("analyzer: mean of %q: %w", label, err)
		}
		count := 0
		for _, v := range col {
			if float32(v) > threshold {
				count++
			}
		}
		if count >= a.MinFrequency && float32(mean) >= minScore {
			kept = append(kept, candidate{label: label, count: count, mean: mean})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].count != kept[j].count {
			return kept[i].count > kept[j].count
		}
		return kept[i].mean > kept[j].mean
	})

	if a.MaxLabels != nil && len(kept) > *a.MaxLabels {
		kept = kept[:*a.MaxLabels]
	}

	total := 0
	for _, c := range kept {
		total += c.count
	}
	denom := total
	if denom == 0 {
		denom = 1
	}

	result := make(model.AnalysisResult, len(kept))
	for i, c := range kept {
		result[i] = model.LabelScore{
			Label:     c.label,
			Count:     c.count,
			Frequency: float64(c.count) / float64(denom) * 100,
			MeanScore: c.mean,
		}
	}
	return result, nil
}

// MeanScores returns the mean score of every class, in column order. It
// returns nil when the matrix width does not match the labels or the matrix
// has no rows.
func MeanScores(scores model.Matrix, classes []string) []model.ClassScore {
	if scores.Rows == 0 || scores.Cols != len(classes) {
		return nil
	}
	out := make([]model.ClassScore, len(classes))
	for j, label := range classes {
		mean, _ := stats.Mean(scores.Column(j))
		out[j] = model.ClassScore{Label: label, Score: mean}
	}
	return out
}

// Regression reports every output dimension of a regression model as its own
// entry: count 1, frequency 100 and the mean raw value across segments.
// Dimension names come from names when its length matches the matrix width,
// otherwise they are generated as Output_1..Output_N.
func Regression(values model.Matrix, names []string) model.AnalysisResult {
	if values.Rows == 0 || values.Cols == 0 {
		return model.AnalysisResult{}
	}
	if len(names) != values.Cols {
		names = make([]string, values.Cols)
		for j := range names {
			names[j] = fmt.Sprintf("Output_%d", j+1)
		}
	}
	result := make(model.AnalysisResult, values.Cols)
	for j := range result {
		mean, _ := stats.Mean(values.Column(j))
		result[j] = model.LabelScore{Label: names[j], Count: 1, Frequency: 100, MeanScore: mean}
	}
	return result
}
