package output

import (
	"context"
	"time"

	"github.com/hejijunhao/autotag/internal/model"
)

// Sink receives one Record per analyzed file and pipeline. Sinks are
// append-only.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Record is the outcome of one pipeline on one audio file.
type Record struct {
	RunID       string               `json:"run_id,omitempty"`
	Pipeline    string               `json:"pipeline"`
	File        string               `json:"file"`
	Path        string               `json:"path"`
	FinalLabels string               `json:"final_labels"`
	TagValue    string               `json:"tag_value"`
	Regression  bool                 `json:"regression,omitempty"`
	Params      *model.FilterParams  `json:"params,omitempty"`
	Results     model.AnalysisResult `json:"results"`
	AllScores   []model.ClassScore   `json:"all_scores,omitempty"`
	AnalyzedAt  time.Time            `json:"analyzed_at"`
}

// NopClose wraps a sink shared between several owners so that only the
// owner that created it closes it.
func NopClose(s Sink) Sink {
	return nopCloser{s}
}

type nopCloser struct{ Sink }

func (nopCloser) Close() error { return nil }
