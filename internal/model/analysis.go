package model

// LabelScore is one ranked entry of an analysis result.
type LabelScore struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`      // segments whose score exceeded the threshold
	Frequency float64 `json:"frequency"`  // percentage of the retained count, 0-100
	MeanScore float64 `json:"mean_score"` // mean over all segments
}

// AnalysisResult is the ranked, filtered label list for one file and one
// pipeline. Most relevant first.
type AnalysisResult []LabelScore

// Labels returns the label names in ranked order.
func (r AnalysisResult) Labels() []string {
	out := make([]string, len(r))
	for i, ls := range r {
		out[i] = ls.Label
	}
	return out
}

// ClassScore pairs a class label with its mean score across all segments,
// regardless of filtering.
type ClassScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// FilterParams records the analyzer parameters used to produce a result.
type FilterParams struct {
	Threshold    float64 `json:"threshold"`
	MinFrequency int     `json:"min_freq"`
	MinScore     float64 `json:"min_score"`
	MaxLabels    *int    `json:"max_labels,omitempty"`
}
