package autotag

// Label is one ranked label of a Result.
// This is the stable public type; internal representations may evolve
// independently.
type Label struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`      // Segments whose score exceeded the threshold
	Frequency float64 `json:"frequency"`  // Percentage of the retained count
	MeanScore float64 `json:"mean_score"` // Mean over all segments
}

// Result is the analysis of one audio file.
type Result struct {
	Labels []Label `json:"labels"`
	// Value is the final label string: labels joined by " ; ", regression
	// outputs as "name: value", or "nan" when no label qualified.
	Value string `json:"value"`
	// Tag is Value as it would be written into the file's metadata:
	// deduplicated and title-cased, with "nan" kept verbatim.
	Tag string `json:"tag"`
}
