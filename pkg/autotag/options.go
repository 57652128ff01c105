package autotag

import "github.com/hejijunhao/autotag/internal/config"

type options struct {
	embeddingModel  string
	predictionModel string
	metadataPath    string
	onnxLibrary     string
	ffmpeg          string
	inputNode       string
	outputNode      string
	embeddingInput  string
	embeddingOutput string
	threshold       float64
	minFrequency    int
	minScore        float64
	maxLabels       *int
	sampleRate      int
	resampleQuality int
	regression      bool
}

// Option configures a Tagger or a call to AnalyzeScores.
type Option func(*options)

// WithModels sets the feature model, the scoring model and the scoring
// model's JSON metadata (its "classes" list).
func WithModels(embedding, prediction, metadata string) Option {
	return func(o *options) {
		o.embeddingModel = embedding
		o.predictionModel = prediction
		o.metadataPath = metadata
	}
}

// WithONNXLibrary sets the path of the ONNX Runtime shared library. Default:
// libonnxruntime.so next to the feature model.
func WithONNXLibrary(path string) Option {
	return func(o *options) { o.onnxLibrary = path }
}

// WithFFmpeg sets the ffmpeg binary used to decode audio. Default: "ffmpeg"
// on PATH.
func WithFFmpeg(path string) Option {
	return func(o *options) { o.ffmpeg = path }
}

// WithNodes sets the input and output tensor names of the scoring model.
func WithNodes(input, output string) Option {
	return func(o *options) {
		o.inputNode = input
		o.outputNode = output
	}
}

// WithEmbeddingNodes sets the input and output tensor names of the feature
// model. Empty names fall back to the model's first input and output.
func WithEmbeddingNodes(input, output string) Option {
	return func(o *options) {
		o.embeddingInput = input
		o.embeddingOutput = output
	}
}

// WithThreshold sets the score a segment must exceed to count for a label.
// Default: 0.1.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithMinFrequency sets the minimum number of segments above the threshold.
func WithMinFrequency(n int) Option {
	return func(o *options) { o.minFrequency = n }
}

// WithMinScore sets the minimum mean score of a label.
func WithMinScore(s float64) Option {
	return func(o *options) { o.minScore = s }
}

// WithMaxLabels keeps at most n labels.
func WithMaxLabels(n int) Option {
	return func(o *options) { o.maxLabels = &n }
}

// WithSampleRate sets the rate audio is resampled to before feature
// extraction. Default: 16000.
func WithSampleRate(hz int) Option {
	return func(o *options) { o.sampleRate = hz }
}

// WithRegression treats the scoring model as a regression head: every output
// is reported as "name: value" and no filtering applies.
func WithRegression(enabled bool) Option {
	return func(o *options) { o.regression = enabled }
}

func defaultOptions() options {
	return options{
		inputNode:       config.DefaultInputNode,
		outputNode:      config.DefaultOutputNode,
		threshold:       config.DefaultThreshold,
		sampleRate:      config.DefaultSampleRate,
		resampleQuality: config.DefaultResampleQuality,
	}
}
