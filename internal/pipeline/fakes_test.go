package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/engine/classifier"
	"github.com/hejijunhao/autotag/internal/engine/embedder"
	"github.com/hejijunhao/autotag/internal/engine/metadata"
	"github.com/hejijunhao/autotag/internal/model"
	"github.com/hejijunhao/autotag/internal/output"
)

// --- mocks ---

type fakeDecoder struct {
	fail  map[string]bool
	calls []string
	rates []int
}

func (d *fakeDecoder) Decode(_ context.Context, path string, sampleRate, quality int) ([]float32, error) {
	d.calls = append(d.calls, path)
	d.rates = append(d.rates, sampleRate)
	if d.fail[path] {
		return nil, fmt.Errorf("mock: cannot decode %s", path)
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

type fakeExtractor struct {
	name   string
	events *[]string
	calls  int
	err    error
}

func (e *fakeExtractor) Embed(samples []float32) (model.Matrix, error) {
	e.calls++
	if e.err != nil {
		return model.Matrix{}, e.err
	}
	return model.Matrix{Rows: 2, Cols: 2, Data: []float32{samples[0], samples[1], samples[2], samples[3]}}, nil
}

func (e *fakeExtractor) Close() error {
	*e.events = append(*e.events, "close "+e.name)
	return nil
}

type fakeScorer struct {
	out      model.Matrix
	failCall int // 1-based call that fails, 0 = never
	calls    int
	seen     []*float32
	closed   bool
}

func (s *fakeScorer) Score(features model.Matrix) (model.Matrix, error) {
	s.calls++
	s.seen = append(s.seen, &features.Data[0])
	if s.calls == s.failCall {
		return model.Matrix{}, errors.New("mock: scorer failed")
	}
	return s.out, nil
}

func (s *fakeScorer) Close() error {
	s.closed = true
	return nil
}

type fakeSink struct {
	records []output.Record
	closed  bool
}

func (s *fakeSink) Write(_ context.Context, rec output.Record) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type tagWrite struct {
	path  string
	value string
	ids   []string
}

type fakeTags struct {
	writes []tagWrite
	hook   func()
}

func (t *fakeTags) WriteTags(_ context.Context, path, value string, tagIDs []string) {
	t.writes = append(t.writes, tagWrite{path: path, value: value, ids: tagIDs})
	if t.hook != nil {
		t.hook()
	}
}

type fakeClasses map[string][]string

func (f fakeClasses) LoadClasses(path string) ([]string, error) {
	c, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrNotFound, path)
	}
	return c, nil
}

// --- harness ---

type harness struct {
	fs      afero.Fs
	dec     *fakeDecoder
	tags    *fakeTags
	classes fakeClasses
	events  []string
	states  []State

	extractors map[string]*fakeExtractor // by embedding model path
	extErr     map[string]error
	scorers    map[string]*fakeScorer // by pipeline name
	sinks      map[string]*fakeSink
	sinkErr    map[string]error
	scorerOpen []string
}

func newHarness() *harness {
	return &harness{
		fs:         afero.NewMemMapFs(),
		dec:        &fakeDecoder{fail: map[string]bool{}},
		tags:       &fakeTags{},
		classes:    fakeClasses{},
		extractors: map[string]*fakeExtractor{},
		extErr:     map[string]error{},
		scorers:    map[string]*fakeScorer{},
		sinks:      map[string]*fakeSink{},
		sinkErr:    map[string]error{},
	}
}

func (h *harness) addFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := h.fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if err := afero.WriteFile(h.fs, dir+"/"+n, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// scorer registers the scores a pipeline's model returns and its classes.
func (h *harness) scorer(p config.Pipeline, classes []string, rows [][]float32) *fakeScorer {
	m, err := model.FromRows(rows)
	if err != nil {
		panic(err)
	}
	s := &fakeScorer{out: m}
	h.scorers[p.Name] = s
	h.classes[p.MetadataPath] = classes
	return s
}

func (h *harness) coordinator() *Coordinator {
	return New(Deps{
		OpenExtractor: func(p config.Pipeline) (embedder.Embedder, error) {
			h.events = append(h.events, "open "+p.EmbeddingModelPath)
			if err := h.extErr[p.EmbeddingModelPath]; err != nil {
				return nil, err
			}
			e := &fakeExtractor{name: p.EmbeddingModelPath, events: &h.events}
			h.extractors[p.EmbeddingModelPath] = e
			return e, nil
		},
		OpenScorer: func(p config.Pipeline) (classifier.Scorer, error) {
			h.scorerOpen = append(h.scorerOpen, p.Name)
			s, ok := h.scorers[p.Name]
			if !ok {
				return nil, errors.New("mock: no model")
			}
			return s, nil
		},
		OpenSink: func(p config.Pipeline) (output.Sink, error) {
			if err := h.sinkErr[p.Name]; err != nil {
				return nil, err
			}
			s := &fakeSink{}
			h.sinks[p.Name] = s
			return s, nil
		},
		Decoder: h.dec,
		Tags:    h.tags,
		Classes: h.classes,
		FS:      h.fs,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		RunID:   "run-test",
		Now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		OnState: func(s State) { h.states = append(h.states, s) },
	})
}

func pipelineConfig(name, folder, embedding string) config.Pipeline {
	return config.Pipeline{
		Name:                name,
		DataFolder:          folder,
		EmbeddingModelPath:  embedding,
		PredictionModelPath: "/models/" + name + ".onnx",
		MetadataPath:        "/models/" + name + ".json",
		ResultFilePath:      "/results/" + name + ".txt",
		TagsToWrite:         []string{config.DefaultTag},
		Threshold:           config.DefaultThreshold,
		SampleRate:          config.DefaultSampleRate,
		ResampleQuality:     config.DefaultResampleQuality,
	}
}
