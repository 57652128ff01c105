package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/hejijunhao/autotag/internal/audio"
	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/engine/analyzer"
	"github.com/hejijunhao/autotag/internal/engine/classifier"
	"github.com/hejijunhao/autotag/internal/engine/embedder"
	"github.com/hejijunhao/autotag/internal/engine/grouping"
	"github.com/hejijunhao/autotag/internal/model"
	"github.com/hejijunhao/autotag/internal/output"
)

// State is the coordinator's position in a run.
type State int

const (
	Idle State = iota
	ConfigLoaded
	Grouped
	FeatureExtraction
	PerConfigProcessing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ConfigLoaded:
		return "config_loaded"
	case Grouped:
		return "grouped"
	case FeatureExtraction:
		return "feature_extraction"
	case PerConfigProcessing:
		return "per_config_processing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decoder turns an audio file into mono samples at the given rate.
type Decoder interface {
	Decode(ctx context.Context, path string, sampleRate, quality int) ([]float32, error)
}

// ClassLoader reads the class labels of a scoring model.
type ClassLoader interface {
	LoadClasses(path string) ([]string, error)
}

// Deps are the collaborators of a Coordinator. Open* functions are called
// once per group (extractor) or once per pipeline (scorer, sink).
type Deps struct {
	OpenExtractor func(p config.Pipeline) (embedder.Embedder, error)
	OpenScorer    func(p config.Pipeline) (classifier.Scorer, error)
	OpenSink      func(p config.Pipeline) (output.Sink, error)
	Decoder       Decoder
	Tags          TagWriter
	Classes       ClassLoader
	FS            afero.Fs
	Logger        *slog.Logger
	RunID         string
	Now           func() time.Time
	// OnState, when set, observes every state transition.
	OnState func(State)
}

// Coordinator drives a run: it groups pipelines, extracts features once per
// file and group, and fans them out to the group's pipelines. Work is
// sequential.
type Coordinator struct {
	deps   Deps
	logger *slog.Logger
	state  State
}

// New creates a Coordinator. Nil FS, Logger and Now default to the OS
// filesystem, slog.Default and time.Now.
func New(deps Deps) *Coordinator {
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Coordinator{deps: deps, logger: deps.Logger}
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.deps.OnState != nil {
		c.deps.OnState(s)
	}
}

// Run processes every pipeline of cfg. Group, pipeline and file failures are
// logged and counted in the summary; the returned error is non-nil only when
// ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	sum := &Summary{RunID: c.deps.RunID, Started: c.deps.Now()}
	c.setState(ConfigLoaded)

	if !cfg.Results.KeepPrevious {
		c.cleanResults(cfg.Pipelines)
	}

	groups := grouping.Build(cfg.Pipelines)
	c.setState(Grouped)
	c.logger.Info("pipelines grouped", "pipelines", len(cfg.Pipelines), "groups", len(groups))

	var (
		open   []*Pipeline
		runErr error
	)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		prepared, err := c.runGroup(ctx, g, sum)
		open = append(open, prepared...)
		if err != nil {
			runErr = err
			break
		}
	}

	for _, p := range open {
		if err := p.Close(); err != nil {
			c.logger.Warn("closing pipeline resources", "pipeline", p.Name(), "error", err)
		}
	}

	c.setState(Done)
	sum.Finished = c.deps.Now()
	return sum, runErr
}

// runGroup processes one group. It returns the pipelines it prepared so the
// caller can close them at the end of the run, and a non-nil error only when
// ctx is cancelled.
func (c *Coordinator) runGroup(ctx context.Context, g grouping.Group, sum *Summary) ([]*Pipeline, error) {
	log := c.logger.With("group", g.Key.String())
	gi := sum.addGroup(g)

	files, err := audio.Discover(c.deps.FS, g.Key.DataFolder)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrResource, err)
		log.Error("skipping group", "error", err)
		sum.skipGroup(gi, err)
		return nil, nil
	}
	sum.Groups[gi].Files = len(files)
	if len(files) == 0 {
		log.Info("no audio files found", "folder", g.Key.DataFolder)
		return nil, nil
	}

	lead := g.Pipelines[0]
	ext, err := c.deps.OpenExtractor(lead)
	if err != nil {
		err = fmt.Errorf("%w: feature model %s: %w", ErrResource, lead.EmbeddingModelPath, err)
		log.Error("skipping group", "error", err)
		sum.skipGroup(gi, err)
		return nil, nil
	}
	defer func() {
		if err := ext.Close(); err != nil {
			log.Warn("closing feature extractor", "error", err)
		}
	}()

	var prepared []*Pipeline
	for i, pc := range g.Pipelines {
		stat := sum.Groups[gi].first + i
		p, err := c.prepare(pc)
		if err != nil {
			log.Error("excluding pipeline", "pipeline", pc.Name, "error", err)
			sum.Pipelines[stat].Excluded = true
			sum.Pipelines[stat].Error = err.Error()
			continue
		}
		p.logger = log.With("pipeline", pc.Name)
		p.stat = stat
		prepared = append(prepared, p)
		sum.Pipelines[stat].Prepared = true
	}
	if len(prepared) == 0 {
		err := fmt.Errorf("%w: no pipeline could be prepared", ErrResource)
		log.Error("skipping group", "error", err)
		sum.Groups[gi].Skipped = true
		sum.Groups[gi].Reason = err.Error()
		return nil, nil
	}
	log.Info("processing group", "files", len(files), "pipelines", len(prepared))

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return prepared, err
		}
		path := filepath.Join(g.Key.DataFolder, name)
		flog := log.With("file", name)

		c.setState(FeatureExtraction)
		features, err := c.extract(ctx, ext, lead, path)
		if err != nil {
			flog.Error("feature extraction failed, skipping file", "error", err)
			sum.Groups[gi].ExtractFailed++
			continue
		}

		c.setState(PerConfigProcessing)
		for _, p := range prepared {
			if _, err := p.Process(ctx, name, path, features); err != nil {
				flog.Error("pipeline failed", "pipeline", p.Name(), "error", err)
				sum.Pipelines[p.stat].Failed++
				continue
			}
			sum.Pipelines[p.stat].Processed++
		}
	}
	return prepared, nil
}

// extract decodes one file and runs the group's feature model over it.
func (c *Coordinator) extract(ctx context.Context, ext embedder.Embedder, lead config.Pipeline, path string) (model.Matrix, error) {
	samples, err := c.deps.Decoder.Decode(ctx, path, lead.SampleRate, lead.ResampleQuality)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("%w: decode: %w", ErrFile, err)
	}
	features, err := ext.Embed(samples)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("%w: extract features: %w", ErrFile, err)
	}
	return features, nil
}

// prepare builds the per-pipeline resources. Anything it opened is released
// again when a later step fails.
func (c *Coordinator) prepare(pc config.Pipeline) (*Pipeline, error) {
	an, err := analyzer.New(pc.Threshold, pc.MinFrequency, pc.MinScore, pc.MaxLabels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResource, err)
	}
	classes, err := c.deps.Classes.LoadClasses(pc.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: classes: %w", ErrResource, err)
	}
	scorer, err := c.deps.OpenScorer(pc)
	if err != nil {
		return nil, fmt.Errorf("%w: scoring model %s: %w", ErrResource, pc.PredictionModelPath, err)
	}
	sink, err := c.deps.OpenSink(pc)
	if err != nil {
		scorer.Close()
		return nil, fmt.Errorf("%w: result sink %s: %w", ErrResource, pc.ResultFilePath, err)
	}
	return &Pipeline{
		cfg:      pc,
		analyzer: an,
		scorer:   scorer,
		classes:  classes,
		sink:     sink,
		tags:     c.deps.Tags,
		runID:    c.deps.RunID,
		now:      c.deps.Now,
		logger:   c.logger.With("pipeline", pc.Name),
	}, nil
}

// cleanResults removes the result files left by a previous run.
func (c *Coordinator) cleanResults(pipelines []config.Pipeline) {
	seen := make(map[string]bool)
	for _, p := range pipelines {
		path := p.ResultFilePath
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		err := c.deps.FS.Remove(path)
		switch {
		case err == nil:
			c.logger.Info("removed previous result file", "path", path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			c.logger.Warn("cannot remove previous result file", "path", path, "error", err)
		}
	}
}
