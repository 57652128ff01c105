package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hejijunhao/autotag/internal/audio"
	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/engine/classifier"
	"github.com/hejijunhao/autotag/internal/engine/embedder"
	"github.com/hejijunhao/autotag/internal/engine/metadata"
	"github.com/hejijunhao/autotag/internal/output"
	"github.com/hejijunhao/autotag/internal/output/file"
	"github.com/hejijunhao/autotag/internal/output/multi"
	"github.com/hejijunhao/autotag/internal/output/sqlite"
	"github.com/hejijunhao/autotag/internal/output/stdout"
	"github.com/hejijunhao/autotag/internal/pipeline"
	"github.com/hejijunhao/autotag/internal/tags"
)

const lockFileName = ".autotag.lock"

type runOptions struct {
	keepResults bool
	jsonOutput  bool
	database    string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.keepResults, "keep-results", false, "Append to existing result files instead of clearing them")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Stream every result record to stdout as JSON lines")
	cmd.Flags().StringVar(&opts.database, "db", "", "Also store results in this SQLite database")
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze and tag every audio file of the enabled pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelines(cmd, ctx, opts)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

func runPipelines(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.keepResults {
		cfg.Results.KeepPrevious = true
	}
	if opts.database != "" {
		cfg.Results.Database = opts.database
	}

	runID := uuid.NewString()
	logger := ctx.logger(cfg).With("run_id", runID)

	lock := flock.New(filepath.Join(filepath.Dir(cfg.Path), lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another autotag run is using %s", cfg.Path)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shared, err := openSharedSinks(signalCtx, cfg, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := shared.Close(); err != nil {
			logger.Warn("closing shared sinks", "error", err)
		}
	}()

	coord := pipeline.New(newDeps(cfg, logger, runID, shared))
	logger.Info("run started", "config", cfg.Path, "pipelines", len(cfg.Pipelines))
	sum, runErr := coord.Run(signalCtx, cfg)
	if sum != nil {
		logger.Info("run finished", "failures", sum.Failed(), "elapsed", sum.Finished.Sub(sum.Started).Round(time.Millisecond))
		// Keep stdout clean for JSON records.
		summaryOut := cmd.OutOrStdout()
		if opts.jsonOutput {
			summaryOut = cmd.ErrOrStderr()
		}
		fmt.Fprintln(summaryOut, renderSummary(sum))
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Warn("run interrupted")
	}
	return runErr
}

// openSharedSinks opens the sinks every pipeline writes to in addition to
// its result file. The returned Multi owns them.
func openSharedSinks(ctx context.Context, cfg *config.Config, opts runOptions, stdoutW io.Writer) (*multi.Multi, error) {
	var sinks []output.Sink
	if opts.jsonOutput {
		sinks = append(sinks, stdout.NewWriter(stdoutW, false))
	}
	if cfg.Results.Database != "" {
		store, err := sqlite.Open(ctx, cfg.Results.Database)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	return multi.New(sinks...), nil
}

func newDeps(cfg *config.Config, logger *slog.Logger, runID string, shared *multi.Multi) pipeline.Deps {
	lib := cfg.Runtime.ONNXLibrary
	return pipeline.Deps{
		OpenExtractor: func(p config.Pipeline) (embedder.Embedder, error) {
			e, err := embedder.New(p.EmbeddingModelPath, lib, p.EmbeddingInputNode, p.EmbeddingOutputNode)
			if err != nil {
				return nil, err
			}
			return e, nil
		},
		OpenScorer: func(p config.Pipeline) (classifier.Scorer, error) {
			s, err := classifier.New(p.PredictionModelPath, lib, p.InputNode, p.OutputNode)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenSink: func(p config.Pipeline) (output.Sink, error) {
			f, err := file.New(p.ResultFilePath, file.WithAllScores(p.ReportAllScores))
			if err != nil {
				return nil, err
			}
			return multi.New(f, output.NopClose(shared)), nil
		},
		Decoder: audio.NewDecoder(cfg.Runtime.FFmpeg),
		Tags:    tags.New(cfg.Runtime.FFmpeg, cfg.Runtime.FFprobe, logger),
		Classes: metadata.NewLoader(nil),
		Logger:  logger,
		RunID:   runID,
	}
}

func renderSummary(sum *pipeline.Summary) string {
	headers := []string{"Group", "Pipeline", "Processed", "Failed", "Status"}
	rows := make([][]string, 0, len(sum.Pipelines))
	for _, p := range sum.Pipelines {
		g := sum.Groups[p.Group]
		status := "ok"
		switch {
		case g.Skipped:
			status = "group skipped"
		case p.Excluded:
			status = "excluded"
		case p.Failed > 0:
			status = "partial"
		case g.Files == 0:
			status = "no files"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Group + 1),
			p.Name,
			strconv.Itoa(p.Processed),
			strconv.Itoa(p.Failed),
			status,
		})
	}
	table := renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft})

	elapsed := sum.Finished.Sub(sum.Started).Round(time.Millisecond)
	return fmt.Sprintf("%s\nrun %s: %d group(s), %d failure(s) in %s", table, sum.RunID, len(sum.Groups), sum.Failed(), elapsed)
}
