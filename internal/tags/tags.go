// Package tags writes analysis results into audio file metadata.
package tags

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hejijunhao/autotag/internal/engine/labels"
)

// Probe is what the writer needs to know about a file before tagging it.
type Probe struct {
	Container Container
	Tags      map[string]string // keys upper-cased
}

// Writer sets custom metadata tags through ffprobe and ffmpeg.
type Writer struct {
	logger *slog.Logger
	probe  func(ctx context.Context, path string) (Probe, error)
	apply  func(ctx context.Context, path string, c Container, changes []Change) error
}

// New creates a Writer using the given binaries; empty names default to
// "ffmpeg" and "ffprobe" on PATH.
func New(ffmpeg, ffprobe string, logger *slog.Logger) *Writer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		logger: logger,
		probe: func(ctx context.Context, path string) (Probe, error) {
			return probeFile(ctx, ffprobe, path)
		},
		apply: func(ctx context.Context, path string, c Container, changes []Change) error {
			return rewrite(ctx, ffmpeg, path, c, changes)
		},
	}
}

// WriteTags stores value under every identifier in tagIDs. The value is
// normalized first, except for the "nan" no-result marker which is written
// verbatim. Failures are logged and never returned; one bad identifier does
// not stop the others. The file is only rewritten when a tag changes.
func (w *Writer) WriteTags(ctx context.Context, path, value string, tagIDs []string) {
	log := w.logger.With("file", path)
	if len(tagIDs) == 0 {
		log.Debug("no tags configured, skipping tag writing")
		return
	}

	if value != labels.NoResult {
		value = labels.Normalize(value)
	}
	if value == "" {
		log.Warn("tag value is empty after normalization, skipping")
		return
	}

	probe, err := w.probe(ctx, path)
	if err != nil {
		log.Error("cannot read tags", "error", err)
		return
	}
	write, ok := handlers[probe.Container]
	if !ok {
		log.Warn("unsupported container for tag writing", "container", probe.Container.String())
		return
	}

	var changes []Change
	for _, id := range tagIDs {
		c, modified, err := write(probe.Tags, id, value)
		if err != nil {
			log.Warn("skipping tag", "tag", id, "error", err)
			continue
		}
		if modified {
			changes = append(changes, c)
		}
	}
	if len(changes) == 0 {
		log.Debug("tags already up to date")
		return
	}

	if err := w.apply(ctx, path, probe.Container, changes); err != nil {
		log.Error("failed to save tags", "error", err)
		return
	}
	log.Debug("tags written", "count", len(changes), "value", value)
}

type probeOutput struct {
	Format struct {
		FormatName string            `json:"format_name"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Tags map[string]string `json:"tags"`
	} `json:"streams"`
}

func probeFile(ctx context.Context, binary, path string) (Probe, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-show_entries", "format=format_name:format_tags:stream_tags",
		"-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (Probe, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return Probe{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	tags := make(map[string]string)
	// Ogg keeps comments on the stream; container-level tags win on conflict.
	for _, s := range out.Streams {
		for k, v := range s.Tags {
			tags[strings.ToUpper(k)] = v
		}
	}
	for k, v := range out.Format.Tags {
		tags[strings.ToUpper(k)] = v
	}
	return Probe{Container: containerOf(out.Format.FormatName), Tags: tags}, nil
}

// rewrite remuxes path with the new metadata into a sibling temp file and
// renames it over the original.
func rewrite(ctx context.Context, binary, path string, c Container, changes []Change) error {
	tmp := filepath.Join(filepath.Dir(path), ".autotag-"+filepath.Base(path))
	args := rewriteArgs(path, tmp, c, changes)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func rewriteArgs(src, dst string, c Container, changes []Change) []string {
	args := []string{"-v", "error", "-nostdin", "-y", "-i", src, "-map", "0", "-c", "copy"}
	switch c {
	case ID3:
		args = append(args, "-id3v2_version", "3")
	case WAVE:
		args = append(args, "-write_id3v2", "1", "-id3v2_version", "3")
	case MP4:
		args = append(args, "-movflags", "use_metadata_tags")
	}
	for _, ch := range changes {
		args = append(args, "-metadata", ch.Key+"="+ch.Value)
	}
	return append(args, dst)
}
