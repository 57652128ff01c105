package tags

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type recorder struct {
	probe    Probe
	probeErr error
	applied  [][]Change
	applyErr error
}

func newTestWriter(r *recorder) *Writer {
	return &Writer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		probe: func(context.Context, string) (Probe, error) {
			return r.probe, r.probeErr
		},
		apply: func(_ context.Context, _ string, _ Container, changes []Change) error {
			r.applied = append(r.applied, changes)
			return r.applyErr
		},
	}
}

func TestWriteTagsNormalizesValue(t *testing.T) {
	r := &recorder{probe: Probe{Container: ID3, Tags: map[string]string{}}}
	w := newTestWriter(r)

	w.WriteTags(context.Background(), "/music/a.mp3", "Hip Hop---Instrumental ; Hip Hop---Boom Bap", []string{"GENRE_AUTO", "TXXX:STYLE"})

	if len(r.applied) != 1 {
		t.Fatalf("expected one rewrite, got %d", len(r.applied))
	}
	changes := r.applied[0]
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	want := "Hip Hop ; Instrumental ; Boom Bap"
	if changes[0].Key != "GENRE_AUTO" || changes[0].Value != want {
		t.Fatalf("unexpected first change %+v", changes[0])
	}
	if changes[1].Key != "STYLE" {
		t.Fatalf("unexpected second change %+v", changes[1])
	}
}

func TestWriteTagsNoResultSentinelVerbatim(t *testing.T) {
	r := &recorder{probe: Probe{Container: Vorbis, Tags: map[string]string{}}}
	w := newTestWriter(r)

	w.WriteTags(context.Background(), "/music/a.flac", "nan", []string{"GENRE_AUTO"})

	if len(r.applied) != 1 || r.applied[0][0].Value != "nan" {
		t.Fatalf("expected literal nan, got %+v", r.applied)
	}
}

func TestWriteTagsSkipsUnchanged(t *testing.T) {
	r := &recorder{probe: Probe{Container: ID3, Tags: map[string]string{"GENRE_AUTO": "Rock ; Pop"}}}
	w := newTestWriter(r)

	w.WriteTags(context.Background(), "/music/a.mp3", "rock ; pop", []string{"GENRE_AUTO"})

	if len(r.applied) != 0 {
		t.Fatalf("expected no rewrite when value is unchanged, got %+v", r.applied)
	}
}

func TestWriteTagsContinuesPastBadIdentifier(t *testing.T) {
	r := &recorder{probe: Probe{Container: MP4, Tags: map[string]string{}}}
	w := newTestWriter(r)

	w.WriteTags(context.Background(), "/music/a.m4a", "jazz", []string{"TPE1", "TXXX:", "INSTRUMENT"})

	if len(r.applied) != 1 || len(r.applied[0]) != 1 || r.applied[0][0].Key != "INSTRUMENT" {
		t.Fatalf("expected only INSTRUMENT to be written, got %+v", r.applied)
	}
}

func TestWriteTagsNoop(t *testing.T) {
	tests := []struct {
		name  string
		r     *recorder
		value string
		ids   []string
	}{
		{"no identifiers", &recorder{probe: Probe{Container: ID3}}, "rock", nil},
		{"empty value", &recorder{probe: Probe{Container: ID3}}, "  ", []string{"GENRE_AUTO"}},
		{"unknown container", &recorder{probe: Probe{Container: Unknown}}, "rock", []string{"GENRE_AUTO"}},
		{"probe failure", &recorder{probeErr: errors.New("boom")}, "rock", []string{"GENRE_AUTO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWriter(tt.r)
			w.WriteTags(context.Background(), "/music/a.mp3", tt.value, tt.ids)
			if len(tt.r.applied) != 0 {
				t.Fatalf("expected no rewrite, got %+v", tt.r.applied)
			}
		})
	}
}

func TestWriteTagsApplyFailureIsNotFatal(t *testing.T) {
	r := &recorder{probe: Probe{Container: ID3, Tags: map[string]string{}}, applyErr: errors.New("disk full")}
	w := newTestWriter(r)
	w.WriteTags(context.Background(), "/music/a.mp3", "rock", []string{"GENRE_AUTO"})
	if len(r.applied) != 1 {
		t.Fatalf("expected one attempt, got %d", len(r.applied))
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name     string
		c        Container
		existing map[string]string
		tagID    string
		wantKey  string
		modified bool
		wantErr  bool
	}{
		{"id3 txxx", ID3, nil, "TXXX:Mood", "Mood", true, false},
		{"id3 genre auto", ID3, nil, "GENRE_AUTO", "GENRE_AUTO", true, false},
		{"id3 unchanged", ID3, map[string]string{"MOOD": "Happy"}, "TXXX:Mood", "", false, false},
		{"vorbis upper-cases txxx", Vorbis, nil, "TXXX:mood", "MOOD", true, false},
		{"vorbis instrument", Vorbis, nil, "INSTRUMENT", "INSTRUMENT", true, false},
		{"mp4 txxx", MP4, nil, "TXXX:Style", "Style", true, false},
		{"wave uses id3 rules", WAVE, nil, "TXXX:Mood", "Mood", true, false},
		{"unsupported id", ID3, nil, "TCON", "", false, true},
		{"empty description", Vorbis, nil, "TXXX:", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := tt.existing
			if existing == nil {
				existing = map[string]string{}
			}
			c, modified, err := handlers[tt.c](existing, tt.tagID, "Happy")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errUnsupportedTag) {
				t.Fatalf("expected errUnsupportedTag, got %v", err)
			}
			if modified != tt.modified {
				t.Fatalf("modified = %v, want %v", modified, tt.modified)
			}
			if c.Key != tt.wantKey {
				t.Fatalf("key = %q, want %q", c.Key, tt.wantKey)
			}
		})
	}
}

func TestContainerOf(t *testing.T) {
	for name, want := range map[string]Container{
		"mp3":                     ID3,
		"wav":                     WAVE,
		"flac":                    Vorbis,
		"ogg":                     Vorbis,
		"mov,mp4,m4a,3gp,3g2,mj2": MP4,
		"matroska,webm":           Unknown,
	} {
		if got := containerOf(name); got != want {
			t.Errorf("containerOf(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [{"tags": {"genre_auto": "Old", "ENCODER": "x"}}],
		"format": {"format_name": "ogg", "tags": {"Genre_Auto": "Rock"}}
	}`)
	p, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if p.Container != Vorbis {
		t.Fatalf("container = %v", p.Container)
	}
	if p.Tags["GENRE_AUTO"] != "Rock" || p.Tags["ENCODER"] != "x" {
		t.Fatalf("tags = %v", p.Tags)
	}
	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRewriteArgs(t *testing.T) {
	args := strings.Join(rewriteArgs("in.m4a", ".autotag-in.m4a", MP4, []Change{{Key: "GENRE_AUTO", Value: "Rock ; Pop"}}), " ")
	for _, want := range []string{"-i in.m4a", "-c copy", "-movflags use_metadata_tags", "-metadata GENRE_AUTO=Rock ; Pop", ".autotag-in.m4a"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	args = strings.Join(rewriteArgs("in.mp3", "out.mp3", ID3, nil), " ")
	if !strings.Contains(args, "-id3v2_version 3") {
		t.Errorf("mp3 args %q missing id3 version", args)
	}
	args = strings.Join(rewriteArgs("in.wav", "out.wav", WAVE, nil), " ")
	if !strings.Contains(args, "-write_id3v2 1") {
		t.Errorf("wav args %q missing id3 chunk flag", args)
	}
}
