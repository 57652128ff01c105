package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Decoder converts an audio file to mono float32 samples at a target rate by
// running ffmpeg.
type Decoder struct {
	Binary string // defaults to "ffmpeg"
}

// NewDecoder creates a Decoder using the given ffmpeg binary.
func NewDecoder(binary string) *Decoder {
	return &Decoder{Binary: binary}
}

// Decode returns the mono samples of path resampled to sampleRate. quality
// (0-4, higher is better) selects the resampler filter length.
func (d *Decoder) Decode(ctx context.Context, path string, sampleRate, quality int) ([]float32, error) {
	binary := strings.TrimSpace(d.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("audio decode: empty path")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio decode: invalid sample rate %d", sampleRate)
	}

	cmd := exec.CommandContext(ctx, binary, decodeArgs(path, sampleRate, quality)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audio decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	samples, err := parseFloat32LE(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("audio decode %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio decode %s: no samples", path)
	}
	return samples, nil
}

func decodeArgs(path string, sampleRate, quality int) []string {
	return []string{
		"-v", "error", "-nostdin",
		"-i", path,
		"-vn", "-ac", "1",
		"-af", "aresample=filter_size=" + strconv.Itoa(filterSize(quality)),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le", "-",
	}
}

// filterSize maps a 0-4 quality level to a resampler filter length.
func filterSize(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 4 {
		quality = 4
	}
	return 8 << quality
}

func parseFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("truncated sample stream (%d bytes)", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
