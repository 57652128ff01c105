// Package audio lists audio files in a data folder and decodes them to mono
// PCM samples.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SupportedExtensions are the file extensions considered audio, compared
// case-insensitively.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".mp4", ".m4a", ".ogg"}

// IsSupported reports whether name has a supported audio extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Discover returns the names of the supported audio files directly inside
// dir, sorted by name. Subdirectories are not descended into.
func Discover(fsys afero.Fs, dir string) ([]string, error) {
	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("audio: data folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("audio: data folder %s is not a directory", dir)
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("audio: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
