// Package metadata loads the class labels that accompany a scoring model.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when the metadata file does not exist.
	ErrNotFound = errors.New("metadata: file not found")
	// ErrMalformed is returned when the file is not valid JSON or "classes"
	// is not a list of strings.
	ErrMalformed = errors.New("metadata: malformed")
	// ErrMissingField is returned when the "classes" key is absent.
	ErrMissingField = errors.New("metadata: missing \"classes\" field")
)

// Loader reads model metadata files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a Loader over fsys. A nil fsys uses the OS filesystem.
func NewLoader(fsys afero.Fs) *Loader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Loader{fs: fsys}
}

// LoadClasses returns the "classes" list of the JSON metadata file at path.
// Order matches the columns of the model output.
func (l *Loader) LoadClasses(path string) ([]string, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("metadata: read %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	raw, ok := doc["classes"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	var classes []string
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, fmt.Errorf("%w: %s: \"classes\" must be a list of strings", ErrMalformed, path)
	}
	return classes, nil
}
