package tags

import (
	"errors"
	"fmt"
	"strings"
)

// Container is the tag layout family of a media file.
type Container int

const (
	Unknown Container = iota
	ID3               // MP3
	WAVE              // RIFF WAVE
	Vorbis            // FLAC, Ogg Vorbis, Ogg Opus
	MP4               // MP4 / M4A freeform atoms
)

func (c Container) String() string {
	switch c {
	case ID3:
		return "id3"
	case WAVE:
		return "wave"
	case Vorbis:
		return "vorbis"
	case MP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// containerOf maps an ffprobe format_name (a comma-separated list) to a
// Container.
func containerOf(formatName string) Container {
	for _, name := range strings.Split(strings.ToLower(formatName), ",") {
		switch strings.TrimSpace(name) {
		case "mp3":
			return ID3
		case "wav":
			return WAVE
		case "flac", "ogg", "opus":
			return Vorbis
		case "mov", "mp4", "m4a":
			return MP4
		}
	}
	return Unknown
}

// errUnsupportedTag is returned for tag identifiers a handler cannot map.
var errUnsupportedTag = errors.New("unsupported tag identifier")

// Change is one metadata key to set.
type Change struct {
	Key   string
	Value string
}

// handler maps a tag identifier to the container's key. It reports false
// when the file already holds value under that key.
type handler func(existing map[string]string, tagID, value string) (Change, bool, error)

var handlers = map[Container]handler{
	ID3:    writeID3,
	WAVE:   writeID3,
	Vorbis: writeVorbis,
	MP4:    writeMP4,
}

// describe extracts the user-defined frame description from a tag identifier:
// "TXXX:<desc>", "GENRE_AUTO" or "INSTRUMENT".
func describe(tagID string) (string, error) {
	if desc, ok := strings.CutPrefix(tagID, "TXXX:"); ok {
		if desc == "" {
			return "", fmt.Errorf("%w: %q has an empty description", errUnsupportedTag, tagID)
		}
		return desc, nil
	}
	switch tagID {
	case "GENRE_AUTO", "INSTRUMENT":
		return tagID, nil
	}
	return "", fmt.Errorf("%w: %q", errUnsupportedTag, tagID)
}

func writeID3(existing map[string]string, tagID, value string) (Change, bool, error) {
	desc, err := describe(tagID)
	if err != nil {
		return Change{}, false, err
	}
	return change(existing, desc, value)
}

func writeVorbis(existing map[string]string, tagID, value string) (Change, bool, error) {
	desc, err := describe(tagID)
	if err != nil {
		return Change{}, false, err
	}
	return change(existing, strings.ToUpper(desc), value)
}

func writeMP4(existing map[string]string, tagID, value string) (Change, bool, error) {
	desc, err := describe(tagID)
	if err != nil {
		return Change{}, false, err
	}
	return change(existing, desc, value)
}

// change reports whether key must be (re)written. Existing keys are compared
// case-insensitively since containers differ in how they store key case.
func change(existing map[string]string, key, value string) (Change, bool, error) {
	if current, ok := existing[strings.ToUpper(key)]; ok && current == value {
		return Change{}, false, nil
	}
	return Change{Key: key, Value: value}, true, nil
}
