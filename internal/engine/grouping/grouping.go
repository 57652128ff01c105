// Package grouping batches pipelines that can share one feature extraction
// per audio file.
package grouping

import (
	"fmt"

	"github.com/hejijunhao/autotag/internal/config"
)

// Key identifies pipelines that read the same folder with the same feature
// model at the same sample rate. Pipelines sharing a Key must see the same
// feature vector for a given file.
type Key struct {
	DataFolder         string
	EmbeddingModelPath string
	SampleRate         int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%dHz", k.DataFolder, k.EmbeddingModelPath, k.SampleRate)
}

// KeyOf returns the grouping key of a pipeline.
func KeyOf(p config.Pipeline) Key {
	return Key{
		DataFolder:         p.DataFolder,
		EmbeddingModelPath: p.EmbeddingModelPath,
		SampleRate:         p.SampleRate,
	}
}

// Group is a set of pipelines sharing a Key, in configuration order.
type Group struct {
	Key       Key
	Pipelines []config.Pipeline
}

// Names returns the pipeline names of the group.
func (g Group) Names() []string {
	names := make([]string, len(g.Pipelines))
	for i, p := range g.Pipelines {
		names[i] = p.Name
	}
	return names
}

// Groups is an ordered collection of groups.
type Groups []Group

// Lookup returns the group for key.
func (gs Groups) Lookup(key Key) (Group, bool) {
	for _, g := range gs {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// Build partitions pipelines by Key. Groups appear in the order their first
// pipeline appears; pipelines keep their relative order within a group.
func Build(pipelines []config.Pipeline) Groups {
	var groups Groups
	index := make(map[Key]int)
	for _, p := range pipelines {
		key := KeyOf(p)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Pipelines = append(groups[i].Pipelines, p)
	}
	return groups
}
