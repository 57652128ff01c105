package pipeline

import (
	"time"

	"github.com/hejijunhao/autotag/internal/engine/grouping"
)

// Summary is the outcome of a run.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Groups    []GroupStats
	Pipelines []PipelineStats
}

// GroupStats describes one group of a run.
type GroupStats struct {
	Key           grouping.Key
	Files         int
	ExtractFailed int
	Skipped       bool
	Reason        string

	first int // index of the group's first entry in Summary.Pipelines
	count int
}

// PipelineStats counts the files a pipeline handled.
type PipelineStats struct {
	Name      string
	Group     int // index into Summary.Groups
	Prepared  bool
	Excluded  bool
	Processed int
	Failed    int
	Error     string
}

// Failed returns the number of failures across the run. A skipped group
// counts once, not once per pipeline.
func (s *Summary) Failed() int {
	n := 0
	for _, g := range s.Groups {
		if g.Skipped {
			n++
		}
		n += g.ExtractFailed
	}
	for _, p := range s.Pipelines {
		if p.Excluded && !s.Groups[p.Group].Skipped {
			n++
		}
		n += p.Failed
	}
	return n
}

func (s *Summary) addGroup(g grouping.Group) int {
	gi := len(s.Groups)
	s.Groups = append(s.Groups, GroupStats{Key: g.Key, first: len(s.Pipelines), count: len(g.Pipelines)})
	for _, p := range g.Pipelines {
		s.Pipelines = append(s.Pipelines, PipelineStats{Name: p.Name, Group: gi})
	}
	return gi
}

func (s *Summary) skipGroup(gi int, err error) {
	g := &s.Groups[gi]
	g.Skipped = true
	g.Reason = err.Error()
	for i := g.first; i < g.first+g.count; i++ {
		s.Pipelines[i].Excluded = true
		s.Pipelines[i].Error = g.Reason
	}
}
