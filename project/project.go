// Package project reads graph documents: YAML files describing the
// producers, playlists, tracks, filters, transitions and consumer of a
// mediagraph pipeline.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/mediagraph"
)

// OutputTractor names the tractor as the consumer's input.
const OutputTractor = "tractor"

// Project is a graph document.
type Project struct {
	Name      string         `yaml:"name,omitempty"`
	Profile   string         `yaml:"profile,omitempty"`
	Producers []ProducerSpec `yaml:"producers"`
	Playlists []PlaylistSpec `yaml:"playlists,omitempty"`
	Tractor   *TractorSpec   `yaml:"tractor,omitempty"`
	Consumer  ConsumerSpec   `yaml:"consumer"`

	// Output names the producer, playlist or "tractor" feeding the
	// consumer. It defaults to the tractor, then the last playlist, then
	// the last producer.
	Output string `yaml:"output,omitempty"`
}

// ServiceSpec names a service as "id" or "id:arg" with extra properties.
type ServiceSpec struct {
	Service    string            `yaml:"service"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// ProducerSpec declares a producer referenced by ID elsewhere.
type ProducerSpec struct {
	ID          string `yaml:"id"`
	ServiceSpec `yaml:",inline"`
	In          *int         `yaml:"in,omitempty"`
	Out         *int         `yaml:"out,omitempty"`
	Filters     []FilterSpec `yaml:"filters,omitempty"`
}

// FilterSpec attaches a filter. Inside a tractor, Track selects a track;
// without it the filter applies to the tractor output.
type FilterSpec struct {
	ServiceSpec `yaml:",inline"`
	Track       *int `yaml:"track,omitempty"`
}

// PlaylistSpec declares a playlist of entries.
type PlaylistSpec struct {
	ID      string       `yaml:"id"`
	Entries []EntrySpec  `yaml:"entries"`
	Filters []FilterSpec `yaml:"filters,omitempty"`
}

// EntrySpec is one playlist entry: a producer reference or a blank.
type EntrySpec struct {
	Producer string `yaml:"producer,omitempty"`
	In       *int   `yaml:"in,omitempty"`
	Out      *int   `yaml:"out,omitempty"`
	Blank    int    `yaml:"blank,omitempty"`
}

// TractorSpec declares the multi-track stage.
type TractorSpec struct {
	Tracks      []string         `yaml:"tracks"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty"`
	Filters     []FilterSpec     `yaml:"filters,omitempty"`
}

// TransitionSpec plants a transition between two tracks.
type TransitionSpec struct {
	ServiceSpec `yaml:",inline"`
	A           int `yaml:"a"`
	B           int `yaml:"b"`
}

// ConsumerSpec declares the consumer.
type ConsumerSpec struct {
	ServiceSpec `yaml:",inline"`
	Arg         string `yaml:"arg,omitempty"`
}

// DefaultProject returns a project playing ten seconds of colour bars into
// the null consumer.
func DefaultProject() *Project {
	out := 249
	return &Project{
		Name: "bars",
		Producers: []ProducerSpec{{
			ID:          "bars",
			ServiceSpec: ServiceSpec{Service: "testpattern:bars"},
			Out:         &out,
		}},
		Consumer: ConsumerSpec{ServiceSpec: ServiceSpec{Service: "null"}},
	}
}

// Load reads a project file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a project document.
func Parse(data []byte) (*Project, error) {
	p := &Project{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	return p, nil
}

// Save writes the project as YAML.
func (p *Project) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks references and ranges, returning every problem found.
func (p *Project) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if p.Profile != "" {
		if _, err := mediagraph.LoadProfile(p.Profile); err != nil {
			add("profile: %v", err)
		}
	}

	ids := make(map[string]string)
	declare := func(kind, id string) {
		switch {
		case id == "":
			add("%s: id is required", kind)
		case id == OutputTractor:
			add("%s %q: id is reserved", kind, id)
		case ids[id] != "":
			add("%s %q: id already used by a %s", kind, id, ids[id])
		default:
			ids[id] = kind
		}
	}

	for i, ps := range p.Producers {
		declare("producer", ps.ID)
		if ps.Service == "" {
			add("producers[%d]: service is required", i)
		}
		if ps.In != nil && *ps.In < 0 {
			add("producer %q: in must not be negative", ps.ID)
		}
		if ps.In != nil && ps.Out != nil && *ps.Out < *ps.In {
			add("producer %q: out %d precedes in %d", ps.ID, *ps.Out, *ps.In)
		}
		errs = append(errs, validateFilters("producer "+ps.ID, ps.Filters, false, 0)...)
	}

	for _, pl := range p.Playlists {
		declare("playlist", pl.ID)
		if len(pl.Entries) == 0 {
			add("playlist %q: no entries", pl.ID)
		}
		for i, e := range pl.Entries {
			switch {
			case e.Producer == "" && e.Blank <= 0:
				add("playlist %q entry %d: needs a producer or a positive blank", pl.ID, i)
			case e.Producer != "" && e.Blank > 0:
				add("playlist %q entry %d: producer and blank are exclusive", pl.ID, i)
			case e.Producer != "" && ids[e.Producer] != "producer":
				add("playlist %q entry %d: unknown producer %q", pl.ID, i, e.Producer)
			}
			if e.In != nil && e.Out != nil && *e.Out < *e.In {
				add("playlist %q entry %d: out %d precedes in %d", pl.ID, i, *e.Out, *e.In)
			}
		}
		errs = append(errs, validateFilters("playlist "+pl.ID, pl.Filters, false, 0)...)
	}

	if t := p.Tractor; t != nil {
		if len(t.Tracks) == 0 {
			add("tractor: no tracks")
		}
		for i, id := range t.Tracks {
			if ids[id] == "" {
				add("tractor track %d: unknown producer or playlist %q", i, id)
			}
		}
		for i, tr := range t.Transitions {
			if tr.Service == "" {
				add("tractor transitions[%d]: service is required", i)
			}
			if tr.A == tr.B {
				add("tractor transitions[%d]: a and b are both track %d", i, tr.A)
			}
			if tr.A < 0 || tr.A >= len(t.Tracks) || tr.B < 0 || tr.B >= len(t.Tracks) {
				add("tractor transitions[%d]: tracks %d and %d out of range", i, tr.A, tr.B)
			}
		}
		errs = append(errs, validateFilters("tractor", t.Filters, true, len(t.Tracks))...)
	}

	if p.Consumer.Service == "" {
		add("consumer: service is required")
	}
	if len(p.Producers) == 0 {
		add("at least one producer is required")
	}
	if out := p.Output; out != "" {
		if out == OutputTractor && p.Tractor == nil {
			add("output: no tractor declared")
		} else if out != OutputTractor && ids[out] == "" {
			add("output: unknown producer or playlist %q", out)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("project validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func validateFilters(owner string, filters []FilterSpec, tracks bool, trackCount int) []error {
	var errs []error
	for i, f := range filters {
		if f.Service == "" {
			errs = append(errs, fmt.Errorf("%s filters[%d]: service is required", owner, i))
		}
		if f.Track == nil {
			continue
		}
		if !tracks {
			errs = append(errs, fmt.Errorf("%s filters[%d]: track is only valid in a tractor", owner, i))
		} else if *f.Track < 0 || *f.Track >= trackCount {
			errs = append(errs, fmt.Errorf("%s filters[%d]: track %d out of range", owner, i, *f.Track))
		}
	}
	return errs
}

// output resolves the ID feeding the consumer.
func (p *Project) output() string {
	switch {
	case p.Output != "":
		return p.Output
	case p.Tractor != nil:
		return OutputTractor
	case len(p.Playlists) > 0:
		return p.Playlists[len(p.Playlists)-1].ID
	case len(p.Producers) > 0:
		return p.Producers[len(p.Producers)-1].ID
	}
	return ""
}

// String summarizes the project.
func (p *Project) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d producers, %d playlists", p.Name, len(p.Producers), len(p.Playlists))
	if p.Tractor != nil {
		fmt.Fprintf(&b, ", %d tracks", len(p.Tractor.Tracks))
	}
	fmt.Fprintf(&b, " -> %s", p.Consumer.Service)
	return b.String()
}
