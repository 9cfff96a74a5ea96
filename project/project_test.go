package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thesyncim/mediagraph"
)

const demoProject = `
name: demo
profile: qcif_15
producers:
  - id: bg
    service: color:blue
    out: 9
  - id: fg
    service: count:6
    filters:
      - service: greyscale
playlists:
  - id: main
    entries:
      - producer: fg
        in: 1
        out: 3
      - blank: 2
tractor:
  tracks: [bg, main]
  transitions:
    - service: composite
      a: 0
      b: 1
      properties:
        width: "44"
        height: "36"
  filters:
    - service: brightness
      track: 1
      properties:
        level: "0.5"
consumer:
  service: "null"
`

func newFactory(t *testing.T) *mediagraph.Factory {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := mediagraph.NewFactory("", mediagraph.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func intp(v int) *int { return &v }

func TestParse(t *testing.T) {
	p, err := Parse([]byte(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "demo" || p.Profile != "qcif_15" {
		t.Errorf("name/profile = %q/%q", p.Name, p.Profile)
	}
	if len(p.Producers) != 2 || p.Producers[0].Service != "color:blue" || *p.Producers[0].Out != 9 {
		t.Errorf("producers = %+v", p.Producers)
	}
	if p.Producers[0].In != nil {
		t.Error("unset in should stay nil")
	}
	e := p.Playlists[0].Entries
	if len(e) != 2 || e[0].Producer != "fg" || *e[0].In != 1 || e[1].Blank != 2 {
		t.Errorf("entries = %+v", e)
	}
	tr := p.Tractor.Transitions[0]
	if tr.A != 0 || tr.B != 1 || tr.Properties["width"] != "44" {
		t.Errorf("transition = %+v", tr)
	}
	if f := p.Tractor.Filters[0]; f.Track == nil || *f.Track != 1 {
		t.Errorf("tractor filter = %+v", f)
	}
	if p.Consumer.Service != "null" {
		t.Errorf("consumer = %q", p.Consumer.Service)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := p.String(); got != "demo: 2 producers, 1 playlists, 2 tracks -> null" {
		t.Errorf("String() = %q", got)
	}

	if _, err := Parse([]byte("producers: {")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bars.yaml")
	if err := DefaultProject().Save(path); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "bars" || p.Producers[0].Service != "testpattern:bars" || *p.Producers[0].Out != 249 {
		t.Errorf("loaded %+v", p)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Project {
		return &Project{
			Producers: []ProducerSpec{{ID: "a", ServiceSpec: ServiceSpec{Service: "color"}}},
			Consumer:  ConsumerSpec{ServiceSpec: ServiceSpec{Service: "null"}},
		}
	}

	tests := []struct {
		name   string
		modify func(p *Project)
		want   string
	}{
		{"unknown profile", func(p *Project) { p.Profile = "nope" }, "profile:"},
		{"no producers", func(p *Project) { p.Producers = nil }, "at least one producer"},
		{"missing id", func(p *Project) { p.Producers[0].ID = "" }, "id is required"},
		{"reserved id", func(p *Project) { p.Producers[0].ID = OutputTractor }, "reserved"},
		{"duplicate id", func(p *Project) {
			p.Producers = append(p.Producers, ProducerSpec{ID: "a", ServiceSpec: ServiceSpec{Service: "blank"}})
		}, "already used"},
		{"missing service", func(p *Project) { p.Producers[0].Service = "" }, "service is required"},
		{"negative in", func(p *Project) { p.Producers[0].In = intp(-1) }, "must not be negative"},
		{"out before in", func(p *Project) { p.Producers[0].In, p.Producers[0].Out = intp(5), intp(2) }, "precedes"},
		{"track filter on producer", func(p *Project) {
			p.Producers[0].Filters = []FilterSpec{{ServiceSpec: ServiceSpec{Service: "volume"}, Track: intp(0)}}
		}, "only valid in a tractor"},
		{"empty playlist", func(p *Project) { p.Playlists = []PlaylistSpec{{ID: "pl"}} }, "no entries"},
		{"unknown entry", func(p *Project) {
			p.Playlists = []PlaylistSpec{{ID: "pl", Entries: []EntrySpec{{Producer: "x"}}}}
		}, "unknown producer"},
		{"producer and blank", func(p *Project) {
			p.Playlists = []PlaylistSpec{{ID: "pl", Entries: []EntrySpec{{Producer: "a", Blank: 3}}}}
		}, "exclusive"},
		{"empty entry", func(p *Project) {
			p.Playlists = []PlaylistSpec{{ID: "pl", Entries: []EntrySpec{{}}}}
		}, "positive blank"},
		{"no tracks", func(p *Project) { p.Tractor = &TractorSpec{} }, "no tracks"},
		{"unknown track", func(p *Project) { p.Tractor = &TractorSpec{Tracks: []string{"z"}} }, "unknown producer or playlist"},
		{"same transition tracks", func(p *Project) {
			p.Tractor = &TractorSpec{Tracks: []string{"a"}, Transitions: []TransitionSpec{{ServiceSpec: ServiceSpec{Service: "mix"}}}}
		}, "both track 0"},
		{"transition out of range", func(p *Project) {
			p.Tractor = &TractorSpec{Tracks: []string{"a"}, Transitions: []TransitionSpec{{ServiceSpec: ServiceSpec{Service: "mix"}, B: 3}}}
		}, "out of range"},
		{"filter track out of range", func(p *Project) {
			p.Tractor = &TractorSpec{Tracks: []string{"a"}, Filters: []FilterSpec{{ServiceSpec: ServiceSpec{Service: "volume"}, Track: intp(1)}}}
		}, "track 1 out of range"},
		{"no consumer", func(p *Project) { p.Consumer.Service = "" }, "consumer: service is required"},
		{"output without tractor", func(p *Project) { p.Output = OutputTractor }, "no tractor declared"},
		{"unknown output", func(p *Project) { p.Output = "zz" }, `unknown producer or playlist "zz"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.modify(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("Validate() = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid project: %v", err)
	}
}

func TestOutput(t *testing.T) {
	p := &Project{Producers: []ProducerSpec{{ID: "a"}, {ID: "b"}}}
	if got := p.output(); got != "b" {
		t.Errorf("output() = %q, want last producer", got)
	}
	p.Playlists = []PlaylistSpec{{ID: "pl"}}
	if got := p.output(); got != "pl" {
		t.Errorf("output() = %q, want last playlist", got)
	}
	p.Tractor = &TractorSpec{}
	if got := p.output(); got != OutputTractor {
		t.Errorf("output() = %q, want tractor", got)
	}
	p.Output = "a"
	if got := p.output(); got != "a" {
		t.Errorf("output() = %q, want explicit output", got)
	}
}

func TestBuild_Default(t *testing.T) {
	f := newFactory(t)
	g, err := DefaultProject().Build(f)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if g.Profile != f.DefaultProfile() {
		t.Error("default project should use the factory profile")
	}
	if g.Output != g.Producers["bars"] || g.Output.Length() != 250 {
		t.Errorf("output length = %d, want 250", g.Output.Length())
	}
	if g.Tractor != nil || len(g.Playlists) != 0 {
		t.Error("unexpected tractor or playlists")
	}
	if g.Consumer.State() != mediagraph.ConsumerIdle {
		t.Errorf("consumer state = %v", g.Consumer.State())
	}
}

func TestBuild_Graph(t *testing.T) {
	f := newFactory(t)
	p, err := Parse([]byte(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	g, err := p.Build(f)
	if err != nil {
		t.Fatal(err)
	}

	if g.Profile.Name() != "qcif_15" {
		t.Errorf("profile = %s", g.Profile.Name())
	}
	if g.Output != g.Tractor {
		t.Fatal("tractor should feed the consumer")
	}
	if g.Playlists["main"].Length() != 5 {
		t.Errorf("playlist length = %d, want 5", g.Playlists["main"].Length())
	}
	if g.Tractor.TrackCount() != 2 || g.Tractor.Length() != 10 {
		t.Errorf("tractor tracks %d length %d", g.Tractor.TrackCount(), g.Tractor.Length())
	}
	if n := len(g.Producers["fg"].Filters()); n != 1 {
		t.Errorf("fg filters = %d, want 1", n)
	}

	if err := g.Consumer.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := g.Consumer.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := g.Consumer.Stats().FramesDelivered; n != 10 {
		t.Errorf("delivered %d frames, want 10", n)
	}

	if err := g.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if g.Tractor.State() != mediagraph.ProducerClosed || g.Consumer.State() != mediagraph.ConsumerClosed {
		t.Error("Close() should close every service")
	}
}

func TestBuild_Errors(t *testing.T) {
	f := newFactory(t)

	tests := []struct {
		name    string
		project *Project
		want    error
	}{
		{"invalid", &Project{}, nil},
		{"unknown service", &Project{
			Producers: []ProducerSpec{{ID: "a", ServiceSpec: ServiceSpec{Service: "nope"}}},
			Consumer:  ConsumerSpec{ServiceSpec: ServiceSpec{Service: "null"}},
		}, mediagraph.ErrServiceNotFound},
		{"bad property", &Project{
			Producers: []ProducerSpec{{ID: "a", ServiceSpec: ServiceSpec{Service: "color", Properties: map[string]string{"": "x"}}}},
			Consumer:  ConsumerSpec{ServiceSpec: ServiceSpec{Service: "null"}},
		}, mediagraph.ErrInvalidName},
		{"unknown consumer", &Project{
			Producers: []ProducerSpec{{ID: "a", ServiceSpec: ServiceSpec{Service: "color"}}},
			Consumer:  ConsumerSpec{ServiceSpec: ServiceSpec{Service: "screen"}},
		}, mediagraph.ErrServiceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.project.Build(f)
			if err == nil {
				g.Close()
				t.Fatal("Build() should fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Build() = %v, want %v", err, tt.want)
			}
		})
	}
}
