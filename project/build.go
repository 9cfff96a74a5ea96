package project

import (
	"errors"
	"fmt"

	"github.com/thesyncim/mediagraph"
)

// Graph is a built project. Close releases every service it created.
type Graph struct {
	Profile   *mediagraph.Profile
	Producers map[string]mediagraph.Producer
	Playlists map[string]*mediagraph.Playlist
	Tractor   *mediagraph.Tractor
	Consumer  *mediagraph.Consumer

	// Output is the service feeding the consumer.
	Output mediagraph.Producer

	services []mediagraph.Service
}

type inOutSetter interface {
	SetInOut(in, out int) error
}

// Build validates the project and creates its services with factory.
func (p *Project) Build(factory *mediagraph.Factory) (_ *Graph, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	profile := factory.DefaultProfile()
	if p.Profile != "" {
		if profile, err = mediagraph.LoadProfile(p.Profile); err != nil {
			return nil, err
		}
	}

	g := &Graph{
		Profile:   profile,
		Producers: make(map[string]mediagraph.Producer),
		Playlists: make(map[string]*mediagraph.Playlist),
	}
	defer func() {
		if err != nil {
			g.Close()
		}
	}()

	for _, ps := range p.Producers {
		prod, err := factory.Producer(profile, ps.Service, "")
		if err != nil {
			return nil, fmt.Errorf("producer %q: %w", ps.ID, err)
		}
		g.track(prod)
		if err := setProperties(prod, ps.Properties); err != nil {
			return nil, fmt.Errorf("producer %q: %w", ps.ID, err)
		}
		if ps.In != nil || ps.Out != nil {
			clip, ok := prod.(inOutSetter)
			if !ok {
				return nil, fmt.Errorf("producer %q: in/out: %w", ps.ID, mediagraph.ErrNotSupported)
			}
			in, out := 0, mediagraph.Unbounded
			if ps.In != nil {
				in = *ps.In
			}
			if ps.Out != nil {
				out = *ps.Out
			}
			if err := clip.SetInOut(in, out); err != nil {
				return nil, fmt.Errorf("producer %q: %w", ps.ID, err)
			}
		}
		if err := g.attachFilters(factory, prod, ps.Filters); err != nil {
			return nil, fmt.Errorf("producer %q: %w", ps.ID, err)
		}
		g.Producers[ps.ID] = prod
	}

	for _, pl := range p.Playlists {
		list := mediagraph.NewPlaylist(profile, factory.Logger())
		g.track(list)
		for i, e := range pl.Entries {
			if e.Blank > 0 {
				err = list.AppendBlank(e.Blank)
			} else {
				err = g.appendEntry(list, g.Producers[e.Producer], e)
			}
			if err != nil {
				return nil, fmt.Errorf("playlist %q entry %d: %w", pl.ID, i, err)
			}
		}
		if err := g.attachFilters(factory, list, pl.Filters); err != nil {
			return nil, fmt.Errorf("playlist %q: %w", pl.ID, err)
		}
		g.Playlists[pl.ID] = list
	}

	if ts := p.Tractor; ts != nil {
		tractor := mediagraph.NewTractor(profile, factory.Logger())
		g.track(tractor)
		for i, id := range ts.Tracks {
			if err := tractor.SetTrack(g.lookup(id), i); err != nil {
				return nil, fmt.Errorf("tractor track %d: %w", i, err)
			}
		}
		for i, tr := range ts.Transitions {
			t, err := factory.Transition(profile, tr.Service, "")
			if err != nil {
				return nil, fmt.Errorf("tractor transitions[%d]: %w", i, err)
			}
			g.track(t)
			if err := setProperties(t, tr.Properties); err != nil {
				return nil, fmt.Errorf("tractor transitions[%d]: %w", i, err)
			}
			if err := tractor.Plant(t, tr.A, tr.B); err != nil {
				return nil, fmt.Errorf("tractor transitions[%d]: %w", i, err)
			}
		}
		if err := g.attachFilters(factory, tractor, ts.Filters); err != nil {
			return nil, fmt.Errorf("tractor: %w", err)
		}
		g.Tractor = tractor
	}

	out := p.output()
	if out == OutputTractor {
		g.Output = g.Tractor
	} else {
		g.Output = g.lookup(out)
	}

	consumer, err := factory.Consumer(profile, p.Consumer.Service, p.Consumer.Arg)
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	g.track(consumer)
	if err := setProperties(consumer, p.Consumer.Properties); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := consumer.Connect(g.Output); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	g.Consumer = consumer
	return g, nil
}

func (g *Graph) track(s mediagraph.Service) { g.services = append(g.services, s) }

func (g *Graph) lookup(id string) mediagraph.Producer {
	if p, ok := g.Producers[id]; ok {
		return p
	}
	if pl, ok := g.Playlists[id]; ok {
		return pl
	}
	return nil
}

func (g *Graph) appendEntry(list *mediagraph.Playlist, prod mediagraph.Producer, e EntrySpec) error {
	if e.In == nil && e.Out == nil {
		return list.Append(prod)
	}
	in, out := 0, mediagraph.Unbounded
	if e.In != nil {
		in = *e.In
	}
	if e.Out != nil {
		out = *e.Out
	}
	return list.AppendIO(prod, in, out)
}

func (g *Graph) attachFilters(factory *mediagraph.Factory, target mediagraph.Producer, specs []FilterSpec) error {
	for i, fs := range specs {
		f, err := factory.Filter(g.Profile, fs.Service, "")
		if err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
		g.track(f)
		if err := setProperties(f, fs.Properties); err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
		if fs.Track != nil {
			err = f.Connect(target, *fs.Track)
		} else {
			err = target.Attach(f)
		}
		if err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
	}
	return nil
}

func setProperties(s mediagraph.Service, props map[string]string) error {
	for name, value := range props {
		if err := s.Properties().Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the consumer and closes every service in reverse creation
// order.
func (g *Graph) Close() error {
	var errs []error
	for i := len(g.services) - 1; i >= 0; i-- {
		errs = append(errs, g.services[i].Close())
	}
	g.services = nil
	return errors.Join(errs...)
}
