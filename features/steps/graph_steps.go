//go:build integration

package steps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/thesyncim/mediagraph"
)

type graphContext struct {
	factory   *mediagraph.Factory
	producers map[string]mediagraph.Producer
	frames    []*mediagraph.Frame
	lastErr   error
}

// SharedGraphContext is reset after each scenario.
var SharedGraphContext = &graphContext{}

func InitializeGraphScenario(ctx *godog.ScenarioContext) {
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		SharedGraphContext.close()
		SharedGraphContext = &graphContext{}
		return c, nil
	})

	ctx.Step(`^the built-in services$`, func() error { return SharedGraphContext.theBuiltInServices() })
	ctx.Step(`^a "([^"]*)" producer named "([^"]*)"$`, func(svc, name string) error {
		return SharedGraphContext.aProducerNamed(svc, name)
	})
	ctx.Step(`^a playlist "([^"]*)" of:$`, func(name string, table *godog.Table) error {
		return SharedGraphContext.aPlaylistOf(name, table)
	})
	ctx.Step(`^a tractor "([^"]*)" with tracks "([^"]*)"$`, func(name, tracks string) error {
		return SharedGraphContext.aTractorWithTracks(name, tracks)
	})
	ctx.Step(`^I seek "([^"]*)" to (\d+)$`, func(name string, pos int) error {
		return SharedGraphContext.iSeekTo(name, pos)
	})
	ctx.Step(`^I pull every frame from "([^"]*)"$`, func(name string) error {
		return SharedGraphContext.iPullEveryFrameFrom(name)
	})
	ctx.Step(`^I create a "([^"]*)" filter$`, func(id string) error {
		return SharedGraphContext.iCreateAFilter(id)
	})
	ctx.Step(`^I receive (\d+) frames$`, func(n int) error { return SharedGraphContext.iReceiveFrames(n) })
	ctx.Step(`^frame (\d+) has count (\d+)$`, func(i, count int) error {
		return SharedGraphContext.frameHasCount(i, count)
	})
	ctx.Step(`^frame (\d+) is blank$`, func(i int) error { return SharedGraphContext.frameIsBlank(i) })
	ctx.Step(`^the error is a lookup error$`, func() error { return SharedGraphContext.theErrorIsALookupError() })
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (g *graphContext) theBuiltInServices() error {
	f, err := mediagraph.NewFactory("", mediagraph.WithLogger(quietLogger()))
	if err != nil {
		return err
	}
	g.factory = f
	g.producers = make(map[string]mediagraph.Producer)
	return nil
}

func (g *graphContext) aProducerNamed(svc, name string) error {
	p, err := g.factory.Producer(nil, svc, "")
	if err != nil {
		return err
	}
	g.producers[name] = p
	return nil
}

func (g *graphContext) lookup(name string) (mediagraph.Producer, error) {
	p, ok := g.producers[name]
	if !ok {
		return nil, fmt.Errorf("no producer named %q", name)
	}
	return p, nil
}

func (g *graphContext) aPlaylistOf(name string, table *godog.Table) error {
	list := mediagraph.NewPlaylist(g.factory.DefaultProfile(), quietLogger())
	for _, row := range table.Rows[1:] {
		entry, in, out := row.Cells[0].Value, row.Cells[1].Value, row.Cells[2].Value
		if entry == "blank" {
			n, err := strconv.Atoi(in)
			if err != nil {
				return fmt.Errorf("blank length %q: %w", in, err)
			}
			if err := list.AppendBlank(n); err != nil {
				return err
			}
			continue
		}
		prod, err := g.lookup(entry)
		if err != nil {
			return err
		}
		if in == "" && out == "" {
			err = list.Append(prod)
		} else {
			var i, o int
			if i, err = strconv.Atoi(in); err != nil {
				return err
			}
			if o, err = strconv.Atoi(out); err != nil {
				return err
			}
			err = list.AppendIO(prod, i, o)
		}
		if err != nil {
			return err
		}
	}
	g.producers[name] = list
	return nil
}

func (g *graphContext) aTractorWithTracks(name, tracks string) error {
	tractor := mediagraph.NewTractor(g.factory.DefaultProfile(), quietLogger())
	for _, id := range strings.Split(tracks, ",") {
		prod, err := g.lookup(strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if _, err := tractor.AddTrack(prod); err != nil {
			return err
		}
	}
	g.producers[name] = tractor
	return nil
}

func (g *graphContext) iSeekTo(name string, pos int) error {
	p, err := g.lookup(name)
	if err != nil {
		return err
	}
	return p.Seek(pos)
}

func (g *graphContext) iPullEveryFrameFrom(name string) error {
	p, err := g.lookup(name)
	if err != nil {
		return err
	}
	for {
		frame, err := p.GetFrame(context.Background())
		if mediagraph.IsEndOfStream(err) {
			return nil
		}
		if err != nil {
			return err
		}
		g.frames = append(g.frames, frame)
		if len(g.frames) > 10000 {
			return fmt.Errorf("%q did not end", name)
		}
	}
}

func (g *graphContext) iCreateAFilter(id string) error {
	_, g.lastErr = g.factory.Filter(nil, id, "")
	return nil
}

func (g *graphContext) iReceiveFrames(n int) error {
	if len(g.frames) != n {
		return fmt.Errorf("received %d frames, expected %d", len(g.frames), n)
	}
	return nil
}

func (g *graphContext) frame(i int) (*mediagraph.Frame, error) {
	if i >= len(g.frames) {
		return nil, fmt.Errorf("only %d frames received", len(g.frames))
	}
	return g.frames[i], nil
}

func (g *graphContext) frameHasCount(i, count int) error {
	f, err := g.frame(i)
	if err != nil {
		return err
	}
	if got := f.Properties().GetInt("count"); got != count {
		return fmt.Errorf("frame %d has count %d, expected %d", i, got, count)
	}
	return nil
}

func (g *graphContext) frameIsBlank(i int) error {
	f, err := g.frame(i)
	if err != nil {
		return err
	}
	if !f.Properties().GetBool(mediagraph.FramePropBlank) {
		return fmt.Errorf("frame %d is not blank", i)
	}
	return nil
}

func (g *graphContext) theErrorIsALookupError() error {
	if g.lastErr == nil {
		return fmt.Errorf("expected an error")
	}
	if kind := mediagraph.KindOf(g.lastErr); kind != mediagraph.KindLookup {
		return fmt.Errorf("error %v is a %v error, expected lookup", g.lastErr, kind)
	}
	return nil
}

func (g *graphContext) close() {
	for _, f := range g.frames {
		f.Close()
	}
	for _, p := range g.producers {
		p.Close()
	}
	if g.factory != nil {
		g.factory.Close()
	}
}
