package mediagraph

import (
	"context"
	"fmt"
	"os"
)

// dumpGenerator replays a frame dump file written by the dump consumer.
type dumpGenerator struct {
	path   string
	file   *os.File
	reader *DumpReader
	next   int // source position of the next record
	length int
}

func openDumpGenerator(path string) (*dumpGenerator, error) {
	g := &dumpGenerator{path: path}
	if err := g.rewind(); err != nil {
		return nil, err
	}
	n := 0
	for {
		_, err := g.reader.Next()
		if IsEndOfStream(err) {
			break
		}
		if err != nil {
			g.Close()
			return nil, err
		}
		n++
	}
	g.length = n
	if err := g.rewind(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *dumpGenerator) rewind() error {
	if g.file != nil {
		g.file.Close()
	}
	f, err := os.Open(g.path)
	if err != nil {
		return err
	}
	r, err := NewDumpReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", g.path, err)
	}
	g.file, g.reader, g.next = f, r, 0
	return nil
}

func (g *dumpGenerator) Length() int { return g.length }

func (g *dumpGenerator) Seek(pos int) error {
	if pos < g.next {
		if err := g.rewind(); err != nil {
			return err
		}
	}
	for g.next < pos {
		if _, err := g.reader.Next(); err != nil {
			if IsEndOfStream(err) {
				return nil
			}
			return err
		}
		g.next++
	}
	return nil
}

func (g *dumpGenerator) Generate(_ context.Context, pos int, frame *Frame, _ *Properties) error {
	if pos != g.next {
		if err := g.Seek(pos); err != nil {
			return err
		}
	}
	rec, err := g.reader.Next()
	if err != nil {
		return err
	}
	g.next++

	restored := rec.Frame(nil)
	for _, name := range restored.props.Names() {
		switch name {
		case FramePropPosition, FramePropTimestamp, FramePropDuration, FramePropSourcePosition:
			continue
		}
		v, _ := restored.props.Value(name)
		frame.props.SetValue(name, v)
	}
	frame.Image = restored.Image
	frame.Audio = restored.Audio
	frame.Packet = restored.Packet
	return nil
}

func (g *dumpGenerator) Close() error {
	if g.file == nil {
		return nil
	}
	err := g.file.Close()
	g.file = nil
	return err
}

func init() {
	registerBuiltin(KindProducer, "dump", func(bc *BuildContext) (Service, error) {
		if bc.Arg == "" {
			return nil, fmt.Errorf("dump producer needs a file path")
		}
		g, err := openDumpGenerator(bc.Arg)
		if err != nil {
			return nil, err
		}
		return NewClip(bc.Profile, bc.ID, g, bc.Logger), nil
	})
}
