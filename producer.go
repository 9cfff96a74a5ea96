package mediagraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// Unbounded is the length of a producer with no end.
const Unbounded = -1

// ProducerState represents the lifecycle state of a producer.
type ProducerState int32

const (
	ProducerUnattached ProducerState = iota // Freshly constructed
	ProducerAttached                        // At least one filter attached
	ProducerConnected                       // Wired into a playlist, tractor, filter, transition or consumer
	ProducerClosed                          // Closed
)

func (s ProducerState) String() string {
	switch s {
	case ProducerUnattached:
		return "unattached"
	case ProducerAttached:
		return "attached"
	case ProducerConnected:
		return "connected"
	case ProducerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Producer is a source of sequential frames with an attachable filter chain.
type Producer interface {
	FrameSource

	// Attach appends a filter applied to every frame pulled afterwards.
	Attach(f *Filter) error

	// Detach removes a filter, keeping the order of the others.
	Detach(f *Filter) error

	// Filters returns the attached filters in application order.
	Filters() []*Filter

	// Seek moves the cursor to position and clears end of stream.
	Seek(position int) error

	// Position returns the cursor.
	Position() int

	// Length returns the number of frames, or Unbounded.
	Length() int

	// State returns the lifecycle state.
	State() ProducerState
}

// producerCore carries the cursor, filter chain and state shared by clips,
// playlists and tractors.
type producerCore struct {
	service
	position  int
	exhausted bool
	filters   []*Filter
	state     atomic.Int32
}

func (p *producerCore) State() ProducerState { return ProducerState(p.state.Load()) }
func (p *producerCore) Position() int        { return p.position }

func (p *producerCore) markConnected() {
	if p.State() != ProducerClosed {
		p.state.Store(int32(ProducerConnected))
	}
}

func (p *producerCore) Attach(f *Filter) error {
	if p.isClosed() {
		return ErrClosed
	}
	if f == nil {
		return fmt.Errorf("attach: %w: nil filter", ErrInvalidArgument)
	}
	p.filters = append(p.filters, f)
	p.state.CompareAndSwap(int32(ProducerUnattached), int32(ProducerAttached))
	return nil
}

func (p *producerCore) Detach(f *Filter) error {
	for i, existing := range p.filters {
		if existing == f {
			p.filters = append(p.filters[:i:i], p.filters[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("detach: %w: filter not attached", ErrInvalidArgument)
}

func (p *producerCore) Filters() []*Filter {
	out := make([]*Filter, len(p.filters))
	copy(out, p.filters)
	return out
}

// applyFilters runs the attached filters in order. Closed filters are
// detached on the way.
func (p *producerCore) applyFilters(ctx context.Context, frame *Frame) error {
	p.filters = pruneClosed(p.filters)
	for _, f := range p.filters {
		if err := f.Process(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

// pruneClosed drops closed filters, reusing the backing array when nothing
// was closed.
func pruneClosed(filters []*Filter) []*Filter {
	for i, f := range filters {
		if !f.isClosed() {
			continue
		}
		live := append([]*Filter(nil), filters[:i]...)
		for _, g := range filters[i+1:] {
			if !g.isClosed() {
				live = append(live, g)
			}
		}
		return live
	}
	return filters
}

func (p *producerCore) closeCore() bool {
	if p.closed.Swap(true) {
		return false
	}
	p.state.Store(int32(ProducerClosed))
	return true
}

// Generator renders the frames of a Clip.
type Generator interface {
	// Generate fills frame for source position pos. props are the
	// producer's properties. Returning ErrEndOfStream ends the clip.
	Generate(ctx context.Context, pos int, frame *Frame, props *Properties) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, pos int, frame *Frame, props *Properties) error

func (fn GeneratorFunc) Generate(ctx context.Context, pos int, frame *Frame, props *Properties) error {
	return fn(ctx, pos, frame, props)
}

// lengther is implemented by generators with a natural length.
type lengther interface {
	Length() int
}

// Clip is a producer backed by a Generator. Its timeline can be trimmed
// with the "in", "out" and "length" properties.
type Clip struct {
	producerCore
	gen Generator
}

// NewClip creates a clip producer.
func NewClip(profile *Profile, svcID string, gen Generator, logger *slog.Logger) *Clip {
	c := &Clip{gen: gen}
	c.init(KindProducer, svcID, profile, logger)
	return c
}

// Generator returns the clip's frame generator.
func (c *Clip) Generator() Generator { return c.gen }

// bounds returns the trimmed source range. out is Unbounded for endless clips.
func (c *Clip) bounds() (in, out int) {
	natural := Unbounded
	if l, ok := c.gen.(lengther); ok {
		natural = l.Length()
	}
	if c.props.Has("length") {
		natural = c.props.GetInt("length")
	}
	in = c.props.GetInt("in")
	if in < 0 {
		in = 0
	}
	out = Unbounded
	if natural != Unbounded {
		out = natural - 1
	}
	if c.props.Has("out") {
		o := c.props.GetInt("out")
		if out == Unbounded || o < out {
			out = o
		}
	}
	return in, out
}

// Length returns out-in+1, or Unbounded.
func (c *Clip) Length() int {
	in, out := c.bounds()
	if out == Unbounded {
		return Unbounded
	}
	if out < in {
		return 0
	}
	return out - in + 1
}

// SetInOut trims the clip to the inclusive source range [in, out].
func (c *Clip) SetInOut(in, out int) error {
	if in < 0 || (out != Unbounded && out < in) {
		return fmt.Errorf("%w: in=%d out=%d", ErrInvalidIndex, in, out)
	}
	c.props.SetInt("in", in)
	if out == Unbounded {
		c.props.Delete("out")
	} else {
		c.props.SetInt("out", out)
	}
	return nil
}

// Seek moves the cursor. Seeking is the only way to leave end of stream.
func (c *Clip) Seek(position int) error {
	if c.isClosed() {
		return ErrClosed
	}
	if position < 0 {
		return fmt.Errorf("%w: seek to %d", ErrInvalidIndex, position)
	}
	if s, ok := c.gen.(interface{ Seek(int) error }); ok {
		in, _ := c.bounds()
		if err := s.Seek(in + position); err != nil {
			return err
		}
	}
	c.position = position
	c.exhausted = false
	return nil
}

// GetFrame renders the frame at the cursor and advances.
func (c *Clip) GetFrame(ctx context.Context) (*Frame, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.exhausted {
		return nil, ErrEndOfStream
	}

	in, out := c.bounds()
	src := in + c.position
	if out != Unbounded && src > out {
		c.exhausted = true
		return nil, ErrEndOfStream
	}

	frame := NewFrame(c.position, c.profile)
	frame.props.Set(FramePropSource, c.svcID)
	frame.props.SetInt(FramePropSourcePosition, src)
	if err := c.gen.Generate(ctx, src, frame, c.props); err != nil {
		if IsEndOfStream(err) {
			c.exhausted = true
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%s: frame %d: %w", c.svcID, src, err)
	}
	if err := c.applyFilters(ctx, frame); err != nil {
		frame.Close()
		return nil, err
	}
	c.position++
	return frame, nil
}

// Close releases the generator when it holds resources.
func (c *Clip) Close() error {
	if !c.closeCore() {
		return nil
	}
	c.logger.Debug("producer closed", "position", c.position)
	if closer, ok := c.gen.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// closeAll closes every service, joining the errors.
func closeAll[S Service](services []S) error {
	var errs []error
	for _, s := range services {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
