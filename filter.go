package mediagraph

import (
	"context"
	"fmt"
	"log/slog"
)

// Processor transforms frames in place for a Filter.
type Processor interface {
	// Process modifies frame. props are the filter's properties; unset
	// parameters must fall back to defaults.
	Process(ctx context.Context, frame *Frame, props *Properties) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, frame *Frame, props *Properties) error

func (fn ProcessorFunc) Process(ctx context.Context, frame *Frame, props *Properties) error {
	return fn(ctx, frame, props)
}

// trackFilterer is implemented by sources whose inputs are addressed by index.
type trackFilterer interface {
	connectTrackFilter(index int, f *Filter) error
}

// Filter applies a per-frame transform. It is either attached to a producer
// or connected to an input of a service, in which case it is itself a frame
// source.
//
// Filter properties:
//   - "disable": when non-zero the filter passes frames through
//   - "in", "out": restrict the filter to a range of frame positions
type Filter struct {
	service
	proc     Processor
	upstream FrameSource
	index    int
}

// NewFilter creates a filter around proc.
func NewFilter(profile *Profile, svcID string, proc Processor, logger *slog.Logger) *Filter {
	f := &Filter{proc: proc}
	f.init(KindFilter, svcID, profile, logger)
	return f
}

// Processor returns the filter's transform.
func (f *Filter) Processor() Processor { return f.proc }

// Connect binds the filter to input index of src. Index 0 is the stream of a
// plain source; for a Tractor the index selects a track.
func (f *Filter) Connect(src FrameSource, index int) error {
	if f.isClosed() {
		return ErrClosed
	}
	if src == nil {
		return fmt.Errorf("filter connect: %w: nil source", ErrInvalidArgument)
	}
	if index < 0 {
		return fmt.Errorf("filter connect: %w: %d", ErrInvalidIndex, index)
	}
	if tf, ok := src.(trackFilterer); ok {
		if err := tf.connectTrackFilter(index, f); err != nil {
			return err
		}
	} else if index != 0 {
		return fmt.Errorf("filter connect: %w: %s has a single input", ErrInvalidIndex, src.Kind())
	}
	f.upstream = src
	f.index = index
	markConnected(src)
	return nil
}

// Upstream returns the connected source and input index.
func (f *Filter) Upstream() (FrameSource, int) { return f.upstream, f.index }

// GetFrame pulls from the connected source and applies the filter. Track
// filters are applied by the tractor itself, so their frames pass through.
func (f *Filter) GetFrame(ctx context.Context) (*Frame, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	if f.upstream == nil {
		return nil, ErrNotConnected
	}
	frame, err := f.upstream.GetFrame(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := f.upstream.(trackFilterer); ok {
		return frame, nil
	}
	if err := f.Process(ctx, frame); err != nil {
		frame.Close()
		return nil, err
	}
	return frame, nil
}

// Process applies the transform to frame when the filter is active for the
// frame's position.
func (f *Filter) Process(ctx context.Context, frame *Frame) error {
	if f.isClosed() {
		return ErrClosed
	}
	if !f.active(frame.Position()) {
		return nil
	}
	if err := f.proc.Process(ctx, frame, f.props); err != nil {
		return fmt.Errorf("filter %s: %w", f.svcID, err)
	}
	return nil
}

func (f *Filter) active(position int) bool {
	if f.props.GetBool("disable") {
		return false
	}
	if f.props.Has("in") && position < f.props.GetInt("in") {
		return false
	}
	if f.props.Has("out") && position > f.props.GetInt("out") {
		return false
	}
	return true
}

// Close releases the filter. The upstream source is borrowed and stays open.
func (f *Filter) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.upstream = nil
	return nil
}
