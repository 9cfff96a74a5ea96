package mediagraph

import (
	"context"
	"fmt"
	"log/slog"
)

// Blender combines two frames for a Transition.
type Blender interface {
	// Blend writes the combination of a and b into a. progress runs from 0
	// (all a) to 1 (all b).
	Blend(ctx context.Context, a, b *Frame, progress float64, props *Properties) error
}

// BlenderFunc adapts a function to the Blender interface.
type BlenderFunc func(ctx context.Context, a, b *Frame, progress float64, props *Properties) error

func (fn BlenderFunc) Blend(ctx context.Context, a, b *Frame, progress float64, props *Properties) error {
	return fn(ctx, a, b, progress, props)
}

// Transition blends frames pulled from two sources at the same position.
//
// Transition properties:
//   - "mix": fixed progress in [0, 1]
//   - "in", "out": frame range over which progress ramps from 0 to 1
//   - "reverse": when non-zero progress runs from 1 to 0
//
// Without "mix" or a valid range progress is 0.5.
type Transition struct {
	service
	blender  Blender
	a, b     FrameSource
	position int
}

// NewTransition creates a transition around blender.
func NewTransition(profile *Profile, svcID string, blender Blender, logger *slog.Logger) *Transition {
	t := &Transition{blender: blender}
	t.init(KindTransition, svcID, profile, logger)
	return t
}

// Connect binds a (the base) and b (the overlay) as inputs.
func (t *Transition) Connect(a, b FrameSource) error {
	if t.isClosed() {
		return ErrClosed
	}
	if a == nil || b == nil {
		return fmt.Errorf("transition connect: %w: nil source", ErrInvalidArgument)
	}
	t.a, t.b = a, b
	t.position = 0
	markConnected(a)
	markConnected(b)
	return nil
}

// Inputs returns the connected sources.
func (t *Transition) Inputs() (a, b FrameSource) { return t.a, t.b }

// Progress returns the blend progress for position.
func (t *Transition) Progress(position int) float64 {
	var p float64
	switch {
	case t.props.Has("mix"):
		p = t.props.GetDouble("mix")
	case t.props.Has("in") && t.props.Has("out") && t.props.GetInt("out") > t.props.GetInt("in"):
		in, out := t.props.GetInt("in"), t.props.GetInt("out")
		p = float64(position-in) / float64(out-in)
	default:
		p = 0.5
	}
	p = clamp01(p)
	if t.props.GetBool("reverse") {
		p = 1 - p
	}
	return p
}

// GetFrame pulls one frame from each input and blends b into a. If either
// input is exhausted the transition is exhausted.
func (t *Transition) GetFrame(ctx context.Context) (*Frame, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	if t.a == nil || t.b == nil {
		return nil, ErrNotConnected
	}
	fa, err := t.a.GetFrame(ctx)
	if err != nil {
		return nil, err
	}
	fb, err := t.b.GetFrame(ctx)
	if err != nil {
		fa.Close()
		return nil, err
	}
	defer fb.Close()

	if err := t.Apply(ctx, fa, fb); err != nil {
		fa.Close()
		return nil, err
	}
	fa.SetPosition(t.position, t.profile)
	t.position++
	return fa, nil
}

// Apply blends b into a using the progress at a's position. Tractors call it
// for planted transitions.
func (t *Transition) Apply(ctx context.Context, a, b *Frame) error {
	if t.isClosed() {
		return ErrClosed
	}
	if err := t.blender.Blend(ctx, a, b, t.Progress(a.Position()), t.props); err != nil {
		return fmt.Errorf("transition %s: %w", t.svcID, err)
	}
	return nil
}

// Close releases the transition. Inputs are borrowed and stay open.
func (t *Transition) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.a, t.b = nil, nil
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
