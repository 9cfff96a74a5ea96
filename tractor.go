package mediagraph

import (
	"context"
	"fmt"
	"log/slog"
)

// FramePropTrack is set on tractor output to the track the image came from.
const FramePropTrack = "track"

type plantedTransition struct {
	transition *Transition
	a, b       int
}

// Tractor runs several producer tracks in lock-step and combines them into
// one virtual producer. Each pull advances every track by one frame.
//
// The output image and audio come from the highest numbered track that has
// them, after track filters and planted transitions ran. A track blended in
// as the b input of a transition is skipped. Per-track frames are available
// in Frame.Tracks. The tractor ends when every track is exhausted.
type Tractor struct {
	producerCore
	tracks       []Producer
	done         []bool
	trackFilters map[int][]*Filter
	planted      []plantedTransition
}

// NewTractor creates a tractor without tracks. profile may be nil.
func NewTractor(profile *Profile, logger *slog.Logger) *Tractor {
	t := &Tractor{trackFilters: make(map[int][]*Filter)}
	t.init(KindTractor, "tractor", profile, logger)
	return t
}

// SetTrack places producer on track index, replacing any previous producer.
func (t *Tractor) SetTrack(producer Producer, index int) error {
	if t.isClosed() {
		return ErrClosed
	}
	if producer == nil {
		return fmt.Errorf("tractor track: %w: nil producer", ErrInvalidArgument)
	}
	if producer == Producer(t) {
		return fmt.Errorf("tractor track: %w: tractor cannot contain itself", ErrInvalidArgument)
	}
	if index < 0 {
		return fmt.Errorf("tractor track: %w: %d", ErrInvalidIndex, index)
	}
	for len(t.tracks) <= index {
		t.tracks = append(t.tracks, nil)
		t.done = append(t.done, false)
	}
	t.tracks[index] = producer
	t.done[index] = false
	markConnected(producer)
	return nil
}

// AddTrack places producer on the next free track and returns its index.
func (t *Tractor) AddTrack(producer Producer) (int, error) {
	index := len(t.tracks)
	if err := t.SetTrack(producer, index); err != nil {
		return 0, err
	}
	return index, nil
}

// TrackCount returns the number of tracks.
func (t *Tractor) TrackCount() int { return len(t.tracks) }

// Track returns the producer on track index.
func (t *Tractor) Track(index int) (Producer, error) {
	if index < 0 || index >= len(t.tracks) || t.tracks[index] == nil {
		return nil, fmt.Errorf("tractor track: %w: %d", ErrInvalidIndex, index)
	}
	return t.tracks[index], nil
}

// Plant blends track b into track a with transition on every pull.
func (t *Tractor) Plant(transition *Transition, a, b int) error {
	if t.isClosed() {
		return ErrClosed
	}
	if transition == nil {
		return fmt.Errorf("tractor plant: %w: nil transition", ErrInvalidArgument)
	}
	if a < 0 || b < 0 || a == b {
		return fmt.Errorf("tractor plant: %w: a=%d b=%d", ErrInvalidIndex, a, b)
	}
	t.planted = append(t.planted, plantedTransition{transition: transition, a: a, b: b})
	return nil
}

func (t *Tractor) connectTrackFilter(index int, f *Filter) error {
	if t.isClosed() {
		return ErrClosed
	}
	if index >= len(t.tracks) {
		return fmt.Errorf("tractor filter: %w: track %d of %d", ErrInvalidIndex, index, len(t.tracks))
	}
	for track, filters := range t.trackFilters {
		for _, existing := range filters {
			if existing == f {
				return fmt.Errorf("tractor filter: %w: already on track %d", ErrInvalidArgument, track)
			}
		}
	}
	t.trackFilters[index] = append(t.trackFilters[index], f)
	return nil
}

// Length returns the longest track length, or Unbounded.
func (t *Tractor) Length() int {
	longest := 0
	for _, tr := range t.tracks {
		if tr == nil {
			continue
		}
		n := tr.Length()
		if n == Unbounded {
			return Unbounded
		}
		if n > longest {
			longest = n
		}
	}
	return longest
}

// Seek positions every track at position.
func (t *Tractor) Seek(position int) error {
	if t.isClosed() {
		return ErrClosed
	}
	if position < 0 {
		return fmt.Errorf("%w: seek to %d", ErrInvalidIndex, position)
	}
	for i, tr := range t.tracks {
		if tr == nil {
			continue
		}
		if err := tr.Seek(position); err != nil {
			return fmt.Errorf("tractor track %d: %w", i, err)
		}
		t.done[i] = false
	}
	t.position = position
	t.exhausted = false
	return nil
}

// GetFrame pulls one frame from every live track and combines them.
func (t *Tractor) GetFrame(ctx context.Context) (*Frame, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.exhausted {
		return nil, ErrEndOfStream
	}
	if len(t.tracks) == 0 {
		return nil, ErrNotConnected
	}

	frames := make([]*Frame, len(t.tracks))
	release := func() {
		for _, f := range frames {
			f.Close()
		}
	}

	live := 0
	for i, tr := range t.tracks {
		if tr == nil || t.done[i] {
			continue
		}
		f, err := tr.GetFrame(ctx)
		if IsEndOfStream(err) {
			t.done[i] = true
			continue
		}
		if err != nil {
			release()
			return nil, fmt.Errorf("tractor track %d: %w", i, err)
		}
		t.trackFilters[i] = pruneClosed(t.trackFilters[i])
		for _, flt := range t.trackFilters[i] {
			if err := flt.Process(ctx, f); err != nil {
				f.Close()
				release()
				return nil, err
			}
		}
		frames[i] = f
		live++
	}
	if live == 0 {
		t.exhausted = true
		return nil, ErrEndOfStream
	}

	// A track blended into another by a transition no longer shows itself.
	consumed := make([]bool, len(frames))
	for _, pt := range t.planted {
		if pt.a >= len(frames) || pt.b >= len(frames) {
			continue
		}
		fa, fb := frames[pt.a], frames[pt.b]
		if fa == nil || fb == nil {
			continue
		}
		if err := pt.transition.Apply(ctx, fa, fb); err != nil {
			release()
			return nil, err
		}
		consumed[pt.b] = true
	}

	out := NewFrame(t.position, t.profile)
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if f == nil || consumed[i] {
			continue
		}
		if out.Image == nil && f.Image != nil {
			out.Image = f.Image.Clone()
			out.props.SetInt(FramePropTrack, i)
		}
		if out.Audio == nil && f.Audio != nil {
			out.Audio = f.Audio.Clone()
		}
	}
	out.Tracks = frames
	t.position++

	if err := t.applyFilters(ctx, out); err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}

// Close closes the tractor. Track producers and planted transitions are
// owned by the caller.
func (t *Tractor) Close() error {
	if !t.closeCore() {
		return nil
	}
	t.tracks = nil
	t.done = nil
	t.planted = nil
	t.trackFilters = nil
	return nil
}
