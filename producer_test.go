package mediagraph

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
)

func testProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := LoadProfile("qcif_15")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// countGen stamps each frame with its source position.
func countGen() Generator {
	return GeneratorFunc(func(_ context.Context, pos int, frame *Frame, _ *Properties) error {
		frame.Properties().SetInt("value", pos)
		return nil
	})
}

// newTestClip returns a clip of length frames, or an endless clip for
// Unbounded.
func newTestClip(t *testing.T, length int) *Clip {
	t.Helper()
	c := NewClip(testProfile(t), "count", countGen(), nil)
	if length != Unbounded {
		c.Properties().SetInt("length", length)
	}
	return c
}

// pullValues drains src and returns the "value" stamps.
func pullValues(t *testing.T, src FrameSource, max int) []int {
	t.Helper()
	var values []int
	for i := 0; i < max; i++ {
		f, err := src.GetFrame(context.Background())
		if IsEndOfStream(err) {
			return values
		}
		if err != nil {
			t.Fatalf("GetFrame() error = %v", err)
		}
		values = append(values, f.Properties().GetInt("value"))
		f.Close()
	}
	return values
}

func TestClip_EndOfStreamIsFinal(t *testing.T) {
	c := newTestClip(t, 3)
	if got := pullValues(t, c, 10); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("values = %v, want [0 1 2]", got)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.GetFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("pull %d after end = %v, want ErrEndOfStream", i, err)
		}
	}
	// Raising the length does not resurrect an exhausted clip.
	c.Properties().SetInt("length", 10)
	if _, err := c.GetFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("pull after length change = %v, want ErrEndOfStream", err)
	}
	if err := c.Seek(1); err != nil {
		t.Fatal(err)
	}
	if got := pullValues(t, c, 3); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("values after Seek(1) = %v, want [1 2 3]", got)
	}
}

func TestClip_InOut(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		in, out int
		want    []int
		wantLen int
	}{
		{"trim both", 10, 2, 4, []int{2, 3, 4}, 3},
		{"out past end", 5, 3, 20, []int{3, 4}, 2},
		{"endless", Unbounded, 5, 6, []int{5, 6}, 2},
		{"endless open out", Unbounded, 7, Unbounded, []int{7, 8, 9}, Unbounded},
		{"single frame", 10, 4, 4, []int{4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClip(t, tt.length)
			if err := c.SetInOut(tt.in, tt.out); err != nil {
				t.Fatal(err)
			}
			if got := c.Length(); got != tt.wantLen {
				t.Errorf("Length() = %d, want %d", got, tt.wantLen)
			}
			if got := pullValues(t, c, 3); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("values = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClip_SetInOutInvalid(t *testing.T) {
	c := newTestClip(t, 10)
	if err := c.SetInOut(-1, 3); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("SetInOut(-1, 3) = %v, want ErrInvalidIndex", err)
	}
	if err := c.SetInOut(5, 2); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("SetInOut(5, 2) = %v, want ErrInvalidIndex", err)
	}
	if err := c.Seek(-1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("Seek(-1) = %v, want ErrInvalidIndex", err)
	}
}

func TestClip_FramePositions(t *testing.T) {
	c := newTestClip(t, 10)
	c.SetInOut(5, 9)
	f, err := c.GetFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Position() != 0 {
		t.Errorf("Position() = %d, want 0", f.Position())
	}
	if got := f.Properties().GetInt(FramePropSourcePosition); got != 5 {
		t.Errorf("source position = %d, want 5", got)
	}
	if got := f.Properties().GetString(FramePropSource, ""); got != "count" {
		t.Errorf("source = %q, want count", got)
	}
	if c.Position() != 1 {
		t.Errorf("cursor = %d, want 1", c.Position())
	}
}

func TestClip_FilterOrder(t *testing.T) {
	var order []string
	mark := func(name string) *Filter {
		return NewFilter(nil, name, ProcessorFunc(func(_ context.Context, f *Frame, _ *Properties) error {
			order = append(order, name)
			return nil
		}), nil)
	}
	c := newTestClip(t, 5)
	a, b, d := mark("a"), mark("b"), mark("c")
	for _, f := range []*Filter{a, b, d} {
		if err := c.Attach(f); err != nil {
			t.Fatal(err)
		}
	}
	if c.State() != ProducerAttached {
		t.Errorf("State() = %v, want attached", c.State())
	}
	if err := c.Detach(b); err != nil {
		t.Fatal(err)
	}
	if err := c.Detach(b); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("second Detach = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.GetFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"a", "c"}) {
		t.Errorf("filter order = %v, want [a c]", order)
	}
	if err := c.Attach(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Attach(nil) = %v, want ErrInvalidArgument", err)
	}
}

func TestClip_GeneratorErrors(t *testing.T) {
	boom := errors.New("boom")
	c := NewClip(nil, "bad", GeneratorFunc(func(_ context.Context, pos int, _ *Frame, _ *Properties) error {
		if pos == 1 {
			return ErrEndOfStream
		}
		if pos == 0 {
			return nil
		}
		return boom
	}), nil)

	if _, err := c.GetFrame(context.Background()); err != nil {
		t.Fatalf("first pull = %v", err)
	}
	if _, err := c.GetFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("second pull = %v, want ErrEndOfStream", err)
	}

	c.Seek(2)
	if _, err := c.GetFrame(context.Background()); !errors.Is(err, boom) {
		t.Errorf("pull at 2 = %v, want boom", err)
	}
}

type closingGen struct {
	closed bool
}

func (g *closingGen) Generate(context.Context, int, *Frame, *Properties) error { return nil }
func (g *closingGen) Close() error                                             { g.closed = true; return io.ErrClosedPipe }

func TestClip_Close(t *testing.T) {
	gen := &closingGen{}
	c := NewClip(nil, "res", gen, nil)
	if err := c.Close(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Close() = %v, want generator error", err)
	}
	if !gen.closed {
		t.Error("generator was not closed")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if c.State() != ProducerClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
	if _, err := c.GetFrame(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("GetFrame after Close = %v, want ErrClosed", err)
	}
	if err := c.Attach(NewFilter(nil, "x", nil, nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Attach after Close = %v, want ErrClosed", err)
	}
}

func TestClip_ContextCanceled(t *testing.T) {
	c := newTestClip(t, Unbounded)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("GetFrame(canceled) = %v, want context.Canceled", err)
	}
	if c.Position() != 0 {
		t.Error("canceled pull advanced the cursor")
	}
}

func TestService_Identity(t *testing.T) {
	a, b := newTestClip(t, 1), newTestClip(t, 1)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs %q and %q should be unique and non-empty", a.ID(), b.ID())
	}
	if a.Kind() != KindProducer {
		t.Errorf("Kind() = %v", a.Kind())
	}
	if a.ServiceID() != "count" || a.Properties().GetString("service", "") != "count" {
		t.Error("service identifier not recorded")
	}
	if a.Profile() == nil || a.Profile().Name() != "qcif_15" {
		t.Error("Profile() not retained")
	}
}

func TestServiceKind(t *testing.T) {
	tests := []struct {
		kind        ServiceKind
		name        string
		registrable bool
		produces    bool
	}{
		{KindProducer, "producer", true, true},
		{KindFilter, "filter", true, true},
		{KindTransition, "transition", true, true},
		{KindConsumer, "consumer", true, false},
		{KindPlaylist, "playlist", false, true},
		{KindTractor, "tractor", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.String() != tt.name || tt.kind.Registrable() != tt.registrable || tt.kind.Produces() != tt.produces {
				t.Errorf("%v: registrable=%v produces=%v", tt.kind, tt.kind.Registrable(), tt.kind.Produces())
			}
			if k, ok := ParseServiceKind(tt.name); !ok || k != tt.kind {
				t.Errorf("ParseServiceKind(%q) = %v, %v", tt.name, k, ok)
			}
		})
	}
	if _, ok := ParseServiceKind("bogus"); ok {
		t.Error("ParseServiceKind(bogus) should fail")
	}
}
