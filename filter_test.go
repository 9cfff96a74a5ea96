package mediagraph

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// addFilter adds n to each frame's "value".
func addFilter(n int) *Filter {
	return NewFilter(nil, "add", ProcessorFunc(func(_ context.Context, f *Frame, _ *Properties) error {
		f.Properties().SetInt("value", f.Properties().GetInt("value")+n)
		return nil
	}), nil)
}

func TestFilter_ConnectedSource(t *testing.T) {
	c := newTestClip(t, 3)
	f := addFilter(100)
	if err := f.Connect(c, 0); err != nil {
		t.Fatal(err)
	}
	if c.State() != ProducerConnected {
		t.Errorf("upstream State() = %v, want connected", c.State())
	}
	if got := pullValues(t, f, 10); !reflect.DeepEqual(got, []int{100, 101, 102}) {
		t.Errorf("values = %v, want [100 101 102]", got)
	}
	if _, err := f.GetFrame(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("pull after end = %v, want ErrEndOfStream", err)
	}
	src, idx := f.Upstream()
	if src != FrameSource(c) || idx != 0 {
		t.Errorf("Upstream() = %v, %d", src, idx)
	}
}

func TestFilter_ConnectErrors(t *testing.T) {
	c := newTestClip(t, 3)
	tests := []struct {
		name  string
		src   FrameSource
		index int
		want  error
	}{
		{"nil source", nil, 0, ErrInvalidArgument},
		{"negative index", c, -1, ErrInvalidIndex},
		{"single input", c, 1, ErrInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := addFilter(1).Connect(tt.src, tt.index); !errors.Is(err, tt.want) {
				t.Errorf("Connect() = %v, want %v", err, tt.want)
			}
		})
	}

	f := addFilter(1)
	if _, err := f.GetFrame(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("unconnected GetFrame = %v, want ErrNotConnected", err)
	}
	f.Close()
	if err := f.Connect(c, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestFilter_ActiveRange(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
		want  []int
	}{
		{"always", nil, []int{10, 11, 12, 13}},
		{"disabled", map[string]string{"disable": "1"}, []int{0, 1, 2, 3}},
		{"in", map[string]string{"in": "2"}, []int{0, 1, 12, 13}},
		{"out", map[string]string{"out": "1"}, []int{10, 11, 2, 3}},
		{"in and out", map[string]string{"in": "1", "out": "2"}, []int{0, 11, 12, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClip(t, 4)
			f := addFilter(10)
			for k, v := range tt.props {
				f.Properties().Set(k, v)
			}
			c.Attach(f)
			if got := pullValues(t, c, 10); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("values = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_ProcessError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFilter(nil, "fail", ProcessorFunc(func(context.Context, *Frame, *Properties) error { return boom }), nil)
	c := newTestClip(t, 3)
	if err := f.Connect(c, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.GetFrame(context.Background()); !errors.Is(err, boom) {
		t.Errorf("GetFrame() = %v, want boom", err)
	}
}

func TestFilter_CloseDetaches(t *testing.T) {
	c := newTestClip(t, Unbounded)
	f := addFilter(100)
	if err := c.Attach(f); err != nil {
		t.Fatal(err)
	}
	if got := pullValues(t, c, 1); !reflect.DeepEqual(got, []int{100}) {
		t.Fatalf("filtered values = %v, want [100]", got)
	}

	f.Close()
	if got := pullValues(t, c, 3); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("values after Close = %v, want [1 2 3]", got)
	}
	if n := len(c.Filters()); n != 0 {
		t.Errorf("%d filters still attached", n)
	}
}

func TestClip_FilterErrorKeepsPosition(t *testing.T) {
	boom := errors.New("boom")
	c := newTestClip(t, 3)
	failing := NewFilter(nil, "fail", ProcessorFunc(func(context.Context, *Frame, *Properties) error {
		return boom
	}), nil)
	c.Attach(failing)

	for i := 0; i < 2; i++ {
		if _, err := c.GetFrame(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("GetFrame() = %v, want boom", err)
		}
	}
	if c.Position() != 0 {
		t.Errorf("Position() = %d after failed pulls, want 0", c.Position())
	}

	c.Detach(failing)
	if got := pullValues(t, c, 5); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("values = %v, want [0 1 2]", got)
	}
}
