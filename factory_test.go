package mediagraph

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFactory(t *testing.T, opts ...FactoryOption) *Factory {
	t.Helper()
	f, err := NewFactory("", append([]FactoryOption{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFactory_EmbeddedServices(t *testing.T) {
	f := newTestFactory(t)
	repo := f.Repository()

	tests := []struct {
		kind ServiceKind
		want []string
	}{
		{KindProducer, []string{"blank", "color", "count", "dump", "noise", "rtmp", "testpattern", "tone"}},
		{KindFilter, []string{"brightness", "crop", "greyscale", "resize", "volume"}},
		{KindTransition, []string{"composite", "luma", "mix"}},
		{KindConsumer, []string{"dump", "null", "rtp", "webrtc", "ws"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := repo.IDs(tt.kind); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("IDs() = %v, want %v", got, tt.want)
			}
		})
	}
	if f.DefaultProfile().Name() != DefaultProfileName {
		t.Errorf("DefaultProfile() = %s", f.DefaultProfile().Name())
	}
}

func TestFactory_Create(t *testing.T) {
	f := newTestFactory(t)

	p, err := f.Producer(nil, "color:red", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Properties().GetString("resource", ""); got != "red" {
		t.Errorf("resource = %q, want red", got)
	}
	if p.Profile() != f.DefaultProfile() {
		t.Error("nil profile should select the factory default")
	}

	// Descriptor defaults fill unset parameters.
	tone, err := f.Producer(nil, "tone", "")
	if err != nil {
		t.Fatal(err)
	}
	if tone.Properties().GetDouble("frequency") != 1000 || tone.Properties().GetInt("channels") != 2 {
		t.Errorf("tone defaults = %v", tone.Properties().Names())
	}
	flt, err := f.Filter(nil, "brightness", "")
	if err != nil {
		t.Fatal(err)
	}
	if flt.Properties().GetDouble("level") != 1 {
		t.Errorf("brightness level = %v, want 1", flt.Properties().GetDouble("level"))
	}

	// Each call builds a fresh instance.
	other, _ := f.Filter(nil, "brightness", "")
	if other == flt || other.ID() == flt.ID() {
		t.Error("factory returned a shared instance")
	}

	qcif := testProfile(t)
	tr, err := f.Transition(qcif, "luma", "")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Profile() != qcif {
		t.Error("explicit profile not used")
	}
	if c, err := f.Consumer(nil, "null", ""); err != nil || c.ServiceID() != "null" {
		t.Errorf("Consumer(null) = %v, %v", c, err)
	}
}

func TestFactory_CreateErrors(t *testing.T) {
	f := newTestFactory(t)
	tests := []struct {
		name string
		err  func() error
		want error
	}{
		{"unknown producer", func() error { _, err := f.Producer(nil, "nope", ""); return err }, ErrServiceNotFound},
		{"wrong kind", func() error { _, err := f.Filter(nil, "color", ""); return err }, ErrServiceNotFound},
		{"bad argument", func() error { _, err := f.Producer(nil, "color", "notacolour"); return err }, ErrConstruction},
		{"bad length", func() error { _, err := f.Producer(nil, "blank:-3", ""); return err }, ErrConstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.err(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	f.Close()
	if _, err := f.Producer(nil, "color", ""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Producer after Close = %v, want ErrNotInitialized", err)
	}
	if f.Repository() != nil {
		t.Error("Repository() after Close should be nil")
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestFactory_Directory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("video.yml", `
type: producer
identifier: solid
builtin: color
parameters:
  - identifier: length
    type: integer
    default: "12"
---
type: producer
identifier: bad:name
`)
	write("broken.yaml", "type: [unclosed\n")
	write("notes.txt", "ignored")
	write("native.yml", `
type: filter
identifier: missing
library: libdoesnotexist.so
symbol: process
`)

	f, err := NewFactory(dir, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.Repository().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	p, err := f.Producer(nil, "solid", "blue")
	if err != nil {
		t.Fatal(err)
	}
	if p.Length() != 12 {
		t.Errorf("Length() = %d, want default 12", p.Length())
	}
	d, err := f.Repository().Metadata(KindProducer, "solid")
	if err != nil || d.Source() != "video.yml" {
		t.Errorf("Metadata() = %+v, %v", d, err)
	}
}

func TestResolveLibrary(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "libfx.so"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "libdir.so"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
		lib  string
		want string
	}{
		{"found in dir", dir, "libfx.so", filepath.Join(dir, "libfx.so")},
		{"missing from dir", dir, "libm.so.6", "libm.so.6"},
		{"directory entry", dir, "libdir.so", "libdir.so"},
		{"no dir", "", "libfx.so", "libfx.so"},
		{"path kept", dir, filepath.Join("sub", "libfx.so"), filepath.Join("sub", "libfx.so")},
		{"absolute kept", dir, "/usr/lib/libfx.so", "/usr/lib/libfx.so"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveLibrary(tt.dir, tt.lib); got != tt.want {
				t.Errorf("resolveLibrary(%q, %q) = %q, want %q", tt.dir, tt.lib, got, tt.want)
			}
		})
	}
}

func TestFactory_InitErrors(t *testing.T) {
	empty := t.TempDir()
	file := filepath.Join(empty, "file.yml")
	os.WriteFile(file, []byte("type: producer\n"), 0o644)

	tests := []struct {
		name string
		dir  string
	}{
		{"missing directory", filepath.Join(empty, "nope")},
		{"not a directory", file},
		{"no usable descriptors", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(tt.dir, WithLogger(quietLogger()))
			if !errors.Is(err, ErrRepositoryInit) {
				t.Errorf("NewFactory() = %v, want ErrRepositoryInit", err)
			}
			if KindOf(err) != KindInitialization {
				t.Errorf("KindOf() = %v, want initialization", KindOf(err))
			}
		})
	}
}

func TestFactory_WithConstructor(t *testing.T) {
	called := 0
	ctor := func(bc *BuildContext) (Service, error) {
		called++
		return NewClip(bc.Profile, bc.ID, countGen(), bc.Logger), nil
	}
	f := newTestFactory(t,
		WithProfile(testProfile(t)),
		WithConstructor(KindProducer, "custom", ctor, nil),
		WithConstructor(KindProducer, "color", ctor, &Descriptor{Type: "producer", Identifier: "color"}),
	)

	for _, id := range []string{"custom", "color:anything"} {
		p, err := f.Producer(nil, id, "")
		if err != nil {
			t.Fatalf("Producer(%q) = %v", id, err)
		}
		if p.Profile().Name() != "qcif_15" {
			t.Errorf("profile = %s, want qcif_15", p.Profile().Name())
		}
	}
	if called != 2 {
		t.Errorf("constructor called %d times, want 2", called)
	}
	if d, _ := f.Repository().Metadata(KindProducer, "custom"); d.Identifier != "custom" || d.Type != "producer" {
		t.Errorf("synthesized descriptor = %+v", d)
	}
}

func TestRepository_Register(t *testing.T) {
	r := NewRepository()
	ctor := func(bc *BuildContext) (Service, error) { return nil, nil }
	tests := []struct {
		name string
		kind ServiceKind
		id   string
		ctor Constructor
		ok   bool
	}{
		{"producer", KindProducer, "a", ctor, true},
		{"replace", KindProducer, "a", ctor, true},
		{"playlist", KindPlaylist, "p", ctor, false},
		{"empty id", KindFilter, "", ctor, false},
		{"nil constructor", KindFilter, "f", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.kind, tt.id, tt.ctor, nil)
			if (err == nil) != tt.ok {
				t.Errorf("Register() = %v, ok %v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Register() = %v, want ErrInvalidArgument", err)
			}
		})
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if _, err := r.Metadata(KindFilter, "a"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Metadata(filter a) = %v, want ErrServiceNotFound", err)
	}
}
