package mediagraph

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed services/*.yml
var embeddedServices embed.FS

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger handed to the factory and every service it
// builds. The default is slog.Default().
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// WithProfile sets the profile used when a nil profile is passed to a
// constructor call. The default is LoadProfile("").
func WithProfile(profile *Profile) FactoryOption {
	return func(f *Factory) { f.profile = profile }
}

// WithConstructor registers an additional service after the descriptors
// are loaded, replacing any service with the same kind and identifier.
func WithConstructor(kind ServiceKind, id string, ctor Constructor, desc *Descriptor) FactoryOption {
	return func(f *Factory) {
		f.extra = append(f.extra, extraService{kind, id, ctor, desc})
	}
}

type extraService struct {
	kind ServiceKind
	id   string
	ctor Constructor
	desc *Descriptor
}

// Factory is the entry point for creating services. It owns the repository
// populated from a directory of service descriptors.
type Factory struct {
	mu      sync.RWMutex
	repo    *Repository
	dir     string
	profile *Profile
	logger  *slog.Logger
	extra   []extraService
	natives []io.Closer
}

// NewFactory loads the service descriptors in dir and registers every
// service they describe. An empty dir uses the descriptors shipped with the
// package. It fails with ErrRepositoryInit if dir is unreadable or yields no
// usable service.
func NewFactory(dir string, opts ...FactoryOption) (*Factory, error) {
	f := &Factory{dir: dir}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "factory")

	if f.profile == nil {
		p, err := LoadProfile("")
		if err != nil {
			return nil, err
		}
		f.profile = p
	}

	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embeddedServices, "services")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepositoryInit, err)
		}
		fsys = sub
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepositoryInit, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrRepositoryInit, dir)
		}
		fsys = os.DirFS(dir)
	}

	descs, problems, err := LoadDescriptors(fsys)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRepositoryInit, dir, err)
	}
	for _, p := range problems {
		f.logger.Warn("skipping service descriptor", "file", p.File, "error", p.Err)
	}

	repo := NewRepository()
	for i := range descs {
		d := &descs[i]
		if err := f.register(repo, d); err != nil {
			f.logger.Warn("skipping service", "id", d.Identifier, "type", d.Type, "error", err)
		}
	}
	for _, e := range f.extra {
		if err := repo.Register(e.kind, e.id, e.ctor, e.desc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepositoryInit, err)
		}
	}

	if repo.Len() == 0 {
		f.closeNatives()
		return nil, fmt.Errorf("%w: no valid service descriptors in %q", ErrRepositoryInit, dir)
	}

	f.repo = repo
	f.logger.Info("factory initialized",
		"dir", dir,
		"producers", len(repo.Producers()),
		"filters", len(repo.Filters()),
		"transitions", len(repo.Transitions()),
		"consumers", len(repo.Consumers()))
	return f, nil
}

// resolveLibrary prefers a bare library name found in dir, leaving the
// dynamic loader search path to handle everything else.
func resolveLibrary(dir, lib string) string {
	if dir == "" || filepath.Base(lib) != lib {
		return lib
	}
	if path := filepath.Join(dir, lib); fileExists(path) {
		return path
	}
	return lib
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (f *Factory) register(repo *Repository, d *Descriptor) error {
	kind, err := d.Kind()
	if err != nil {
		return err
	}
	if d.Native() {
		lib := resolveLibrary(f.dir, d.Library)
		ctor, closer, err := loadNative(kind, lib, d.Symbol)
		if err != nil {
			return err
		}
		f.natives = append(f.natives, closer)
		f.logger.Info("native service loaded", "id", d.Identifier, "library", lib, "symbol", d.Symbol)
		return repo.Register(kind, d.Identifier, ctor, d)
	}

	name := d.Builtin
	if name == "" {
		name = d.Identifier
	}
	ctor, ok := builtin(kind, name)
	if !ok {
		return fmt.Errorf("no built-in %s %q", kind, name)
	}
	return repo.Register(kind, d.Identifier, ctor, d)
}

// Repository returns the factory's repository, or nil after Close.
func (f *Factory) Repository() *Repository {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.repo
}

// DefaultProfile returns the profile used for nil profile arguments.
func (f *Factory) DefaultProfile() *Profile { return f.profile }

// Logger returns the factory's logger.
func (f *Factory) Logger() *slog.Logger { return f.logger }

// Producer creates the producer registered as id. When arg is empty, an id
// of the form "name:arg" is split.
func (f *Factory) Producer(profile *Profile, id, arg string) (Producer, error) {
	svc, err := f.create(KindProducer, profile, id, arg)
	if err != nil {
		return nil, err
	}
	p, ok := svc.(Producer)
	if !ok {
		svc.Close()
		return nil, fmt.Errorf("%w: producer %q built a %s", ErrConstruction, id, svc.Kind())
	}
	return p, nil
}

// Filter creates the filter registered as id.
func (f *Factory) Filter(profile *Profile, id, arg string) (*Filter, error) {
	svc, err := f.create(KindFilter, profile, id, arg)
	if err != nil {
		return nil, err
	}
	flt, ok := svc.(*Filter)
	if !ok {
		svc.Close()
		return nil, fmt.Errorf("%w: filter %q built a %s", ErrConstruction, id, svc.Kind())
	}
	return flt, nil
}

// Transition creates the transition registered as id.
func (f *Factory) Transition(profile *Profile, id, arg string) (*Transition, error) {
	svc, err := f.create(KindTransition, profile, id, arg)
	if err != nil {
		return nil, err
	}
	t, ok := svc.(*Transition)
	if !ok {
		svc.Close()
		return nil, fmt.Errorf("%w: transition %q built a %s", ErrConstruction, id, svc.Kind())
	}
	return t, nil
}

// Consumer creates the consumer registered as id.
func (f *Factory) Consumer(profile *Profile, id, arg string) (*Consumer, error) {
	svc, err := f.create(KindConsumer, profile, id, arg)
	if err != nil {
		return nil, err
	}
	c, ok := svc.(*Consumer)
	if !ok {
		svc.Close()
		return nil, fmt.Errorf("%w: consumer %q built a %s", ErrConstruction, id, svc.Kind())
	}
	return c, nil
}

func (f *Factory) create(kind ServiceKind, profile *Profile, id, arg string) (Service, error) {
	f.mu.RLock()
	repo := f.repo
	f.mu.RUnlock()
	if repo == nil {
		return nil, ErrNotInitialized
	}

	if arg == "" {
		if name, rest, ok := strings.Cut(id, ":"); ok && name != "" {
			id, arg = name, rest
		}
	}
	if profile == nil {
		profile = f.profile
	}

	reg, err := repo.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	svc, err := reg.ctor(&BuildContext{
		Profile:    profile,
		ID:         id,
		Arg:        arg,
		Descriptor: reg.desc,
		Logger:     f.logger,
	})
	if err != nil {
		if errors.Is(err, ErrConstruction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %q: %w", ErrConstruction, kind, id, err)
	}

	props := svc.Properties()
	if arg != "" && !props.Has("resource") {
		props.Set("resource", arg)
	}
	reg.desc.applyDefaults(props)

	f.logger.Debug("service created", "kind", kind.String(), "id", id, "arg", arg)
	return svc, nil
}

// Close releases the repository and any native libraries. Later calls on the
// factory fail with ErrNotInitialized.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repo == nil {
		return nil
	}
	f.repo = nil
	f.logger.Info("factory closed")
	return f.closeNatives()
}

func (f *Factory) closeNatives() error {
	var errs []error
	for _, c := range f.natives {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.natives = nil
	return errors.Join(errs...)
}
