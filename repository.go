package mediagraph

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// BuildContext carries the inputs of one service construction.
type BuildContext struct {
	Profile    *Profile
	ID         string      // repository identifier
	Arg        string      // service argument, often a resource
	Descriptor *Descriptor // metadata the service was registered with
	Logger     *slog.Logger
}

// Constructor builds a service. Returning an error rejects the argument.
type Constructor func(bc *BuildContext) (Service, error)

type registration struct {
	ctor Constructor
	desc *Descriptor
}

// Repository maps (kind, identifier) pairs to constructors and metadata.
// It is filled while a Factory is built and only read afterwards.
type Repository struct {
	services [kindCount]map[string]registration
	mu       sync.RWMutex
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	r := &Repository{}
	for k := range r.services {
		r.services[k] = make(map[string]registration)
	}
	return r
}

// Register adds or replaces the constructor for (kind, id). desc may be nil.
func (r *Repository) Register(kind ServiceKind, id string, ctor Constructor, desc *Descriptor) error {
	if !kind.Registrable() {
		return fmt.Errorf("register %q: %w: %s services are not registrable", id, ErrInvalidArgument, kind)
	}
	if id == "" || ctor == nil {
		return fmt.Errorf("register %s: %w: empty identifier or nil constructor", kind, ErrInvalidArgument)
	}
	if desc == nil {
		desc = &Descriptor{Type: kind.String(), Identifier: id}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[kind][id] = registration{ctor: ctor, desc: desc}
	return nil
}

func (r *Repository) lookup(kind ServiceKind, id string) (registration, error) {
	if kind >= kindCount {
		return registration{}, fmt.Errorf("%w: %s %q", ErrServiceNotFound, kind, id)
	}
	r.mu.RLock()
	reg, ok := r.services[kind][id]
	r.mu.RUnlock()
	if !ok {
		return registration{}, fmt.Errorf("%w: %s %q", ErrServiceNotFound, kind, id)
	}
	return reg, nil
}

// Metadata returns the descriptor registered for (kind, id).
func (r *Repository) Metadata(kind ServiceKind, id string) (*Descriptor, error) {
	reg, err := r.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	return reg.desc, nil
}

// IDs lists the identifiers registered for kind in lexical order.
func (r *Repository) IDs(kind ServiceKind) []string {
	if kind >= kindCount {
		return nil
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.services[kind]))
	for id := range r.services[kind] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Repository) Producers() []string   { return r.IDs(KindProducer) }
func (r *Repository) Filters() []string     { return r.IDs(KindFilter) }
func (r *Repository) Transitions() []string { return r.IDs(KindTransition) }
func (r *Repository) Consumers() []string   { return r.IDs(KindConsumer) }

// Len returns the total number of registrations.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.services {
		n += len(m)
	}
	return n
}

// builtinConstructors holds the Go implemented services, keyed by the
// descriptor "builtin" name. It is only written from init functions.
var builtinConstructors [kindCount]map[string]Constructor

func registerBuiltin(kind ServiceKind, name string, ctor Constructor) {
	if builtinConstructors[kind] == nil {
		builtinConstructors[kind] = make(map[string]Constructor)
	}
	builtinConstructors[kind][name] = ctor
}

func builtin(kind ServiceKind, name string) (Constructor, bool) {
	ctor, ok := builtinConstructors[kind][name]
	return ctor, ok
}
