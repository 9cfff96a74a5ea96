package mediagraph

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// ServiceKind identifies a service variant.
type ServiceKind uint8

const (
	KindProducer ServiceKind = iota
	KindFilter
	KindTransition
	KindConsumer
	KindPlaylist
	KindTractor
	kindCount
)

// kindMeta contains static metadata about a service kind.
type kindMeta struct {
	Name        string
	Registrable bool // constructible through the repository
	Produces    bool // can be pulled for frames
}

// Static metadata table - indexed by ServiceKind.
var kindInfo = [kindCount]kindMeta{
	KindProducer:   {"producer", true, true},
	KindFilter:     {"filter", true, true},
	KindTransition: {"transition", true, true},
	KindConsumer:   {"consumer", true, false},
	KindPlaylist:   {"playlist", false, true},
	KindTractor:    {"tractor", false, true},
}

// String returns the kind name.
func (k ServiceKind) String() string {
	if k >= kindCount {
		return "unknown"
	}
	return kindInfo[k].Name
}

// Registrable reports whether services of this kind come from the repository.
func (k ServiceKind) Registrable() bool {
	return k < kindCount && kindInfo[k].Registrable
}

// Produces reports whether services of this kind can be pulled for frames.
func (k ServiceKind) Produces() bool {
	return k < kindCount && kindInfo[k].Produces
}

// ParseServiceKind maps a kind name back to its ServiceKind.
func ParseServiceKind(name string) (ServiceKind, bool) {
	for k := ServiceKind(0); k < kindCount; k++ {
		if kindInfo[k].Name == name {
			return k, true
		}
	}
	return 0, false
}

// Service is the capability shared by every graph object.
type Service interface {
	// ID returns the unique identity of this service instance.
	ID() string

	// Kind returns the service variant.
	Kind() ServiceKind

	// Properties returns the service's property store.
	Properties() *Properties

	// Profile returns the profile the service was built for. It may be nil
	// for playlists and tractors created without one.
	Profile() *Profile

	// Close releases the service. Closing twice is a no-op.
	Close() error
}

// FrameSource is a service that frames can be pulled from.
type FrameSource interface {
	Service

	// GetFrame returns the frame at the current position and advances.
	// ErrEndOfStream signals exhaustion.
	GetFrame(ctx context.Context) (*Frame, error)
}

// connectable is implemented by sources that track whether they have been
// wired into a larger graph.
type connectable interface {
	markConnected()
}

func markConnected(s FrameSource) {
	if c, ok := s.(connectable); ok {
		c.markConnected()
	}
}

// service is the common base embedded by every variant.
type service struct {
	id      string
	kind    ServiceKind
	svcID   string // repository identifier, e.g. "color"
	props   *Properties
	profile *Profile
	logger  *slog.Logger
	closed  atomic.Bool
}

func (s *service) init(kind ServiceKind, svcID string, profile *Profile, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.id = uuid.NewString()
	s.kind = kind
	s.svcID = svcID
	s.props = NewProperties()
	s.profile = profile
	s.logger = logger.With("service", kind.String(), "id", svcID)
	if svcID != "" {
		s.props.Set("service", svcID)
	}
}

func (s *service) ID() string              { return s.id }
func (s *service) Kind() ServiceKind       { return s.kind }
func (s *service) Properties() *Properties { return s.props }
func (s *service) Profile() *Profile       { return s.profile }

// ServiceID returns the repository identifier the service was built from.
func (s *service) ServiceID() string { return s.svcID }

func (s *service) isClosed() bool { return s.closed.Load() }
