package mediagraph

import (
	"errors"
)

// Initialization errors.
var (
	// ErrProfileNotFound is returned when a profile name is not recognized.
	ErrProfileNotFound = errors.New("mediagraph: profile not found")

	// ErrRepositoryInit is returned when a service directory is unreadable or
	// holds no valid service descriptor.
	ErrRepositoryInit = errors.New("mediagraph: repository init failed")

	// ErrNotInitialized is returned by factory calls after Close.
	ErrNotInitialized = errors.New("mediagraph: factory not initialized")
)

// Lookup errors.
var (
	// ErrServiceNotFound is returned when a service id is not registered.
	ErrServiceNotFound = errors.New("mediagraph: service not found")

	// ErrPropertyNotFound is returned by Properties.Value for a missing key.
	ErrPropertyNotFound = errors.New("mediagraph: property not found")
)

// Validation errors.
var (
	// ErrInvalidProfile is returned when profile fields are malformed.
	ErrInvalidProfile = errors.New("mediagraph: invalid profile")

	// ErrInvalidName is returned when a property name is empty.
	ErrInvalidName = errors.New("mediagraph: invalid property name")

	// ErrInvalidIndex is returned for out of range track, entry or input indexes.
	ErrInvalidIndex = errors.New("mediagraph: invalid index")

	// ErrConstruction is returned when a service constructor rejects its argument.
	ErrConstruction = errors.New("mediagraph: service construction failed")

	// ErrInvalidArgument is returned for nil services and malformed arguments.
	ErrInvalidArgument = errors.New("mediagraph: invalid argument")
)

// State errors.
var (
	// ErrAlreadyRunning is returned by Consumer.Start on a started consumer.
	ErrAlreadyRunning = errors.New("mediagraph: consumer already running")

	// ErrNotConnected is returned when a service has no upstream to pull from.
	ErrNotConnected = errors.New("mediagraph: service not connected")

	// ErrClosed is returned by operations on a closed service.
	ErrClosed = errors.New("mediagraph: service closed")

	// ErrNotSupported is returned when an optional operation is not supported,
	// such as seeking a live source.
	ErrNotSupported = errors.New("mediagraph: operation not supported")
)

// ErrEndOfStream signals that a producer has no more frames. It is a normal
// termination signal, not a failure.
var ErrEndOfStream = errors.New("mediagraph: end of stream")

// ErrorKind classifies errors returned by this package.
type ErrorKind int

const (
	// KindUnknown is any error not produced by this package (I/O, decode, ...).
	KindUnknown ErrorKind = iota
	// KindInitialization covers repository, profile and factory setup.
	KindInitialization
	// KindLookup covers unregistered services and missing properties.
	KindLookup
	// KindValidation covers malformed profiles, names and arguments.
	KindValidation
	// KindState covers operations invalid for the current state.
	KindState
	// KindStreamExhausted is the normal end of data.
	KindStreamExhausted
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindLookup:
		return "lookup"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindStreamExhausted:
		return "stream-exhausted"
	default:
		return "unknown"
	}
}

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrEndOfStream, KindStreamExhausted},
	{ErrProfileNotFound, KindInitialization},
	{ErrRepositoryInit, KindInitialization},
	{ErrNotInitialized, KindInitialization},
	{ErrServiceNotFound, KindLookup},
	{ErrPropertyNotFound, KindLookup},
	{ErrInvalidProfile, KindValidation},
	{ErrInvalidName, KindValidation},
	{ErrInvalidIndex, KindValidation},
	{ErrConstruction, KindValidation},
	{ErrInvalidArgument, KindValidation},
	{ErrAlreadyRunning, KindState},
	{ErrNotConnected, KindState},
	{ErrClosed, KindState},
	{ErrNotSupported, KindState},
}

// KindOf classifies err. Wrapped errors are unwrapped with errors.Is; the first
// matching sentinel wins, with end of stream checked first.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindUnknown
}

// IsEndOfStream reports whether err is the normal end-of-stream signal.
func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}
