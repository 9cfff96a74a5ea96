// Package mediagraph is a small media processing engine built from a graph
// of services: producers generate frames, filters modify them, transitions
// blend two inputs, and consumers pull frames on a worker goroutine and
// deliver them to a sink.
//
// Key pieces include:
//   - Properties: the string-keyed, type-coercing bag every service carries
//   - Profile: frame size, rate and aspect shared by a graph
//   - Factory and Repository: services registered from YAML descriptors
//   - Playlist and Tractor: sequential and multi-track composition
//   - Frame dumps (msgpack), RTP, WebRTC and websocket delivery
//
// # Architecture
//
//	Producer -> Filter* -> [Transition / Playlist / Tractor] -> Consumer -> Sink
//
// Graphs are pull-driven. A Consumer's worker calls GetFrame on its upstream,
// which recursively pulls its own inputs. Every call yields a fresh Frame
// owned by the caller until Close. End of stream is ErrEndOfStream and is
// final: an exhausted producer stays exhausted until it is seeked.
//
// # Services
//
// NewFactory loads service descriptors (YAML) from a directory, or the set
// embedded in this package when the directory is empty. Descriptors name a
// built-in Go constructor, or a shared library and symbol loaded with purego
// (see plugin.go for the native calling convention). Services are created
// with an "id" or "id:arg" string:
//
//	f, _ := mediagraph.NewFactory("")
//	p, _ := f.Producer(nil, "testpattern:bars", "")
//	c, _ := f.Consumer(nil, "dump", "out.mgd")
//	c.Connect(p)
//	c.Start(ctx)
//	c.Wait()
//
// # Native Libraries
//
// Native services are searched for in MEDIAGRAPH_PLUGIN_PATH, next to the
// executable, in the working directory and in the system library paths.
// Native loading requires darwin or linux.
//
// The C bridge in capi/ exposes the graph through opaque handles for use
// from C.
package mediagraph
