// Command capi builds the mediagraph C bridge:
//
//	go build -buildmode=c-shared -o libmediagraph.so ./capi
//
// Every graph object crosses the boundary as an opaque handle. Profiles are
// the exception: mlt_profile points at a C struct mlt_profile_s the caller
// may read and edit. Functions returning int report 0 on success and
// non-zero on failure. Pointer results are NULL on failure. A panic inside
// the bridge is logged and reported as a failure.
//
// mlt_producer_get_frame returns NULL both at end of stream and on failure.
// The producer's properties tell them apart: "eof" is 1 at end of stream,
// and "error" holds the failure message otherwise. Both are cleared by the
// next successful pull.
package main

/*
#include "mlt.h"
*/
import "C"

import (
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

func main() {}

const (
	rcOK   C.int = 0
	rcFail C.int = 1
)

var (
	handles = newHandleTable()
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// The process factory is set by mlt_factory_init and cleared by
	// mlt_factory_close.
	stateMu     sync.Mutex
	factory     *mediagraph.Factory
	factoryRepo unsafe.Pointer
	extraRepos  []unsafe.Pointer
)

// recoverExport turns a panic in an exported call into a logged failure.
// Callers preset their result to the failure value.
func recoverExport(name string) {
	if r := recover(); r != nil {
		logger.Error("panic in C bridge", "func", name, "panic", r)
	}
}

func currentFactory() *mediagraph.Factory {
	stateMu.Lock()
	defer stateMu.Unlock()
	return factory
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func fail(name string, err error) {
	logger.Warn(name+" failed", "error", err, "kind", mediagraph.KindOf(err).String())
}
