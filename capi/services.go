package main

/*
#include "mlt.h"
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

var errBadHandle = fmt.Errorf("%w: unknown handle", mediagraph.ErrInvalidArgument)

// create builds a service with the process factory.
func create(kind mediagraph.ServiceKind, profile C.mlt_profile, name, a string) (unsafe.Pointer, error) {
	f := currentFactory()
	if f == nil {
		return nil, mediagraph.ErrNotInitialized
	}
	p, err := profileOf(profile)
	if err != nil {
		return nil, err
	}

	var svc mediagraph.Service
	switch kind {
	case mediagraph.KindProducer:
		svc, err = f.Producer(p, name, a)
	case mediagraph.KindFilter:
		svc, err = f.Filter(p, name, a)
	case mediagraph.KindTransition:
		svc, err = f.Transition(p, name, a)
	case mediagraph.KindConsumer:
		svc, err = f.Consumer(p, name, a)
	default:
		err = fmt.Errorf("%w: %s is not registrable", mediagraph.ErrInvalidArgument, kind)
	}
	if err != nil {
		return nil, err
	}
	return handles.add(svc, nil), nil
}

//export mlt_factory_producer
func mlt_factory_producer(profile C.mlt_profile, id *C.char, service unsafe.Pointer) (ret C.mlt_producer) {
	defer recoverExport("mlt_factory_producer")
	p, err := create(mediagraph.KindProducer, profile, goString(id), serviceArg(service))
	if err != nil {
		fail("mlt_factory_producer", err)
		return nil
	}
	return C.mlt_producer(p)
}

//export mlt_factory_filter
func mlt_factory_filter(profile C.mlt_profile, id *C.char, service unsafe.Pointer) (ret C.mlt_filter) {
	defer recoverExport("mlt_factory_filter")
	p, err := create(mediagraph.KindFilter, profile, goString(id), serviceArg(service))
	if err != nil {
		fail("mlt_factory_filter", err)
		return nil
	}
	return C.mlt_filter(p)
}

//export mlt_factory_transition
func mlt_factory_transition(profile C.mlt_profile, id *C.char, service unsafe.Pointer) (ret C.mlt_transition) {
	defer recoverExport("mlt_factory_transition")
	p, err := create(mediagraph.KindTransition, profile, goString(id), serviceArg(service))
	if err != nil {
		fail("mlt_factory_transition", err)
		return nil
	}
	return C.mlt_transition(p)
}

//export mlt_factory_consumer
func mlt_factory_consumer(profile C.mlt_profile, id *C.char, service unsafe.Pointer) (ret C.mlt_consumer) {
	defer recoverExport("mlt_factory_consumer")
	p, err := create(mediagraph.KindConsumer, profile, goString(id), serviceArg(service))
	if err != nil {
		fail("mlt_factory_consumer", err)
		return nil
	}
	return C.mlt_consumer(p)
}

// serviceArg reads the service argument of the factory calls, a C string
// or NULL.
func serviceArg(service unsafe.Pointer) string {
	return goString((*C.char)(service))
}

// closeHandle releases a service handle and closes the service.
func closeHandle(name string, p unsafe.Pointer) {
	v, ok := handles.release(p)
	if !ok {
		return
	}
	if svc, ok := v.(mediagraph.Service); ok {
		if err := svc.Close(); err != nil {
			fail(name, err)
		}
	}
}

// propertiesOf returns the properties handle of the service behind p.
func propertiesOf(p unsafe.Pointer) unsafe.Pointer {
	svc, ok := lookup[mediagraph.Service](handles, p)
	if !ok {
		return nil
	}
	return handles.properties(p, svc.Properties())
}

func status(name string, err error) C.int {
	if err != nil {
		fail(name, err)
		return rcFail
	}
	return rcOK
}

// Producers

//export mlt_producer_attach
func mlt_producer_attach(producer C.mlt_producer, filter C.mlt_filter) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_producer_attach")
	prod, ok := lookup[mediagraph.Producer](handles, unsafe.Pointer(producer))
	flt, ok2 := lookup[*mediagraph.Filter](handles, unsafe.Pointer(filter))
	if !ok || !ok2 {
		return status("mlt_producer_attach", errBadHandle)
	}
	return status("mlt_producer_attach", prod.Attach(flt))
}

//export mlt_producer_get_frame
func mlt_producer_get_frame(producer C.mlt_producer) (ret C.mlt_frame) {
	defer recoverExport("mlt_producer_get_frame")
	return C.mlt_frame(pullFrame(unsafe.Pointer(producer)))
}

// pullFrame pulls one frame from the producer handle p and returns its frame
// handle, or nil at end of stream or on failure.
func pullFrame(p unsafe.Pointer) unsafe.Pointer {
	src, ok := lookup[mediagraph.FrameSource](handles, p)
	if !ok {
		fail("mlt_producer_get_frame", errBadHandle)
		return nil
	}
	frame, err := src.GetFrame(context.Background())
	recordPull(src, err)
	if err != nil {
		if !errors.Is(err, mediagraph.ErrEndOfStream) {
			fail("mlt_producer_get_frame", err)
		}
		return nil
	}
	return handles.add(frame, nil)
}

// Pull outcome properties set on the producer by mlt_producer_get_frame.
const (
	propEOF   = "eof"
	propError = "error"
)

// recordPull stores the outcome of the last pull in the producer's
// properties: "eof" is 1 after end of stream and "error" holds the failure
// text. A successful pull clears both.
func recordPull(src mediagraph.FrameSource, err error) {
	svc, ok := src.(mediagraph.Service)
	if !ok {
		return
	}
	props := svc.Properties()
	eof := mediagraph.IsEndOfStream(err)
	if eof {
		props.SetInt(propEOF, 1)
	} else {
		props.SetInt(propEOF, 0)
	}
	if err != nil && !eof {
		props.Set(propError, err.Error())
	} else {
		props.Delete(propError)
	}
}

//export mlt_producer_properties
func mlt_producer_properties(producer C.mlt_producer) C.mlt_properties {
	defer recoverExport("mlt_producer_properties")
	return C.mlt_properties(propertiesOf(unsafe.Pointer(producer)))
}

//export mlt_producer_service
func mlt_producer_service(producer C.mlt_producer) C.mlt_service {
	return C.mlt_service(producer)
}

//export mlt_producer_close
func mlt_producer_close(producer C.mlt_producer) {
	defer recoverExport("mlt_producer_close")
	closeHandle("mlt_producer_close", unsafe.Pointer(producer))
}

// Frames

//export mlt_frame_properties
func mlt_frame_properties(frame C.mlt_frame) C.mlt_properties {
	defer recoverExport("mlt_frame_properties")
	f, ok := lookup[*mediagraph.Frame](handles, unsafe.Pointer(frame))
	if !ok {
		return nil
	}
	return C.mlt_properties(handles.properties(unsafe.Pointer(frame), f.Properties()))
}

//export mlt_frame_close
func mlt_frame_close(frame C.mlt_frame) {
	defer recoverExport("mlt_frame_close")
	if v, ok := handles.release(unsafe.Pointer(frame)); ok {
		v.(*mediagraph.Frame).Close()
	}
}

// Consumers

//export mlt_consumer_connect
func mlt_consumer_connect(consumer C.mlt_consumer, service C.mlt_service) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_consumer_connect")
	c, ok := lookup[*mediagraph.Consumer](handles, unsafe.Pointer(consumer))
	src, ok2 := lookup[mediagraph.FrameSource](handles, unsafe.Pointer(service))
	if !ok || !ok2 {
		return status("mlt_consumer_connect", errBadHandle)
	}
	return status("mlt_consumer_connect", c.Connect(src))
}

//export mlt_consumer_start
func mlt_consumer_start(consumer C.mlt_consumer) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_consumer_start")
	c, ok := lookup[*mediagraph.Consumer](handles, unsafe.Pointer(consumer))
	if !ok {
		return status("mlt_consumer_start", errBadHandle)
	}
	return status("mlt_consumer_start", c.Start(context.Background()))
}

//export mlt_consumer_stop
func mlt_consumer_stop(consumer C.mlt_consumer) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_consumer_stop")
	c, ok := lookup[*mediagraph.Consumer](handles, unsafe.Pointer(consumer))
	if !ok {
		return status("mlt_consumer_stop", errBadHandle)
	}
	return status("mlt_consumer_stop", c.Stop())
}

//export mlt_consumer_properties
func mlt_consumer_properties(consumer C.mlt_consumer) C.mlt_properties {
	defer recoverExport("mlt_consumer_properties")
	return C.mlt_properties(propertiesOf(unsafe.Pointer(consumer)))
}

//export mlt_consumer_service
func mlt_consumer_service(consumer C.mlt_consumer) C.mlt_service {
	return C.mlt_service(consumer)
}

//export mlt_consumer_close
func mlt_consumer_close(consumer C.mlt_consumer) {
	defer recoverExport("mlt_consumer_close")
	closeHandle("mlt_consumer_close", unsafe.Pointer(consumer))
}

// Filters

//export mlt_filter_connect
func mlt_filter_connect(filter C.mlt_filter, service C.mlt_service, index C.int) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_filter_connect")
	f, ok := lookup[*mediagraph.Filter](handles, unsafe.Pointer(filter))
	src, ok2 := lookup[mediagraph.FrameSource](handles, unsafe.Pointer(service))
	if !ok || !ok2 {
		return status("mlt_filter_connect", errBadHandle)
	}
	return status("mlt_filter_connect", f.Connect(src, int(index)))
}

//export mlt_filter_properties
func mlt_filter_properties(filter C.mlt_filter) C.mlt_properties {
	defer recoverExport("mlt_filter_properties")
	return C.mlt_properties(propertiesOf(unsafe.Pointer(filter)))
}

//export mlt_filter_service
func mlt_filter_service(filter C.mlt_filter) C.mlt_service {
	return C.mlt_service(filter)
}

//export mlt_filter_close
func mlt_filter_close(filter C.mlt_filter) {
	defer recoverExport("mlt_filter_close")
	closeHandle("mlt_filter_close", unsafe.Pointer(filter))
}

// Transitions

//export mlt_transition_connect
func mlt_transition_connect(transition C.mlt_transition, a C.mlt_service, b C.mlt_service) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_transition_connect")
	t, ok := lookup[*mediagraph.Transition](handles, unsafe.Pointer(transition))
	srcA, okA := lookup[mediagraph.FrameSource](handles, unsafe.Pointer(a))
	srcB, okB := lookup[mediagraph.FrameSource](handles, unsafe.Pointer(b))
	if !ok || !okA || !okB {
		return status("mlt_transition_connect", errBadHandle)
	}
	return status("mlt_transition_connect", t.Connect(srcA, srcB))
}

//export mlt_transition_properties
func mlt_transition_properties(transition C.mlt_transition) C.mlt_properties {
	defer recoverExport("mlt_transition_properties")
	return C.mlt_properties(propertiesOf(unsafe.Pointer(transition)))
}

//export mlt_transition_service
func mlt_transition_service(transition C.mlt_transition) C.mlt_service {
	return C.mlt_service(transition)
}

//export mlt_transition_close
func mlt_transition_close(transition C.mlt_transition) {
	defer recoverExport("mlt_transition_close")
	closeHandle("mlt_transition_close", unsafe.Pointer(transition))
}

// Playlists

//export mlt_playlist_init
func mlt_playlist_init() (ret C.mlt_playlist) {
	defer recoverExport("mlt_playlist_init")
	var profile *mediagraph.Profile
	if f := currentFactory(); f != nil {
		profile = f.DefaultProfile()
	}
	return C.mlt_playlist(handles.add(mediagraph.NewPlaylist(profile, logger), nil))
}

//export mlt_playlist_append
func mlt_playlist_append(playlist C.mlt_playlist, producer C.mlt_producer) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_playlist_append")
	pl, ok := lookup[*mediagraph.Playlist](handles, unsafe.Pointer(playlist))
	prod, ok2 := lookup[mediagraph.Producer](handles, unsafe.Pointer(producer))
	if !ok || !ok2 {
		return status("mlt_playlist_append", errBadHandle)
	}
	return status("mlt_playlist_append", pl.Append(prod))
}

//export mlt_playlist_close
func mlt_playlist_close(playlist C.mlt_playlist) {
	defer recoverExport("mlt_playlist_close")
	closeHandle("mlt_playlist_close", unsafe.Pointer(playlist))
}
