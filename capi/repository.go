package main

/*
#include "mlt.h"
*/
import "C"

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

// newRepository creates a factory for dir and registers it. Repository
// handles resolve to the factory owning the repository.
func newRepository(dir string) (unsafe.Pointer, *mediagraph.Factory, error) {
	f, err := mediagraph.NewFactory(dir, mediagraph.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return handles.add(f, nil), f, nil
}

//export mlt_repository_init
func mlt_repository_init(directory *C.char) (ret C.mlt_repository) {
	defer recoverExport("mlt_repository_init")
	p, _, err := newRepository(goString(directory))
	if err != nil {
		fail("mlt_repository_init", err)
		return nil
	}
	stateMu.Lock()
	extraRepos = append(extraRepos, p)
	stateMu.Unlock()
	return C.mlt_repository(p)
}

//export mlt_factory_init
func mlt_factory_init(directory *C.char) (ret C.mlt_repository) {
	defer recoverExport("mlt_factory_init")
	stateMu.Lock()
	defer stateMu.Unlock()
	if factory != nil {
		return C.mlt_repository(factoryRepo)
	}
	p, f, err := newRepository(goString(directory))
	if err != nil {
		fail("mlt_factory_init", err)
		return nil
	}
	factory, factoryRepo = f, p
	return C.mlt_repository(p)
}

//export mlt_factory_close
func mlt_factory_close() {
	defer recoverExport("mlt_factory_close")
	stateMu.Lock()
	repos := append(extraRepos, factoryRepo)
	factory, factoryRepo, extraRepos = nil, nil, nil
	stateMu.Unlock()

	for _, p := range repos {
		if v, ok := handles.release(p); ok {
			if err := v.(*mediagraph.Factory).Close(); err != nil {
				fail("mlt_factory_close", err)
			}
		}
	}
}

// metadataProperties flattens a descriptor into properties. Parameters are
// listed as "parameters.<n>.<field>".
func metadataProperties(d *mediagraph.Descriptor) *mediagraph.Properties {
	props := mediagraph.NewProperties()
	props.Set("type", d.Type)
	props.Set("identifier", d.Identifier)
	props.Set("title", d.Title)
	props.Set("description", d.Description)
	props.Set("version", d.Version)
	props.Set("tags", strings.Join(d.Tags, ","))
	props.SetInt("parameters", len(d.Parameters))
	for i, param := range d.Parameters {
		prefix := "parameters." + strconv.Itoa(i) + "."
		props.Set(prefix+"identifier", param.Identifier)
		props.Set(prefix+"type", param.Type)
		props.Set(prefix+"title", param.Title)
		props.Set(prefix+"description", param.Description)
		if param.Default != "" {
			props.Set(prefix+"default", param.Default)
		}
		if param.Minimum != nil {
			props.SetDouble(prefix+"minimum", *param.Minimum)
		}
		if param.Maximum != nil {
			props.SetDouble(prefix+"maximum", *param.Maximum)
		}
		if len(param.Values) > 0 {
			props.Set(prefix+"values", strings.Join(param.Values, ","))
		}
	}
	return props
}

// metadata returns a properties handle describing one service. It is owned
// by the repository handle.
func metadata(repo unsafe.Pointer, kindName, id string) (unsafe.Pointer, error) {
	f, ok := lookup[*mediagraph.Factory](handles, repo)
	if !ok {
		return nil, fmt.Errorf("%w: unknown repository handle", mediagraph.ErrInvalidArgument)
	}
	kind, ok := mediagraph.ParseServiceKind(kindName)
	if !ok || !kind.Registrable() {
		return nil, fmt.Errorf("%w: service type %q", mediagraph.ErrInvalidArgument, kindName)
	}
	r := f.Repository()
	if r == nil {
		return nil, mediagraph.ErrNotInitialized
	}
	d, err := r.Metadata(kind, id)
	if err != nil {
		return nil, err
	}
	return handles.add(metadataProperties(d), repo), nil
}

// listing returns a properties handle whose names are the service ids of
// kind, each mapped to the service title.
func listing(repo unsafe.Pointer, kind mediagraph.ServiceKind) (unsafe.Pointer, error) {
	f, ok := lookup[*mediagraph.Factory](handles, repo)
	if !ok {
		return nil, fmt.Errorf("%w: unknown repository handle", mediagraph.ErrInvalidArgument)
	}
	r := f.Repository()
	if r == nil {
		return nil, mediagraph.ErrNotInitialized
	}
	props := mediagraph.NewProperties()
	for _, id := range r.IDs(kind) {
		title := id
		if d, err := r.Metadata(kind, id); err == nil && d.Title != "" {
			title = d.Title
		}
		props.Set(id, title)
	}
	return handles.add(props, repo), nil
}

//export mlt_repository_metadata
func mlt_repository_metadata(repo C.mlt_repository, kind *C.char, service *C.char) (ret unsafe.Pointer) {
	defer recoverExport("mlt_repository_metadata")
	p, err := metadata(unsafe.Pointer(repo), goString(kind), goString(service))
	if err != nil {
		fail("mlt_repository_metadata", err)
		return nil
	}
	return p
}

//export mlt_repository_producers
func mlt_repository_producers(repo C.mlt_repository) (ret unsafe.Pointer) {
	defer recoverExport("mlt_repository_producers")
	p, err := listing(unsafe.Pointer(repo), mediagraph.KindProducer)
	if err != nil {
		fail("mlt_repository_producers", err)
		return nil
	}
	return p
}

//export mlt_repository_filters
func mlt_repository_filters(repo C.mlt_repository) (ret unsafe.Pointer) {
	defer recoverExport("mlt_repository_filters")
	p, err := listing(unsafe.Pointer(repo), mediagraph.KindFilter)
	if err != nil {
		fail("mlt_repository_filters", err)
		return nil
	}
	return p
}

//export mlt_repository_transitions
func mlt_repository_transitions(repo C.mlt_repository) (ret unsafe.Pointer) {
	defer recoverExport("mlt_repository_transitions")
	p, err := listing(unsafe.Pointer(repo), mediagraph.KindTransition)
	if err != nil {
		fail("mlt_repository_transitions", err)
		return nil
	}
	return p
}
