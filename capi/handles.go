package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

// handle is one object exposed to C. C code only ever sees the token, a
// C-allocated address, so no Go pointer crosses the boundary.
type handle struct {
	value    any
	children []unsafe.Pointer
	props    unsafe.Pointer
	strs     map[string]*C.char
	free     func(unsafe.Pointer)
}

// handleTable maps tokens to Go objects. Children are released with their
// parent: properties views with the object they belong to and strings
// returned by mlt_properties_get with the properties handle.
type handleTable struct {
	mu      sync.Mutex
	entries map[unsafe.Pointer]*handle
}

func newHandleTable() *handleTable {
	return &handleTable{entries: make(map[unsafe.Pointer]*handle)}
}

func freeToken(p unsafe.Pointer) { C.free(p) }

// add registers value under a fresh token owned by parent (nil for roots).
func (t *handleTable) add(value any, parent unsafe.Pointer) unsafe.Pointer {
	p := C.malloc(1)
	t.put(p, value, parent, freeToken)
	return p
}

// put registers value under an address allocated by the caller. free
// releases the address when the handle goes away.
func (t *handleTable) put(p unsafe.Pointer, value any, parent unsafe.Pointer, free func(unsafe.Pointer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[p] = &handle{value: value, free: free}
	if parent != nil {
		if h, ok := t.entries[parent]; ok {
			h.children = append(h.children, p)
		}
	}
}

func (t *handleTable) value(p unsafe.Pointer) (any, bool) {
	if p == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.entries[p]
	if !ok {
		return nil, false
	}
	return h.value, true
}

// properties returns the properties handle viewing props on behalf of
// owner, creating it on first use.
func (t *handleTable) properties(owner unsafe.Pointer, props *mediagraph.Properties) unsafe.Pointer {
	t.mu.Lock()
	h, ok := t.entries[owner]
	if ok && h.props != nil {
		t.mu.Unlock()
		return h.props
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}

	p := t.add(props, owner)
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.entries[owner]; ok {
		h.props = p
	}
	return p
}

// cstring returns a C copy of value that stays valid until the next call
// for the same name or the release of p.
func (t *handleTable) cstring(p unsafe.Pointer, name, value string) *C.char {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.entries[p]
	if !ok {
		return nil
	}
	if h.strs == nil {
		h.strs = make(map[string]*C.char)
	}
	if old, ok := h.strs[name]; ok {
		C.free(unsafe.Pointer(old))
	}
	s := C.CString(value)
	h.strs[name] = s
	return s
}

// release removes p and its children. It returns the released value so the
// caller can close it.
func (t *handleTable) release(p unsafe.Pointer) (any, bool) {
	if p == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releaseLocked(p)
}

func (t *handleTable) releaseLocked(p unsafe.Pointer) (any, bool) {
	h, ok := t.entries[p]
	if !ok {
		return nil, false
	}
	delete(t.entries, p)
	for _, c := range h.children {
		t.releaseLocked(c)
	}
	for _, s := range h.strs {
		C.free(unsafe.Pointer(s))
	}
	if h.free != nil {
		h.free(p)
	}
	return h.value, true
}

// Len returns the number of live handles.
func (t *handleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// lookup returns the value behind p when it has type T.
func lookup[T any](t *handleTable, p unsafe.Pointer) (T, bool) {
	var zero T
	v, ok := t.value(p)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
