package main

/*
#include "mlt.h"
*/
import "C"

import (
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

func propertiesHandle(p C.mlt_properties) (*mediagraph.Properties, bool) {
	return lookup[*mediagraph.Properties](handles, unsafe.Pointer(p))
}

//export mlt_properties_set
func mlt_properties_set(properties C.mlt_properties, name *C.char, value *C.char) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_properties_set")
	props, ok := propertiesHandle(properties)
	if !ok {
		return status("mlt_properties_set", errBadHandle)
	}
	// NULL clears the property.
	if value == nil {
		props.Delete(goString(name))
		return rcOK
	}
	return status("mlt_properties_set", props.Set(goString(name), C.GoString(value)))
}

//export mlt_properties_set_int
func mlt_properties_set_int(properties C.mlt_properties, name *C.char, value C.int) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_properties_set_int")
	props, ok := propertiesHandle(properties)
	if !ok {
		return status("mlt_properties_set_int", errBadHandle)
	}
	return status("mlt_properties_set_int", props.SetInt(goString(name), int(value)))
}

//export mlt_properties_set_double
func mlt_properties_set_double(properties C.mlt_properties, name *C.char, value C.double) (rc C.int) {
	rc = rcFail
	defer recoverExport("mlt_properties_set_double")
	props, ok := propertiesHandle(properties)
	if !ok {
		return status("mlt_properties_set_double", errBadHandle)
	}
	return status("mlt_properties_set_double", props.SetDouble(goString(name), float64(value)))
}

// mlt_properties_get returns NULL for a missing property. The string is
// owned by the properties handle and stays valid until the next get of the
// same name or until the owner is closed.
//
//export mlt_properties_get
func mlt_properties_get(properties C.mlt_properties, name *C.char) (ret *C.char) {
	defer recoverExport("mlt_properties_get")
	props, ok := propertiesHandle(properties)
	if !ok {
		return nil
	}
	key := goString(name)
	v, ok := props.Get(key)
	if !ok {
		return nil
	}
	return handles.cstring(unsafe.Pointer(properties), key, v)
}

//export mlt_properties_get_int
func mlt_properties_get_int(properties C.mlt_properties, name *C.char) (ret C.int) {
	defer recoverExport("mlt_properties_get_int")
	props, ok := propertiesHandle(properties)
	if !ok {
		return 0
	}
	return C.int(props.GetInt(goString(name)))
}

//export mlt_properties_get_double
func mlt_properties_get_double(properties C.mlt_properties, name *C.char) (ret C.double) {
	defer recoverExport("mlt_properties_get_double")
	props, ok := propertiesHandle(properties)
	if !ok {
		return 0
	}
	return C.double(props.GetDouble(goString(name)))
}
