package main

/*
#include "mlt.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/thesyncim/mediagraph"
)

// newCProfile allocates the C record for p and registers it.
func newCProfile(p *mediagraph.Profile) C.mlt_profile {
	cp := (*C.struct_mlt_profile_s)(C.calloc(1, C.sizeof_struct_mlt_profile_s))
	cfg := p.Config()
	cp.description = C.CString(cfg.Description)
	cp.frame_rate_num = C.int(cfg.FrameRateNum)
	cp.frame_rate_den = C.int(cfg.FrameRateDen)
	cp.width = C.int(cfg.Width)
	cp.height = C.int(cfg.Height)
	if cfg.Progressive {
		cp.progressive = 1
	}
	cp.sample_aspect_num = C.int(cfg.SampleAspectNum)
	cp.sample_aspect_den = C.int(cfg.SampleAspectDen)
	cp.display_aspect_num = C.int(cfg.DisplayAspectNum)
	cp.display_aspect_den = C.int(cfg.DisplayAspectDen)
	cp.colorspace = C.int(cfg.Colorspace)

	handles.put(unsafe.Pointer(cp), p, nil, freeCProfile)
	return cp
}

func freeCProfile(p unsafe.Pointer) {
	cp := (*C.struct_mlt_profile_s)(p)
	C.free(unsafe.Pointer(cp.description))
	C.free(p)
}

// profileOf resolves a profile argument. NULL selects the factory default.
// The C record is authoritative: edits made through the struct are picked
// up on the next call.
func profileOf(cp C.mlt_profile) (*mediagraph.Profile, error) {
	if cp == nil {
		if f := currentFactory(); f != nil {
			return f.DefaultProfile(), nil
		}
		return mediagraph.LoadProfile("")
	}
	cached, ok := lookup[*mediagraph.Profile](handles, unsafe.Pointer(cp))
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile handle", mediagraph.ErrInvalidArgument)
	}
	cfg := mediagraph.ProfileConfig{
		Description:      goString(cp.description),
		FrameRateNum:     int(cp.frame_rate_num),
		FrameRateDen:     int(cp.frame_rate_den),
		Width:            int(cp.width),
		Height:           int(cp.height),
		Progressive:      cp.progressive != 0,
		SampleAspectNum:  int(cp.sample_aspect_num),
		SampleAspectDen:  int(cp.sample_aspect_den),
		DisplayAspectNum: int(cp.display_aspect_num),
		DisplayAspectDen: int(cp.display_aspect_den),
		Colorspace:       int(cp.colorspace),
	}
	if cfg == cached.Config() {
		return cached, nil
	}
	return mediagraph.NewProfile(cfg)
}

//export mlt_profile_init
func mlt_profile_init(name *C.char) (ret C.mlt_profile) {
	defer recoverExport("mlt_profile_init")
	p, err := mediagraph.LoadProfile(goString(name))
	if err != nil {
		fail("mlt_profile_init", err)
		return nil
	}
	return newCProfile(p)
}

//export mlt_profile_clone
func mlt_profile_clone(profile C.mlt_profile) (ret C.mlt_profile) {
	defer recoverExport("mlt_profile_clone")
	if profile == nil {
		return nil
	}
	p, err := profileOf(profile)
	if err != nil {
		fail("mlt_profile_clone", err)
		return nil
	}
	return newCProfile(p.Clone())
}

//export mlt_profile_close
func mlt_profile_close(profile C.mlt_profile) {
	defer recoverExport("mlt_profile_close")
	handles.release(unsafe.Pointer(profile))
}
