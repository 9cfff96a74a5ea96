//go:build darwin || linux

package mediagraph

import (
	"errors"
	"fmt"
	"io"

	"github.com/ebitengine/purego"
)

type nativeLibrary struct {
	handle uintptr
	path   string
}

func (l *nativeLibrary) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("close %s: %w", l.path, err)
	}
	return nil
}

// loadNative opens lib, binds symbol and returns a constructor for kind.
func loadNative(kind ServiceKind, lib, symbol string) (Constructor, io.Closer, error) {
	var lastErr error
	for _, path := range nativeLibraryPaths(lib) {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		l := &nativeLibrary{handle: handle, path: path}

		sym, err := purego.Dlsym(handle, symbol)
		if err != nil {
			l.Close()
			return nil, nil, fmt.Errorf("%s: symbol %q: %w", path, symbol, err)
		}

		var fn nativeFunc
		purego.RegisterFunc(&fn, sym)

		ctor, err := nativeConstructor(kind, fn)
		if err != nil {
			l.Close()
			return nil, nil, err
		}
		return ctor, l, nil
	}

	if lastErr != nil {
		return nil, nil, fmt.Errorf("load %s: %w", lib, lastErr)
	}
	return nil, nil, errors.New(lib + " not found in any search location")
}
