//go:build !darwin && !linux

package mediagraph

import (
	"fmt"
	"io"
)

func loadNative(kind ServiceKind, lib, symbol string) (Constructor, io.Closer, error) {
	return nil, nil, fmt.Errorf("%w: native %s %s:%s on this platform", ErrNotSupported, kind, lib, symbol)
}
