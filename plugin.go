// Native services implemented in shared libraries.
//
// A native service exports one C function that receives an I420 picture:
//
//	int32_t fn(uint8_t *y, uint8_t *u, uint8_t *v,
//	           int32_t width, int32_t height,
//	           int32_t stride_y, int32_t stride_uv,
//	           int32_t position, double param);
//
// Producers fill the planes, filters modify them in place and consumers read
// them. A non-zero return is an error; 1 from a producer ends the stream.
// param is the service's "param" property (default 1.0).

package mediagraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// PluginPathEnv lists extra directories searched for native service
// libraries, separated by the OS list separator.
const PluginPathEnv = "MEDIAGRAPH_PLUGIN_PATH"

// nativeFunc is the Go view of a native service entry point.
type nativeFunc func(y, u, v *byte, width, height, strideY, strideUV, position int32, param float64) int32

func (fn nativeFunc) call(img *Image, position int, param float64) int32 {
	if img == nil || img.Format != PixelFormatI420 || len(img.Data) < 3 {
		return -1
	}
	if len(img.Data[0]) == 0 || len(img.Data[1]) == 0 || len(img.Data[2]) == 0 {
		return -1
	}
	ret := fn(&img.Data[0][0], &img.Data[1][0], &img.Data[2][0],
		int32(img.Width), int32(img.Height),
		int32(img.Stride[0]), int32(img.Stride[1]),
		int32(position), param)
	runtime.KeepAlive(img)
	return ret
}

// nativeConstructor adapts a native entry point to the constructor of kind.
func nativeConstructor(kind ServiceKind, fn nativeFunc) (Constructor, error) {
	switch kind {
	case KindProducer:
		return func(bc *BuildContext) (Service, error) {
			gen := GeneratorFunc(func(_ context.Context, pos int, frame *Frame, props *Properties) error {
				frame.Image = NewImage(bc.Profile.Width(), bc.Profile.Height(), PixelFormatI420)
				switch ret := fn.call(frame.Image, pos, props.DoubleOr("param", 1.0)); ret {
				case 0:
					return nil
				case 1:
					return ErrEndOfStream
				default:
					return fmt.Errorf("native producer returned %d", ret)
				}
			})
			return NewClip(bc.Profile, bc.ID, gen, bc.Logger), nil
		}, nil
	case KindFilter:
		return func(bc *BuildContext) (Service, error) {
			proc := ProcessorFunc(func(_ context.Context, frame *Frame, props *Properties) error {
				if frame.Image == nil {
					return nil
				}
				if ret := fn.call(frame.Image, frame.Position(), props.DoubleOr("param", 1.0)); ret != 0 {
					return fmt.Errorf("native filter returned %d", ret)
				}
				return nil
			})
			return NewFilter(bc.Profile, bc.ID, proc, bc.Logger), nil
		}, nil
	case KindConsumer:
		return func(bc *BuildContext) (Service, error) {
			var props *Properties
			sink := SinkFunc(func(_ context.Context, frame *Frame) error {
				if frame.Image == nil {
					return nil
				}
				if ret := fn.call(frame.Image, frame.Position(), props.DoubleOr("param", 1.0)); ret != 0 {
					return fmt.Errorf("native consumer returned %d", ret)
				}
				return nil
			})
			c := NewConsumer(bc.Profile, bc.ID, sink, bc.Logger)
			props = c.Properties()
			return c, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: native %s services", ErrNotSupported, kind)
	}
}

// nativeLibraryPaths returns the candidate paths for a native library.
func nativeLibraryPaths(lib string) []string {
	if filepath.IsAbs(lib) || strings.ContainsRune(lib, os.PathSeparator) {
		return []string{lib}
	}

	var paths []string
	if env := os.Getenv(PluginPathEnv); env != "" {
		for _, dir := range filepath.SplitList(env) {
			paths = append(paths, filepath.Join(dir, lib))
		}
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, lib),
			filepath.Join(exeDir, "..", "lib", lib),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, lib),
			filepath.Join(wd, "build", lib),
		)
	}

	if root := findModuleRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", lib))
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths, lib, "/usr/local/lib/"+lib, "/opt/homebrew/lib/"+lib)
	case "linux":
		paths = append(paths, lib, "/usr/local/lib/"+lib, "/usr/lib/"+lib)
	}
	return paths
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod.
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
