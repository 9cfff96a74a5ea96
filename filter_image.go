package mediagraph

import (
	"context"
	"fmt"
	"strconv"
)

// brightnessProcessor scales luma by the "level" property (default 1.0).
// Chroma is left alone.
type brightnessProcessor struct{}

func (brightnessProcessor) Process(_ context.Context, frame *Frame, props *Properties) error {
	img := frame.Image
	if img == nil || img.Format != PixelFormatI420 {
		return nil
	}
	level := props.DoubleOr("level", 1.0)
	if level < 0 {
		return fmt.Errorf("brightness level %g is negative", level)
	}
	if level == 1.0 {
		return nil
	}

	// Lookup table over studio-range luma
	var lut [256]byte
	for v := range lut {
		lut[v] = byte(clamp(float64(v-16)*level+16.5, 16, 235))
	}
	plane, stride := img.Data[0], img.Stride[0]
	for y := 0; y < img.Height; y++ {
		row := plane[y*stride : y*stride+img.Width]
		for x, v := range row {
			row[x] = lut[v]
		}
	}
	return nil
}

// greyscaleProcessor drops chroma.
type greyscaleProcessor struct{}

func (greyscaleProcessor) Process(_ context.Context, frame *Frame, _ *Properties) error {
	img := frame.Image
	if img == nil || img.Format != PixelFormatI420 {
		return nil
	}
	fillBytes(img.Data[1], 128)
	fillBytes(img.Data[2], 128)
	return nil
}

// cropProcessor removes "left", "right", "top" and "bottom" pixels from the
// image edges. Amounts are rounded down to even values.
type cropProcessor struct{}

func (cropProcessor) Process(_ context.Context, frame *Frame, props *Properties) error {
	img := frame.Image
	if img == nil || img.Format != PixelFormatI420 {
		return nil
	}
	left, right := props.GetInt("left")&^1, props.GetInt("right")&^1
	top, bottom := props.GetInt("top")&^1, props.GetInt("bottom")&^1
	if left < 0 || right < 0 || top < 0 || bottom < 0 {
		return fmt.Errorf("crop amounts must not be negative")
	}
	if left == 0 && right == 0 && top == 0 && bottom == 0 {
		return nil
	}
	w, h := img.Width-left-right, img.Height-top-bottom
	if w <= 0 || h <= 0 {
		return fmt.Errorf("crop leaves an empty %dx%d image", w, h)
	}

	out := NewImage(w, h, PixelFormatI420)
	copyPlane(out.Data[0], out.Stride[0], img.Data[0], img.Stride[0], left, top, w, h)
	for p := 1; p < 3; p++ {
		copyPlane(out.Data[p], out.Stride[p], img.Data[p], img.Stride[p], left/2, top/2, w/2, h/2)
	}
	frame.Image = out
	return nil
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, x, y, w, h int) {
	for row := 0; row < h; row++ {
		s := (y+row)*srcStride + x
		copy(dst[row*dstStride:row*dstStride+w], src[s:s+w])
	}
}

func init() {
	registerBuiltin(KindFilter, "brightness", func(bc *BuildContext) (Service, error) {
		f := NewFilter(bc.Profile, bc.ID, brightnessProcessor{}, bc.Logger)
		if bc.Arg != "" {
			level, err := strconv.ParseFloat(bc.Arg, 64)
			if err != nil {
				return nil, fmt.Errorf("brightness level %q: %w", bc.Arg, ErrInvalidArgument)
			}
			f.Properties().SetDouble("level", level)
		}
		return f, nil
	})
	registerBuiltin(KindFilter, "greyscale", func(bc *BuildContext) (Service, error) {
		return NewFilter(bc.Profile, bc.ID, greyscaleProcessor{}, bc.Logger), nil
	})
	registerBuiltin(KindFilter, "crop", func(bc *BuildContext) (Service, error) {
		return NewFilter(bc.Profile, bc.ID, cropProcessor{}, bc.Logger), nil
	})
}
