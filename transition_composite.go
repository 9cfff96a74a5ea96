package mediagraph

import (
	"context"
	"fmt"
)

// BlendMode defines how an overlay is blended onto the base image.
type BlendMode int32

const (
	BlendModeCopy     BlendMode = 0 // Direct copy (ignore alpha)
	BlendModeOver     BlendMode = 1 // Porter-Duff over (standard alpha blend)
	BlendModeAdd      BlendMode = 2 // Additive blending
	BlendModeMultiply BlendMode = 3 // Multiply blending
)

func (m BlendMode) String() string {
	switch m {
	case BlendModeCopy:
		return "copy"
	case BlendModeOver:
		return "over"
	case BlendModeAdd:
		return "add"
	case BlendModeMultiply:
		return "multiply"
	default:
		return "unknown"
	}
}

// ParseBlendMode maps a mode name to its BlendMode. The empty name is over.
func ParseBlendMode(name string) (BlendMode, error) {
	switch name {
	case "", "over":
		return BlendModeOver, nil
	case "copy":
		return BlendModeCopy, nil
	case "add":
		return BlendModeAdd, nil
	case "multiply":
		return BlendModeMultiply, nil
	}
	return 0, fmt.Errorf("unknown blend mode %q", name)
}

// PiPOrigin returns the top-left corner of a w x h window placed at position
// ("top-left", "top-right", "bottom-left", "bottom-right", "center") inside
// a canvas with margin pixels from the edges. Unknown positions are
// bottom-right.
func PiPOrigin(canvasW, canvasH, w, h int, position string, margin int) (x, y int) {
	switch position {
	case "top-left":
		x, y = margin, margin
	case "top-right":
		x, y = canvasW-w-margin, margin
	case "bottom-left":
		x, y = margin, canvasH-h-margin
	case "center":
		x, y = (canvasW-w)/2, (canvasH-h)/2
	default:
		x, y = canvasW-w-margin, canvasH-h-margin
	}
	return x &^ 1, y &^ 1
}

// BlendImage blends src onto dst with its top-left corner at (x, y). Both
// images must be I420. Parts of src outside dst are clipped.
func BlendImage(dst, src *Image, x, y int, alpha float64, mode BlendMode) {
	if dst == nil || src == nil || dst.Format != PixelFormatI420 || src.Format != PixelFormatI420 {
		return
	}
	alpha = clamp01(alpha)
	x, y = x&^1, y&^1

	blendPlane(dst.Data[0], dst.Stride[0], dst.Width, dst.Height,
		src.Data[0], src.Stride[0], src.Width, src.Height, x, y, alpha, mode, false)
	for p := 1; p < 3; p++ {
		blendPlane(dst.Data[p], dst.Stride[p], dst.Width/2, dst.Height/2,
			src.Data[p], src.Stride[p], src.Width/2, src.Height/2, x/2, y/2, alpha, mode, true)
	}
}

func blendPlane(dst []byte, dstStride, dstW, dstH int, src []byte, srcStride, srcW, srcH, x, y int, alpha float64, mode BlendMode, chroma bool) {
	a := int(alpha*256 + 0.5)
	for sy := 0; sy < srcH; sy++ {
		dy := y + sy
		if dy < 0 || dy >= dstH {
			continue
		}
		for sx := 0; sx < srcW; sx++ {
			dx := x + sx
			if dx < 0 || dx >= dstW {
				continue
			}
			d := int(dst[dy*dstStride+dx])
			s := int(src[sy*srcStride+sx])

			var v int
			switch {
			case mode == BlendModeCopy:
				v = s
			case mode == BlendModeAdd && !chroma:
				v = min(d+(s-16)*a>>8, 235)
			case mode == BlendModeMultiply && !chroma:
				m := d * s / 235
				v = (d*(256-a) + m*a) >> 8
			default:
				// Over, and chroma for add/multiply
				v = (d*(256-a) + s*a) >> 8
			}
			dst[dy*dstStride+dx] = byte(v)
		}
	}
}

// compositeBlender overlays the b image onto the a image.
//
// Properties:
//   - "x", "y": overlay origin (default 0, 0)
//   - "position", "margin": place the overlay like a picture-in-picture
//     window instead of using x and y
//   - "width", "height": overlay size, scaled to fit (default: b's size)
//   - "alpha": overlay opacity (default 1.0)
//   - "mode": copy|over|add|multiply (default over)
//
// With "mix" or "in"/"out" set, the transition progress scales alpha.
type compositeBlender struct{}

func (compositeBlender) Blend(_ context.Context, a, b *Frame, progress float64, props *Properties) error {
	if a.Image == nil || b.Image == nil {
		if a.Image == nil && b.Image != nil {
			a.Image = b.Image.Clone()
		}
		return nil
	}
	mode, err := ParseBlendMode(props.GetString("mode", ""))
	if err != nil {
		return err
	}

	overlay := b.Image
	w, h := props.GetInt("width"), props.GetInt("height")
	if w > 0 && h > 0 {
		overlay = ScaleImage(overlay, w&^1, h&^1, ScaleModeStretch)
	}

	x, y := props.GetInt("x"), props.GetInt("y")
	if pos, ok := props.Get("position"); ok {
		x, y = PiPOrigin(a.Image.Width, a.Image.Height, overlay.Width, overlay.Height, pos, props.GetInt("margin"))
	}

	alpha := props.DoubleOr("alpha", 1.0)
	if props.Has("mix") || props.Has("in") {
		alpha *= progress
	}
	BlendImage(a.Image, overlay, x, y, alpha, mode)
	return nil
}

func init() {
	registerBuiltin(KindTransition, "composite", func(bc *BuildContext) (Service, error) {
		t := NewTransition(bc.Profile, bc.ID, compositeBlender{}, bc.Logger)
		if bc.Arg != "" {
			if _, err := ParseBlendMode(bc.Arg); err != nil {
				return nil, err
			}
			t.Properties().Set("mode", bc.Arg)
		}
		return t, nil
	})
}
