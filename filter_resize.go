package mediagraph

import (
	"context"
	"fmt"
)

// ScaleMode defines how scaling should handle aspect ratio mismatches.
type ScaleMode int

const (
	// ScaleModeFit scales to fit within target dimensions, preserving aspect ratio (letterboxed).
	ScaleModeFit ScaleMode = iota
	// ScaleModeFill scales to fill target dimensions, preserving aspect ratio (cropped).
	ScaleModeFill
	// ScaleModeStretch scales to exactly match target dimensions (may distort).
	ScaleModeStretch
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleModeFit:
		return "fit"
	case ScaleModeFill:
		return "fill"
	case ScaleModeStretch:
		return "stretch"
	default:
		return "unknown"
	}
}

// ParseScaleMode maps a mode name to its ScaleMode. The empty name is fit.
func ParseScaleMode(name string) (ScaleMode, error) {
	switch name {
	case "", "fit":
		return ScaleModeFit, nil
	case "fill":
		return ScaleModeFill, nil
	case "stretch":
		return ScaleModeStretch, nil
	}
	return 0, fmt.Errorf("unknown scale mode %q", name)
}

// ScaleImage scales an I420 image to dstWidth x dstHeight. Other formats
// are returned unchanged.
func ScaleImage(img *Image, dstWidth, dstHeight int, mode ScaleMode) *Image {
	if img == nil || img.Format != PixelFormatI420 || dstWidth <= 0 || dstHeight <= 0 {
		return img
	}
	if img.Width == dstWidth && img.Height == dstHeight {
		return img
	}

	out := NewImage(dstWidth, dstHeight, PixelFormatI420)

	// Destination region; fit letterboxes into the centre of a black canvas
	dx, dy, dw, dh := 0, 0, dstWidth, dstHeight
	if mode == ScaleModeFit {
		out.Fill(16, 128, 128)
		dw, dh = CalculateScaledSize(img.Width, img.Height, dstWidth, dstHeight, ScaleModeFit)
		dw, dh = min(dw, dstWidth), min(dh, dstHeight)
		dx, dy = ((dstWidth-dw)/2)&^1, ((dstHeight-dh)/2)&^1
	}

	srcX, srcY, srcW, srcH := sourceRegion(img.Width, img.Height, dstWidth, dstHeight, mode)

	scalePlane(img.Data[0], img.Stride[0], srcX, srcY, srcW, srcH,
		out.Data[0][dy*out.Stride[0]+dx:], out.Stride[0], dw, dh)
	for p := 1; p < 3; p++ {
		scalePlane(img.Data[p], img.Stride[p], srcX/2, srcY/2, srcW/2, srcH/2,
			out.Data[p][(dy/2)*out.Stride[p]+dx/2:], out.Stride[p], dw/2, dh/2)
	}
	return out
}

// sourceRegion determines what region of the source to use based on scale mode.
func sourceRegion(srcW, srcH, dstW, dstH int, mode ScaleMode) (x, y, w, h int) {
	if mode != ScaleModeFill {
		return 0, 0, srcW, srcH
	}

	// Crop source to match target aspect ratio
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)
	if srcAspect > dstAspect {
		newW := int(float64(srcH)*dstAspect) &^ 1
		return ((srcW - newW) / 2) &^ 1, 0, newW, srcH
	} else if srcAspect < dstAspect {
		newH := int(float64(srcW)/dstAspect) &^ 1
		return 0, ((srcH - newH) / 2) &^ 1, srcW, newH
	}
	return 0, 0, srcW, srcH
}

// scalePlane scales a single plane using bilinear interpolation.
func scalePlane(src []byte, srcStride, srcX, srcY, srcW, srcH int,
	dst []byte, dstStride, dstW, dstH int) {

	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}

	// Fixed-point scaling factors (16.16)
	xRatio := (srcW << 16) / dstW
	yRatio := (srcH << 16) / dstH

	for y := 0; y < dstH; y++ {
		srcYFP := y * yRatio
		yWeight := srcYFP & 0xFFFF
		y0 := srcYFP>>16 + srcY
		y1 := y0 + 1
		if y1 >= srcY+srcH {
			y1 = y0
		}

		for x := 0; x < dstW; x++ {
			srcXFP := x * xRatio
			xWeight := srcXFP & 0xFFFF
			x0 := srcXFP>>16 + srcX
			x1 := x0 + 1
			if x1 >= srcX+srcW {
				x1 = x0
			}

			p00 := int(src[y0*srcStride+x0])
			p10 := int(src[y0*srcStride+x1])
			p01 := int(src[y1*srcStride+x0])
			p11 := int(src[y1*srcStride+x1])

			top := (p00*(0x10000-xWeight) + p10*xWeight) >> 16
			bottom := (p01*(0x10000-xWeight) + p11*xWeight) >> 16
			dst[y*dstStride+x] = byte((top*(0x10000-yWeight) + bottom*yWeight) >> 16)
		}
	}
}

// CalculateScaledSize returns the output dimensions when scaling with a given mode.
func CalculateScaledSize(srcW, srcH, maxW, maxH int, mode ScaleMode) (w, h int) {
	if mode != ScaleModeFit || srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)
	if srcAspect > dstAspect {
		w = maxW
		h = int(float64(maxW) / srcAspect)
	} else {
		h = maxH
		w = int(float64(maxH) * srcAspect)
	}
	// Even dimensions for YUV
	w = (w + 1) &^ 1
	h = (h + 1) &^ 1
	return w, h
}

// resizeProcessor scales frame images.
//
// Properties:
//   - "width", "height": target size (default: the profile size)
//   - "mode": fit|fill|stretch (default fit)
type resizeProcessor struct {
	profile *Profile
}

func (r *resizeProcessor) Process(_ context.Context, frame *Frame, props *Properties) error {
	if frame.Image == nil {
		return nil
	}
	mode, err := ParseScaleMode(props.GetString("mode", ""))
	if err != nil {
		return err
	}
	w, h := props.GetInt("width"), props.GetInt("height")
	if w <= 0 && r.profile != nil {
		w = r.profile.Width()
	}
	if h <= 0 && r.profile != nil {
		h = r.profile.Height()
	}
	frame.Image = ScaleImage(frame.Image, w&^1, h&^1, mode)
	return nil
}

func init() {
	registerBuiltin(KindFilter, "resize", func(bc *BuildContext) (Service, error) {
		f := NewFilter(bc.Profile, bc.ID, &resizeProcessor{profile: bc.Profile}, bc.Logger)
		if bc.Arg != "" {
			var w, h int
			if _, err := fmt.Sscanf(bc.Arg, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
				return nil, fmt.Errorf("resize size %q must be WIDTHxHEIGHT", bc.Arg)
			}
			f.Properties().SetInt("width", w)
			f.Properties().SetInt("height", h)
		}
		return f, nil
	})
}
