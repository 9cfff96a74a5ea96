package mediagraph

import (
	"context"
	"fmt"
)

// lumaBlender dissolves from a to b as progress runs from 0 to 1. With
// "wipe" set to left, right, up or down it reveals b along that edge
// instead, softened over "softness" (0..1) of the image.
type lumaBlender struct{}

func (lumaBlender) Blend(_ context.Context, a, b *Frame, progress float64, props *Properties) error {
	if a.Image == nil || b.Image == nil {
		if a.Image == nil && b.Image != nil && progress >= 0.5 {
			a.Image = b.Image.Clone()
		}
		return nil
	}
	if a.Image.Format != PixelFormatI420 || b.Image.Format != PixelFormatI420 {
		return fmt.Errorf("luma blends I420 images only")
	}
	src := ScaleImage(b.Image, a.Image.Width, a.Image.Height, ScaleModeStretch)

	wipe := props.GetString("wipe", "")
	switch wipe {
	case "":
		dissolve(a.Image, src, progress)
	case "left", "right", "up", "down":
		wipeImage(a.Image, src, progress, props.DoubleOr("softness", 0), wipe)
	default:
		return fmt.Errorf("unknown wipe %q", wipe)
	}
	return nil
}

func dissolve(dst, src *Image, progress float64) {
	w := int(progress*256 + 0.5)
	for p := 0; p < 3; p++ {
		pw, ph := dst.Width, dst.Height
		if p > 0 {
			pw, ph = pw/2, ph/2
		}
		for y := 0; y < ph; y++ {
			d := dst.Data[p][y*dst.Stride[p] : y*dst.Stride[p]+pw]
			s := src.Data[p][y*src.Stride[p] : y*src.Stride[p]+pw]
			for x := range d {
				d[x] = byte((int(d[x])*(256-w) + int(s[x])*w) >> 8)
			}
		}
	}
}

// wipeImage mixes each pixel by its distance along the wipe direction.
func wipeImage(dst, src *Image, progress, softness float64, direction string) {
	softness = clamp01(softness)
	for p := 0; p < 3; p++ {
		pw, ph := dst.Width, dst.Height
		if p > 0 {
			pw, ph = pw/2, ph/2
		}
		for y := 0; y < ph; y++ {
			for x := 0; x < pw; x++ {
				var t float64
				switch direction {
				case "left":
					t = 1 - float64(x)/float64(pw)
				case "right":
					t = float64(x) / float64(pw)
				case "up":
					t = 1 - float64(y)/float64(ph)
				case "down":
					t = float64(y) / float64(ph)
				}
				// Edge moves from -softness to 1 so both ends are clean
				edge := progress*(1+softness) - softness
				var m float64
				switch {
				case t < edge:
					m = 1
				case softness > 0 && t < edge+softness:
					m = 1 - (t-edge)/softness
				}
				i := y*dst.Stride[p] + x
				s := src.Data[p][y*src.Stride[p]+x]
				dst.Data[p][i] = byte(float64(dst.Data[p][i])*(1-m) + float64(s)*m + 0.5)
			}
		}
	}
}

func init() {
	registerBuiltin(KindTransition, "luma", func(bc *BuildContext) (Service, error) {
		t := NewTransition(bc.Profile, bc.ID, lumaBlender{}, bc.Logger)
		if bc.Arg != "" {
			t.Properties().Set("wipe", bc.Arg)
		}
		return t, nil
	})
}
