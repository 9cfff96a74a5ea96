package mediagraph

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternNoise                           // Random noise
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "bars"
	case PatternGradient:
		return "gradient"
	case PatternCheckerboard:
		return "checkerboard"
	case PatternNoise:
		return "noise"
	case PatternMovingBox:
		return "box"
	default:
		return "unknown"
	}
}

// ParsePatternType maps a pattern name to its PatternType.
func ParsePatternType(name string) (PatternType, error) {
	switch strings.ToLower(name) {
	case "", "bars", "colorbars":
		return PatternColorBars, nil
	case "gradient":
		return PatternGradient, nil
	case "checkerboard", "checker":
		return PatternCheckerboard, nil
	case "noise":
		return PatternNoise, nil
	case "box", "movingbox":
		return PatternMovingBox, nil
	}
	return 0, fmt.Errorf("unknown test pattern %q", name)
}

// TestPattern generates synthetic I420 pictures.
//
// Properties:
//   - "pattern": bars|gradient|checkerboard|noise|box (default bars)
//   - "checker_size": square size for checkerboard (default 32)
//   - "seed": noise seed (default 1)
type TestPattern struct {
	width, height int
}

// NewTestPattern creates a generator for width x height pictures.
func NewTestPattern(width, height int) *TestPattern {
	return &TestPattern{width: width, height: height}
}

func (s *TestPattern) Generate(_ context.Context, pos int, frame *Frame, props *Properties) error {
	pattern, err := ParsePatternType(props.GetString("pattern", ""))
	if err != nil {
		return err
	}
	img := NewImage(s.width, s.height, PixelFormatI420)
	switch pattern {
	case PatternColorBars:
		drawColorBars(img)
	case PatternGradient:
		drawGradient(img)
	case PatternCheckerboard:
		drawCheckerboard(img, props.IntOr("checker_size", 32))
	case PatternNoise:
		drawNoise(img, uint64(props.IntOr("seed", 1)), pos)
	case PatternMovingBox:
		drawMovingBox(img, pos)
	}
	frame.Image = img
	return nil
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

func drawColorBars(img *Image) {
	w, h := img.Width, img.Height
	barWidth := max(w/8, 1)
	yPlane, uPlane, vPlane := img.Data[0], img.Data[1], img.Data[2]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			barIdx := min(x/barWidth, 7)
			rgb := colorBarsRGB[barIdx]
			yVal, u, v := rgbToYUV(rgb[0], rgb[1], rgb[2])

			yPlane[y*img.Stride[0]+x] = yVal
			if x%2 == 0 && y%2 == 0 {
				uvIdx := (y/2)*img.Stride[1] + x/2
				if uvIdx < len(uPlane) {
					uPlane[uvIdx] = u
					vPlane[uvIdx] = v
				}
			}
		}
	}
}

func drawGradient(img *Image) {
	w, h := img.Width, img.Height
	for y := 0; y < h; y++ {
		row := img.Data[0][y*img.Stride[0]:]
		for x := 0; x < w; x++ {
			row[x] = uint8((x * 255) / w)
		}
	}
	fillBytes(img.Data[1], 128)
	fillBytes(img.Data[2], 128)
}

func drawCheckerboard(img *Image, size int) {
	if size <= 0 {
		size = 32
	}
	w, h := img.Width, img.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var yVal uint8 = 16
			if ((x/size)+(y/size))%2 == 0 {
				yVal = 235
			}
			img.Data[0][y*img.Stride[0]+x] = yVal
		}
	}
	fillBytes(img.Data[1], 128)
	fillBytes(img.Data[2], 128)
}

// drawNoise fills luma with xorshift64 noise. The state is derived from the
// position so a seek reproduces the same picture.
func drawNoise(img *Image, seed uint64, pos int) {
	state := seed*0x9E3779B97F4A7C15 + uint64(pos+1)*0xBF58476D1CE4E5B9
	if state == 0 {
		state = 1
	}
	for i := range img.Data[0] {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		img.Data[0][i] = uint8(state)
	}
	fillBytes(img.Data[1], 128)
	fillBytes(img.Data[2], 128)
}

func drawMovingBox(img *Image, pos int) {
	w, h := img.Width, img.Height
	img.Fill(16, 128, 128)

	// Box moves in a circle
	boxSize := max(min(w, h)/5, 2)
	radius := float64(min(w, h)) / 4
	angle := float64(pos) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	for y := max(boxY, 0); y < boxY+boxSize && y < h; y++ {
		for x := max(boxX, 0); x < boxX+boxSize && x < w; x++ {
			img.Data[0][y*img.Stride[0]+x] = 235
		}
	}
}

// rgbToYUV converts RGB to YUV (BT.601)
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(clamp(yf, 16, 235))
	u = uint8(clamp(uf, 16, 240))
	v = uint8(clamp(vf, 16, 240))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func init() {
	registerBuiltin(KindProducer, "testpattern", func(bc *BuildContext) (Service, error) {
		if _, err := ParsePatternType(bc.Arg); err != nil {
			return nil, err
		}
		c := NewClip(bc.Profile, bc.ID, NewTestPattern(bc.Profile.Width(), bc.Profile.Height()), bc.Logger)
		if bc.Arg != "" {
			c.Properties().Set("pattern", bc.Arg)
		}
		return c, nil
	})
	registerBuiltin(KindProducer, "noise", func(bc *BuildContext) (Service, error) {
		c := NewClip(bc.Profile, bc.ID, NewTestPattern(bc.Profile.Width(), bc.Profile.Height()), bc.Logger)
		c.Properties().Set("pattern", PatternNoise.String())
		return c, nil
	})
}
