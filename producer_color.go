package mediagraph

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RGBA is an 8-bit colour with alpha.
type RGBA struct {
	R, G, B, A uint8
}

// YUV converts the colour to BT.601 studio range.
func (c RGBA) YUV() (y, u, v uint8) { return rgbToYUV(c.R, c.G, c.B) }

var namedColors = map[string]RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 255, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"grey":    {128, 128, 128, 255},
	"gray":    {128, 128, 128, 255},
}

// ParseColor accepts a colour name, "#RRGGBB", "#RRGGBBAA" or "0xRRGGBBAA".
func ParseColor(s string) (RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}

	var hex string
	switch {
	case strings.HasPrefix(s, "#"):
		hex = s[1:]
	case strings.HasPrefix(s, "0x"):
		hex = s[2:]
	default:
		return RGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return RGBA{}, fmt.Errorf("malformed colour %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("malformed colour %q", s)
	}
	return RGBA{uint8(n >> 24), uint8(n >> 16), uint8(n >> 8), uint8(n)}, nil
}

// colorGenerator paints every frame with the "resource" colour.
type colorGenerator struct {
	width, height int
}

func (g *colorGenerator) Generate(_ context.Context, _ int, frame *Frame, props *Properties) error {
	c, err := ParseColor(props.GetString("resource", "black"))
	if err != nil {
		return err
	}
	frame.Image = NewImage(g.width, g.height, PixelFormatI420)
	frame.Image.Fill(c.YUV())
	frame.props.SetInt("alpha", int(c.A))
	return nil
}

// countGenerator stamps each frame with its source position. The luma plane
// carries the position modulo 220 above black.
type countGenerator struct {
	width, height int
}

func (g *countGenerator) Generate(_ context.Context, pos int, frame *Frame, _ *Properties) error {
	frame.Image = NewImage(g.width, g.height, PixelFormatI420)
	frame.Image.Fill(uint8(16+pos%220), 128, 128)
	frame.props.SetInt("count", pos)
	return nil
}

func init() {
	registerBuiltin(KindProducer, "color", func(bc *BuildContext) (Service, error) {
		arg := bc.Arg
		if arg == "" {
			arg = "black"
		}
		if _, err := ParseColor(arg); err != nil {
			return nil, err
		}
		c := NewClip(bc.Profile, bc.ID, &colorGenerator{bc.Profile.Width(), bc.Profile.Height()}, bc.Logger)
		c.Properties().Set("resource", arg)
		return c, nil
	})
	registerBuiltin(KindProducer, "blank", func(bc *BuildContext) (Service, error) {
		c := NewClip(bc.Profile, bc.ID, &colorGenerator{bc.Profile.Width(), bc.Profile.Height()}, bc.Logger)
		c.Properties().Set("resource", "black")
		if bc.Arg != "" {
			n, err := strconv.Atoi(bc.Arg)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("blank length %q must be a positive integer", bc.Arg)
			}
			c.Properties().SetInt("length", n)
		}
		return c, nil
	})
	registerBuiltin(KindProducer, "count", func(bc *BuildContext) (Service, error) {
		c := NewClip(bc.Profile, bc.ID, &countGenerator{bc.Profile.Width(), bc.Profile.Height()}, bc.Logger)
		if bc.Arg != "" {
			n, err := strconv.Atoi(bc.Arg)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("count length %q must be a positive integer", bc.Arg)
			}
			c.Properties().SetInt("length", n)
		}
		return c, nil
	})
}
