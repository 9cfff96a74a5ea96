package mediagraph

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// toneGenerator produces a sine wave as interleaved S16 audio.
//
// Properties:
//   - "frequency": Hz (default 1000)
//   - "level": peak amplitude in [0, 1] (default 0.5)
//   - "sample_rate": samples per second (default 48000)
//   - "channels": default 2
type toneGenerator struct {
	rate Rational
}

func (g *toneGenerator) Generate(_ context.Context, pos int, frame *Frame, props *Properties) error {
	freq := props.DoubleOr("frequency", 1000)
	level := clamp01(props.DoubleOr("level", 0.5))
	sampleRate := props.IntOr("sample_rate", 48000)
	channels := props.IntOr("channels", 2)
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	if channels <= 0 {
		channels = 2
	}

	n := SamplesPerFrame(g.rate, sampleRate, pos)
	first := SampleOffset(g.rate, sampleRate, pos)
	audio := NewAudio(sampleRate, channels, n, AudioFormatS16)
	for i := 0; i < n; i++ {
		t := float64(first+int64(i)) / float64(sampleRate)
		s := int16(level * math.MaxInt16 * math.Sin(2*math.Pi*freq*t))
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(audio.Data[(i*channels+ch)*2:], uint16(s))
		}
	}
	frame.Audio = audio
	return nil
}

func init() {
	registerBuiltin(KindProducer, "tone", func(bc *BuildContext) (Service, error) {
		c := NewClip(bc.Profile, bc.ID, &toneGenerator{rate: bc.Profile.FrameRate()}, bc.Logger)
		if bc.Arg != "" {
			f, err := strconv.ParseFloat(bc.Arg, 64)
			if err != nil || f <= 0 {
				return nil, fmt.Errorf("tone frequency %q must be a positive number", bc.Arg)
			}
			c.Properties().SetDouble("frequency", f)
		}
		return c, nil
	})
}
