package mediagraph

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// mixBlender mixes b's audio into a's. By default it cross-fades by
// progress; with "combine" set both inputs are summed. "gain" scales b in
// either mode. Images are untouched.
type mixBlender struct{}

func (mixBlender) Blend(_ context.Context, a, b *Frame, progress float64, props *Properties) error {
	if b.Audio == nil {
		return nil
	}
	if a.Audio == nil {
		a.Audio = b.Audio.Clone()
		scaleAudio(a.Audio, props.DoubleOr("gain", 1.0)*progress)
		return nil
	}
	if a.Audio.Format != b.Audio.Format || a.Audio.Channels != b.Audio.Channels {
		return fmt.Errorf("mix %s/%d with %s/%d: %w",
			a.Audio.Format, a.Audio.Channels, b.Audio.Format, b.Audio.Channels, ErrInvalidArgument)
	}

	ga, gb := 1-progress, progress
	if props.GetBool("combine") {
		ga, gb = 1, 1
	}
	gb *= props.DoubleOr("gain", 1.0)
	mixAudio(a.Audio, b.Audio, ga, gb)
	return nil
}

// mixAudio writes dst*ga + src*gb into dst over the shorter of the two.
func mixAudio(dst, src *Audio, ga, gb float64) {
	n := min(len(dst.Data), len(src.Data))
	switch dst.Format {
	case AudioFormatS16:
		for i := 0; i+1 < n; i += 2 {
			d := float64(int16(binary.LittleEndian.Uint16(dst.Data[i:])))
			s := float64(int16(binary.LittleEndian.Uint16(src.Data[i:])))
			binary.LittleEndian.PutUint16(dst.Data[i:], uint16(clampS16(d*ga+s*gb)))
		}
	case AudioFormatF32:
		for i := 0; i+3 < n; i += 4 {
			d := float64(math.Float32frombits(binary.LittleEndian.Uint32(dst.Data[i:])))
			s := float64(math.Float32frombits(binary.LittleEndian.Uint32(src.Data[i:])))
			binary.LittleEndian.PutUint32(dst.Data[i:], math.Float32bits(float32(d*ga+s*gb)))
		}
	}
}

func init() {
	registerBuiltin(KindTransition, "mix", func(bc *BuildContext) (Service, error) {
		return NewTransition(bc.Profile, bc.ID, mixBlender{}, bc.Logger), nil
	})
}
