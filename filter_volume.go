package mediagraph

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// volumeProcessor multiplies samples by the "gain" property (default 1.0).
// S16 samples saturate.
type volumeProcessor struct{}

func (volumeProcessor) Process(_ context.Context, frame *Frame, props *Properties) error {
	if frame.Audio == nil {
		return nil
	}
	gain := props.DoubleOr("gain", 1.0)
	if gain < 0 {
		return fmt.Errorf("volume gain %g is negative", gain)
	}
	if gain == 1.0 {
		return nil
	}
	scaleAudio(frame.Audio, gain)
	return nil
}

func scaleAudio(a *Audio, gain float64) {
	switch a.Format {
	case AudioFormatS16:
		for i := 0; i+1 < len(a.Data); i += 2 {
			s := float64(int16(binary.LittleEndian.Uint16(a.Data[i:])))
			binary.LittleEndian.PutUint16(a.Data[i:], uint16(clampS16(s*gain)))
		}
	case AudioFormatF32:
		for i := 0; i+3 < len(a.Data); i += 4 {
			s := math.Float32frombits(binary.LittleEndian.Uint32(a.Data[i:]))
			binary.LittleEndian.PutUint32(a.Data[i:], math.Float32bits(s*float32(gain)))
		}
	}
}

func clampS16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

func init() {
	registerBuiltin(KindFilter, "volume", func(bc *BuildContext) (Service, error) {
		f := NewFilter(bc.Profile, bc.ID, volumeProcessor{}, bc.Logger)
		if bc.Arg != "" {
			gain, err := strconv.ParseFloat(bc.Arg, 64)
			if err != nil {
				return nil, fmt.Errorf("volume gain %q: %w", bc.Arg, ErrInvalidArgument)
			}
			f.Properties().SetDouble("gain", gain)
		}
		return f, nil
	})
}
