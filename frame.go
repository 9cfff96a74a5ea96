// Core frame, image and audio types pulled through the graph.
package mediagraph

// PixelFormat represents image pixel formats.
type PixelFormat int

const (
	PixelFormatI420   PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                      // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGB24                     // Packed RGB, 3 bytes per pixel
	PixelFormatRGBA32                    // Packed RGBA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA32:
		return "RGBA32"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	case PixelFormatRGB24, PixelFormatRGBA32:
		return 1 // Packed
	default:
		return 0
	}
}

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit PCM, interleaved
	AudioFormatF32                    // 32-bit float, interleaved
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// Image is a raw picture carried by a frame.
type Image struct {
	Data   [][]byte    // Plane data (1-3 planes depending on format)
	Stride []int       // Stride for each plane in bytes
	Width  int         // Width in pixels
	Height int         // Height in pixels
	Format PixelFormat // Pixel format
}

// NewImage allocates an image with tightly packed planes.
func NewImage(width, height int, format PixelFormat) *Image {
	img := &Image{Width: width, Height: height, Format: format}

	switch format {
	case PixelFormatI420:
		ySize := width * height
		uvSize := (width / 2) * (height / 2)
		buf := make([]byte, ySize+uvSize*2)
		img.Data = [][]byte{buf[:ySize], buf[ySize : ySize+uvSize], buf[ySize+uvSize:]}
		img.Stride = []int{width, width / 2, width / 2}
	case PixelFormatNV12:
		ySize := width * height
		uvSize := (width / 2) * (height / 2) * 2 // Interleaved UV
		buf := make([]byte, ySize+uvSize)
		img.Data = [][]byte{buf[:ySize], buf[ySize:]}
		img.Stride = []int{width, width}
	case PixelFormatRGB24:
		img.Data = [][]byte{make([]byte, width*height*3)}
		img.Stride = []int{width * 3}
	case PixelFormatRGBA32:
		img.Data = [][]byte{make([]byte, width*height*4)}
		img.Stride = []int{width * 4}
	}

	return img
}

// Clone creates a deep copy of the image.
func (i *Image) Clone() *Image {
	if i == nil {
		return nil
	}
	clone := &Image{
		Data:   make([][]byte, len(i.Data)),
		Stride: make([]int, len(i.Stride)),
		Width:  i.Width,
		Height: i.Height,
		Format: i.Format,
	}
	copy(clone.Stride, i.Stride)
	for n, plane := range i.Data {
		if plane != nil {
			clone.Data[n] = make([]byte, len(plane))
			copy(clone.Data[n], plane)
		}
	}
	return clone
}

// Fill paints an I420 image with a solid YUV colour.
func (i *Image) Fill(y, u, v byte) {
	if i.Format != PixelFormatI420 || len(i.Data) < 3 {
		return
	}
	fillBytes(i.Data[0], y)
	fillBytes(i.Data[1], u)
	fillBytes(i.Data[2], v)
}

func fillBytes(b []byte, v byte) {
	if len(b) == 0 {
		return
	}
	b[0] = v
	for n := 1; n < len(b); n *= 2 {
		copy(b[n:], b[:n])
	}
}

// Size returns the number of payload bytes across all planes.
func (i *Image) Size() int {
	n := 0
	for _, plane := range i.Data {
		n += len(plane)
	}
	return n
}

// Bytes returns all planes concatenated.
func (i *Image) Bytes() []byte {
	out := make([]byte, 0, i.Size())
	for _, plane := range i.Data {
		out = append(out, plane...)
	}
	return out
}

// I420Size returns the total buffer size needed for an I420 image.
func I420Size(width, height int) int {
	// Y plane: width * height
	// U plane: (width/2) * (height/2)
	// V plane: (width/2) * (height/2)
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}

// Audio holds raw interleaved audio samples carried by a frame.
type Audio struct {
	Data       []byte      // Sample data
	SampleRate int         // Sample rate (e.g., 48000)
	Channels   int         // Number of channels (1 = mono, 2 = stereo)
	Samples    int         // Number of samples (per channel)
	Format     AudioFormat // Sample format
}

// NewAudio allocates silent audio.
func NewAudio(sampleRate, channels, samples int, format AudioFormat) *Audio {
	return &Audio{
		Data:       make([]byte, samples*channels*format.BytesPerSample()),
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
		Format:     format,
	}
}

// Clone creates a deep copy of the audio.
func (a *Audio) Clone() *Audio {
	if a == nil {
		return nil
	}
	clone := &Audio{
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		Samples:    a.Samples,
		Format:     a.Format,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// SamplesPerFrame returns how many audio samples belong to the frame at
// position so that the running total never drifts from the exact rate.
func SamplesPerFrame(rate Rational, sampleRate, position int) int {
	return int(SampleOffset(rate, sampleRate, position+1) - SampleOffset(rate, sampleRate, position))
}

// SampleOffset returns the index of the first audio sample of the frame at
// position.
func SampleOffset(rate Rational, sampleRate, position int) int64 {
	if rate.Num <= 0 || rate.Den <= 0 {
		return 0
	}
	return (int64(position)*int64(sampleRate)*int64(rate.Den) + int64(rate.Num)/2) / int64(rate.Num)
}

// Packet is a compressed access unit carried through the graph untouched,
// such as an H.264 frame received from an ingest producer.
type Packet struct {
	Codec    string // MIME type, e.g. "video/H264"
	Data     []byte // Annex-B for H.264
	Keyframe bool
}

// Clone creates a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	c := *p
	c.Data = append([]byte(nil), p.Data...)
	return &c
}

// Frame is one unit of media at a position. It is created by every GetFrame
// call and owned by the caller until Close.
type Frame struct {
	Image *Image // Picture, nil for audio-only frames
	Audio *Audio // Samples, nil for video-only frames

	// Packet is set by producers that deliver compressed media.
	Packet *Packet

	// Tracks holds the per-track frames of a tractor pull. Exhausted
	// tracks are nil.
	Tracks []*Frame

	position int
	props    *Properties
}

// Per-frame property names.
const (
	FramePropPosition  = "position"
	FramePropTimestamp = "timestamp" // nanoseconds
	FramePropDuration  = "duration"  // nanoseconds
	FramePropSource    = "source"    // repository id of the producing service

	FramePropSourcePosition = "source_position" // position in the producer's own timeline
)

// NewFrame creates an empty frame at position stamped with timing derived
// from profile. profile may be nil.
func NewFrame(position int, profile *Profile) *Frame {
	f := &Frame{props: NewProperties()}
	f.SetPosition(position, profile)
	return f
}

// Position returns the frame's position in the pulling service's timeline.
func (f *Frame) Position() int { return f.position }

// SetPosition restamps the frame for a new timeline position.
func (f *Frame) SetPosition(position int, profile *Profile) {
	f.position = position
	f.props.SetInt(FramePropPosition, position)
	if profile != nil {
		f.props.SetInt(FramePropTimestamp, int(profile.Timestamp(position)))
		f.props.SetInt(FramePropDuration, int(profile.FrameDuration()))
	}
}

// Properties returns the per-frame metadata.
func (f *Frame) Properties() *Properties { return f.props }

// Timestamp returns the frame's presentation time in nanoseconds.
func (f *Frame) Timestamp() int64 { return int64(f.props.GetInt(FramePropTimestamp)) }

// Payload returns the image planes followed by the audio samples.
func (f *Frame) Payload() []byte {
	var out []byte
	if f.Image != nil {
		out = f.Image.Bytes()
	}
	if f.Audio != nil {
		out = append(out, f.Audio.Data...)
	}
	if f.Packet != nil {
		out = append(out, f.Packet.Data...)
	}
	return out
}

// Clone creates a deep copy of the frame, including track frames.
func (f *Frame) Clone() *Frame {
	clone := &Frame{
		Image:    f.Image.Clone(),
		Audio:    f.Audio.Clone(),
		Packet:   f.Packet.Clone(),
		position: f.position,
		props:    NewProperties(),
	}
	clone.props.Inherit(f.props)
	if f.Tracks != nil {
		clone.Tracks = make([]*Frame, len(f.Tracks))
		for i, t := range f.Tracks {
			if t != nil {
				clone.Tracks[i] = t.Clone()
			}
		}
	}
	return clone
}

// Close releases the frame's payload. The frame must not be used afterwards.
func (f *Frame) Close() {
	if f == nil {
		return
	}
	for _, t := range f.Tracks {
		t.Close()
	}
	f.Tracks = nil
	f.Image = nil
	f.Audio = nil
	f.Packet = nil
}
