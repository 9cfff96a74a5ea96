package mediagraph

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// DumpMagic identifies a frame dump stream.
const DumpMagic = "mediagraph-dump"

// DumpVersion is the current frame dump format version.
const DumpVersion = 1

// DumpHeader opens every frame dump stream.
type DumpHeader struct {
	Magic   string `msgpack:"magic"`
	Version int    `msgpack:"version"`
	Profile string `msgpack:"profile,omitempty"`
	Width   int    `msgpack:"width"`
	Height  int    `msgpack:"height"`
	RateNum int    `msgpack:"rate_num"`
	RateDen int    `msgpack:"rate_den"`
}

// NewDumpHeader describes a stream of frames stamped for profile, which may
// be nil.
func NewDumpHeader(profile *Profile) DumpHeader {
	hdr := DumpHeader{Magic: DumpMagic, Version: DumpVersion}
	if profile != nil {
		rate := profile.FrameRate()
		hdr.Profile = profile.Name()
		hdr.Width, hdr.Height = profile.Width(), profile.Height()
		hdr.RateNum, hdr.RateDen = rate.Num, rate.Den
	}
	return hdr
}

// FrameRecord is the serialized form of a Frame. Track frames are not
// recorded.
type FrameRecord struct {
	Position int               `msgpack:"pos"`
	Props    map[string]string `msgpack:"props,omitempty"`

	Width   int      `msgpack:"w,omitempty"`
	Height  int      `msgpack:"h,omitempty"`
	Format  int      `msgpack:"fmt,omitempty"`
	Strides []int    `msgpack:"strides,omitempty"`
	Planes  [][]byte `msgpack:"planes,omitempty"`

	SampleRate  int    `msgpack:"rate,omitempty"`
	Channels    int    `msgpack:"ch,omitempty"`
	Samples     int    `msgpack:"n,omitempty"`
	AudioFormat int    `msgpack:"afmt,omitempty"`
	Audio       []byte `msgpack:"audio,omitempty"`

	Codec    string `msgpack:"codec,omitempty"`
	Packet   []byte `msgpack:"pkt,omitempty"`
	Keyframe bool   `msgpack:"key,omitempty"`
}

// NewFrameRecord captures frame.
func NewFrameRecord(frame *Frame) *FrameRecord {
	rec := &FrameRecord{Position: frame.Position(), Props: make(map[string]string)}
	for _, name := range frame.props.Names() {
		v, _ := frame.props.Get(name)
		rec.Props[name] = v
	}
	if img := frame.Image; img != nil {
		rec.Width, rec.Height, rec.Format = img.Width, img.Height, int(img.Format)
		rec.Strides = img.Stride
		rec.Planes = img.Data
	}
	if a := frame.Audio; a != nil {
		rec.SampleRate, rec.Channels, rec.Samples = a.SampleRate, a.Channels, a.Samples
		rec.AudioFormat = int(a.Format)
		rec.Audio = a.Data
	}
	if p := frame.Packet; p != nil {
		rec.Codec, rec.Packet, rec.Keyframe = p.Codec, p.Data, p.Keyframe
	}
	return rec
}

// Frame rebuilds a frame stamped for profile, which may be nil.
func (r *FrameRecord) Frame(profile *Profile) *Frame {
	f := NewFrame(r.Position, profile)
	for k, v := range r.Props {
		f.props.Set(k, v)
	}
	if len(r.Planes) > 0 {
		f.Image = &Image{
			Data:   r.Planes,
			Stride: r.Strides,
			Width:  r.Width,
			Height: r.Height,
			Format: PixelFormat(r.Format),
		}
	}
	if r.Audio != nil || r.Samples > 0 {
		f.Audio = &Audio{
			Data:       r.Audio,
			SampleRate: r.SampleRate,
			Channels:   r.Channels,
			Samples:    r.Samples,
			Format:     AudioFormat(r.AudioFormat),
		}
	}
	if r.Packet != nil {
		f.Packet = &Packet{Codec: r.Codec, Data: r.Packet, Keyframe: r.Keyframe}
	}
	return f
}

// DumpWriter writes a frame dump stream.
type DumpWriter struct {
	bw  *bufio.Writer
	enc *msgpack.Encoder
}

// NewDumpWriter writes the header for profile to w.
func NewDumpWriter(w io.Writer, profile *Profile) (*DumpWriter, error) {
	bw := bufio.NewWriter(w)
	dw := &DumpWriter{bw: bw, enc: msgpack.NewEncoder(bw)}
	hdr := NewDumpHeader(profile)
	if err := dw.enc.Encode(&hdr); err != nil {
		return nil, fmt.Errorf("write dump header: %w", err)
	}
	return dw, nil
}

// WriteFrame appends frame.
func (w *DumpWriter) WriteFrame(frame *Frame) error {
	if err := w.enc.Encode(NewFrameRecord(frame)); err != nil {
		return fmt.Errorf("write frame %d: %w", frame.Position(), err)
	}
	return nil
}

// Flush writes buffered records to the underlying writer.
func (w *DumpWriter) Flush() error { return w.bw.Flush() }

// DumpReader reads a frame dump stream.
type DumpReader struct {
	dec    *msgpack.Decoder
	header DumpHeader
}

// NewDumpReader reads and checks the stream header.
func NewDumpReader(r io.Reader) (*DumpReader, error) {
	dr := &DumpReader{dec: msgpack.NewDecoder(bufio.NewReader(r))}
	if err := dr.dec.Decode(&dr.header); err != nil {
		return nil, fmt.Errorf("read dump header: %w", err)
	}
	if dr.header.Magic != DumpMagic {
		return nil, fmt.Errorf("not a frame dump (magic %q)", dr.header.Magic)
	}
	if dr.header.Version > DumpVersion {
		return nil, fmt.Errorf("unsupported frame dump version %d", dr.header.Version)
	}
	return dr, nil
}

// Header returns the stream header.
func (r *DumpReader) Header() DumpHeader { return r.header }

// Next returns the next record, or ErrEndOfStream after the last one.
func (r *DumpReader) Next() (*FrameRecord, error) {
	var rec FrameRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("read frame record: %w", err)
	}
	return &rec, nil
}
