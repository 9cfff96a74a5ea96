package mediagraph

import (
	"context"
	"fmt"
	"log/slog"
)

// Per-frame properties set by playlists.
const (
	FramePropEntry         = "playlist_entry"
	FramePropEntryPosition = "entry_position"
	FramePropBlank         = "blank"
)

// ClipInfo describes a playlist entry.
type ClipInfo struct {
	Index    int
	Producer Producer // nil for blanks
	In       int
	Out      int // inclusive, Unbounded plays to end of stream
	Start    int // global position of the first frame
	Length   int // Unbounded for endless entries
}

type playlistEntry struct {
	producer Producer
	in, out  int
}

func (e *playlistEntry) length() int {
	if e.out != Unbounded {
		return e.out - e.in + 1
	}
	if e.producer == nil {
		return 0
	}
	if n := e.producer.Length(); n != Unbounded {
		if n-e.in < 0 {
			return 0
		}
		return n - e.in
	}
	return Unbounded
}

// Playlist concatenates producers into a single virtual producer. Frames of
// each entry are delivered in order before the next entry starts.
type Playlist struct {
	producerCore
	entries []*playlistEntry

	current int // entry index
	offset  int // frames delivered from the current entry
	primed  bool
}

// NewPlaylist creates an empty playlist. profile may be nil, in which case
// frames are stamped with the profile of the entry producing them.
func NewPlaylist(profile *Profile, logger *slog.Logger) *Playlist {
	p := &Playlist{}
	p.init(KindPlaylist, "playlist", profile, logger)
	return p
}

// Append adds producer to the end, played from its start to end of stream.
func (p *Playlist) Append(producer Producer) error {
	return p.AppendIO(producer, 0, Unbounded)
}

// AppendIO adds the inclusive range [in, out] of producer to the end.
func (p *Playlist) AppendIO(producer Producer, in, out int) error {
	if p.isClosed() {
		return ErrClosed
	}
	if producer == nil {
		return fmt.Errorf("playlist append: %w: nil producer", ErrInvalidArgument)
	}
	if producer == Producer(p) {
		return fmt.Errorf("playlist append: %w: playlist cannot contain itself", ErrInvalidArgument)
	}
	if in < 0 || (out != Unbounded && out < in) {
		return fmt.Errorf("playlist append: %w: in=%d out=%d", ErrInvalidIndex, in, out)
	}
	p.entries = append(p.entries, &playlistEntry{producer: producer, in: in, out: out})
	markConnected(producer)
	return nil
}

// AppendBlank adds length frames of black.
func (p *Playlist) AppendBlank(length int) error {
	if p.isClosed() {
		return ErrClosed
	}
	if length <= 0 {
		return fmt.Errorf("playlist blank: %w: length %d", ErrInvalidIndex, length)
	}
	p.entries = append(p.entries, &playlistEntry{in: 0, out: length - 1})
	return nil
}

// Count returns the number of entries.
func (p *Playlist) Count() int { return len(p.entries) }

// Clip describes entry index.
func (p *Playlist) Clip(index int) (ClipInfo, error) {
	if index < 0 || index >= len(p.entries) {
		return ClipInfo{}, fmt.Errorf("playlist clip: %w: %d", ErrInvalidIndex, index)
	}
	start := 0
	for i := 0; i < index; i++ {
		n := p.entries[i].length()
		if n == Unbounded {
			start = Unbounded
			break
		}
		start += n
	}
	e := p.entries[index]
	return ClipInfo{
		Index:    index,
		Producer: e.producer,
		In:       e.in,
		Out:      e.out,
		Start:    start,
		Length:   e.length(),
	}, nil
}

// Remove deletes entry index. The removed producer is not closed.
func (p *Playlist) Remove(index int) error {
	if index < 0 || index >= len(p.entries) {
		return fmt.Errorf("playlist remove: %w: %d", ErrInvalidIndex, index)
	}
	p.entries = append(p.entries[:index:index], p.entries[index+1:]...)
	if index < p.current {
		p.current--
	} else if index == p.current {
		p.offset = 0
		p.primed = false
	}
	return nil
}

// Length returns the sum of the entry lengths, or Unbounded if any entry is
// endless.
func (p *Playlist) Length() int {
	total := 0
	for _, e := range p.entries {
		n := e.length()
		if n == Unbounded {
			return Unbounded
		}
		total += n
	}
	return total
}

// Seek moves the global cursor. The entry containing position is positioned
// at the matching frame.
func (p *Playlist) Seek(position int) error {
	if p.isClosed() {
		return ErrClosed
	}
	if position < 0 {
		return fmt.Errorf("%w: seek to %d", ErrInvalidIndex, position)
	}
	start := 0
	for i, e := range p.entries {
		n := e.length()
		if n == Unbounded || position < start+n {
			offset := position - start
			if e.producer != nil {
				if err := e.producer.Seek(e.in + offset); err != nil {
					return err
				}
			}
			p.current, p.offset, p.primed = i, offset, true
			p.position = position
			p.exhausted = false
			return nil
		}
		start += n
	}
	p.current, p.offset, p.primed = len(p.entries), 0, false
	p.position = position
	p.exhausted = false
	return nil
}

// GetFrame returns the next frame of the entry under the cursor, moving to
// the following entry when the current one is exhausted.
func (p *Playlist) GetFrame(ctx context.Context) (*Frame, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.exhausted {
		return nil, ErrEndOfStream
	}

	for p.current < len(p.entries) {
		e := p.entries[p.current]
		if !p.primed {
			if e.producer != nil {
				if err := e.producer.Seek(e.in); err != nil {
					return nil, fmt.Errorf("playlist entry %d: %w", p.current, err)
				}
			}
			p.offset = 0
			p.primed = true
		}

		if n := e.length(); n != Unbounded && p.offset >= n {
			p.next()
			continue
		}

		var frame *Frame
		profile := p.profile
		if e.producer == nil {
			frame = p.blankFrame()
		} else {
			f, err := e.producer.GetFrame(ctx)
			if IsEndOfStream(err) {
				p.next()
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("playlist entry %d: %w", p.current, err)
			}
			frame = f
			if profile == nil {
				profile = e.producer.Profile()
			}
		}

		frame.props.SetInt(FramePropEntry, p.current)
		frame.props.SetInt(FramePropEntryPosition, e.in+p.offset)
		frame.SetPosition(p.position, profile)
		p.offset++
		p.position++

		if err := p.applyFilters(ctx, frame); err != nil {
			frame.Close()
			return nil, err
		}
		return frame, nil
	}

	p.exhausted = true
	return nil, ErrEndOfStream
}

func (p *Playlist) next() {
	p.current++
	p.offset = 0
	p.primed = false
}

func (p *Playlist) blankFrame() *Frame {
	f := NewFrame(p.position, p.profile)
	f.props.SetInt(FramePropBlank, 1)
	if p.profile != nil {
		f.Image = NewImage(p.profile.Width(), p.profile.Height(), PixelFormatI420)
		f.Image.Fill(16, 128, 128)
	}
	return f
}

// Close closes the playlist. Entry producers are owned by the caller.
func (p *Playlist) Close() error {
	if !p.closeCore() {
		return nil
	}
	p.entries = nil
	return nil
}
