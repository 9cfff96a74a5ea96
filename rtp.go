package mediagraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// Default MTU for RTP packets (UDP safe)
const DefaultMTU = 1200

// RTPClockRate is the timestamp clock of every packetized stream.
const RTPClockRate = 90000

const rtpHeaderSize = 12

// H264 NAL unit types
const (
	nalTypeIDR  = 5
	nalTypeSTAP = 24
	nalTypeFUA  = 28 // Fragmentation Unit A
)

// RTPTimestamp converts a frame timestamp in nanoseconds to the 90 kHz RTP
// clock.
func RTPTimestamp(ns int64) uint32 {
	return uint32(ns / 100000 * 9)
}

// RTPPacketizer segments frames into RTP packets. Frames carrying an H.264
// packet are sent as RFC 6184 NAL units; any other frame has its raw payload
// split into MTU-sized chunks. The marker bit closes each frame.
type RTPPacketizer struct {
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	mu          sync.Mutex
}

// NewRTPPacketizer creates a packetizer. A non-positive mtu selects DefaultMTU.
func NewRTPPacketizer(ssrc uint32, payloadType uint8, mtu int) *RTPPacketizer {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &RTPPacketizer{
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

func (p *RTPPacketizer) SSRC() uint32       { return p.ssrc }
func (p *RTPPacketizer) PayloadType() uint8 { return p.payloadType }
func (p *RTPPacketizer) MTU() int           { return p.mtu }

// Packetize converts frame into RTP packets. Frames with nothing to send
// produce no packets.
func (p *RTPPacketizer) Packetize(frame *Frame) ([]*rtp.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := RTPTimestamp(frame.Timestamp())
	if pkt := frame.Packet; pkt != nil && pkt.Codec == MimeTypeH264 {
		nalUnits := parseAnnexBNALUnits(pkt.Data)
		if len(nalUnits) == 0 {
			return nil, fmt.Errorf("frame %d: no NAL units in H264 packet", frame.Position())
		}
		var packets []*rtp.Packet
		for i, nalu := range nalUnits {
			isLast := i == len(nalUnits)-1
			if len(nalu) <= p.mtu-rtpHeaderSize {
				packets = append(packets, p.packet(nalu, ts, isLast))
			} else {
				packets = append(packets, p.fragmentNALUnit(nalu, ts, isLast)...)
			}
		}
		return packets, nil
	}

	payload := frame.Payload()
	if len(payload) == 0 {
		return nil, nil
	}
	maxPayload := p.mtu - rtpHeaderSize
	packets := make([]*rtp.Packet, 0, (len(payload)+maxPayload-1)/maxPayload)
	for offset := 0; offset < len(payload); offset += maxPayload {
		end := min(offset+maxPayload, len(payload))
		packets = append(packets, p.packet(payload[offset:end], ts, end == len(payload)))
	}
	return packets, nil
}

func (p *RTPPacketizer) packet(payload []byte, ts uint32, marker bool) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequencer.NextSequenceNumber(),
			Timestamp:      ts,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}
}

// fragmentNALUnit fragments a large NAL unit into FU-A packets.
func (p *RTPPacketizer) fragmentNALUnit(nalu []byte, ts uint32, isLastNALU bool) []*rtp.Packet {
	nalHeader := nalu[0]
	nalType := nalHeader & 0x1F
	nri := nalHeader & 0x60

	payload := nalu[1:]
	maxPayload := p.mtu - rtpHeaderSize - 2 // FU indicator + FU header

	var packets []*rtp.Packet
	for offset := 0; offset < len(payload); {
		end := min(offset+maxPayload, len(payload))
		isEnd := end == len(payload)

		fuHeader := nalType
		if offset == 0 {
			fuHeader |= 0x80 // Start bit
		}
		if isEnd {
			fuHeader |= 0x40 // End bit
		}

		buf := make([]byte, 2+end-offset)
		buf[0] = nri | nalTypeFUA
		buf[1] = fuHeader
		copy(buf[2:], payload[offset:end])

		packets = append(packets, p.packet(buf, ts, isEnd && isLastNALU))
		offset = end
	}
	return packets
}

// parseAnnexBNALUnits splits Annex B data on 3- and 4-byte start codes.
func parseAnnexBNALUnits(data []byte) [][]byte {
	var nalUnits [][]byte
	start := -1
	emit := func(end int) {
		if start >= 0 && end > start {
			nalUnits = append(nalUnits, data[start:end])
		}
	}

	for i := 0; i < len(data); i++ {
		if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			emit(i)
			start = i + 4
			i += 3
		} else if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			emit(i)
			start = i + 3
			i += 2
		}
	}
	emit(len(data))
	return nalUnits
}

// avcConfig is a decoded AVCDecoderConfigurationRecord.
type avcConfig struct {
	lengthSize int
	// paramSets holds the SPS units followed by the PPS units.
	paramSets [][]byte
}

// parseAVCConfig decodes the record carried by an AVC sequence header.
func parseAVCConfig(rec []byte) (*avcConfig, error) {
	if len(rec) < 6 || rec[0] != 1 {
		return nil, fmt.Errorf("avc config: bad header: %w", ErrInvalidArgument)
	}
	cfg := &avcConfig{lengthSize: int(rec[4]&0x03) + 1}
	rest := rec[5:]
	for _, countMask := range []byte{0x1f, 0xff} {
		if len(rest) == 0 {
			return nil, fmt.Errorf("avc config: missing parameter set count: %w", ErrInvalidArgument)
		}
		count := int(rest[0] & countMask)
		rest = rest[1:]
		for ; count > 0; count-- {
			if len(rest) < 2 {
				return nil, fmt.Errorf("avc config: truncated parameter set: %w", ErrInvalidArgument)
			}
			size := int(binary.BigEndian.Uint16(rest))
			if len(rest) < 2+size {
				return nil, fmt.Errorf("avc config: truncated parameter set: %w", ErrInvalidArgument)
			}
			cfg.paramSets = append(cfg.paramSets, bytes.Clone(rest[2:2+size]))
			rest = rest[2+size:]
		}
	}
	return cfg, nil
}

// splitLengthPrefixed splits AVCC data into NAL units. The units alias data.
func splitLengthPrefixed(data []byte, lengthSize int) ([][]byte, error) {
	var units [][]byte
	for len(data) > 0 {
		if len(data) < lengthSize {
			return units, fmt.Errorf("avcc: truncated length: %w", ErrInvalidArgument)
		}
		n := 0
		for _, b := range data[:lengthSize] {
			n = n<<8 | int(b)
		}
		data = data[lengthSize:]
		if n == 0 || n > len(data) {
			return units, fmt.Errorf("avcc: unit of %d bytes in %d: %w", n, len(data), ErrInvalidArgument)
		}
		units = append(units, data[:n])
		data = data[n:]
	}
	return units, nil
}

// appendAnnexB appends each unit to dst behind a 4-byte start code.
func appendAnnexB(dst []byte, units ...[]byte) []byte {
	for _, u := range units {
		dst = append(dst, 0, 0, 0, 1)
		dst = append(dst, u...)
	}
	return dst
}

// RTPAssembler rebuilds frame payloads from packets produced by an
// RTPPacketizer. Packets older than the frame in progress are dropped.
type RTPAssembler struct {
	h264        bool
	data        []byte
	fuaBuffer   []byte
	fragmenting bool
	keyframe    bool
	timestamp   uint32
	started     bool
}

// NewRTPAssembler creates an assembler. With h264 set, payloads are parsed
// as RFC 6184 NAL units and rebuilt in Annex B form.
func NewRTPAssembler(h264 bool) *RTPAssembler {
	return &RTPAssembler{h264: h264}
}

// Push adds a packet. It returns the completed payload when pkt carries the
// marker bit, and nil otherwise.
func (a *RTPAssembler) Push(pkt *rtp.Packet) (*Packet, error) {
	if a.started && pkt.Timestamp != a.timestamp {
		if IsRTPTimestampOlder(pkt.Timestamp, a.timestamp) {
			return nil, nil
		}
		a.reset()
	}
	a.started = true
	a.timestamp = pkt.Timestamp

	if a.h264 {
		if err := a.pushH264(pkt.Payload); err != nil {
			return nil, err
		}
	} else {
		a.data = append(a.data, pkt.Payload...)
	}

	if !pkt.Marker || len(a.data) == 0 {
		return nil, nil
	}
	out := &Packet{Data: append([]byte(nil), a.data...), Keyframe: a.keyframe}
	if a.h264 {
		out.Codec = MimeTypeH264
	}
	a.reset()
	a.started = false
	return out, nil
}

// Timestamp returns the RTP timestamp of the last pushed packet.
func (a *RTPAssembler) Timestamp() uint32 { return a.timestamp }

func (a *RTPAssembler) pushH264(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	nalType := payload[0] & 0x1F

	switch {
	case nalType >= 1 && nalType <= 23:
		a.appendNALU(payload)

	case nalType == nalTypeSTAP:
		for offset := 1; offset+2 <= len(payload); {
			size := int(payload[offset])<<8 | int(payload[offset+1])
			offset += 2
			if offset+size > len(payload) {
				break
			}
			a.appendNALU(payload[offset : offset+size])
			offset += size
		}

	case nalType == nalTypeFUA:
		if len(payload) < 2 {
			return fmt.Errorf("FU-A packet too short")
		}
		fuIndicator, fuHeader := payload[0], payload[1]
		if fuHeader&0x80 != 0 {
			a.fuaBuffer = append(a.fuaBuffer[:0], (fuIndicator&0xE0)|(fuHeader&0x1F))
			a.fragmenting = true
		}
		if !a.fragmenting {
			return nil
		}
		a.fuaBuffer = append(a.fuaBuffer, payload[2:]...)
		if fuHeader&0x40 != 0 {
			a.appendNALU(a.fuaBuffer)
			a.fuaBuffer = a.fuaBuffer[:0]
			a.fragmenting = false
		}

	default:
		return fmt.Errorf("unsupported NAL type: %d", nalType)
	}
	return nil
}

func (a *RTPAssembler) appendNALU(nalu []byte) {
	if len(nalu) == 0 {
		return
	}
	if nalu[0]&0x1F == nalTypeIDR {
		a.keyframe = true
	}
	a.data = append(a.data, 0, 0, 0, 1)
	a.data = append(a.data, nalu...)
}

func (a *RTPAssembler) reset() {
	a.data = a.data[:0]
	a.fuaBuffer = a.fuaBuffer[:0]
	a.fragmenting = false
	a.keyframe = false
}

// IsRTPTimestampOlder returns true if ts1 is older than or equal to ts2,
// handling 32-bit wraparound correctly per RTP timestamp comparison rules.
func IsRTPTimestampOlder(ts1, ts2 uint32) bool {
	if ts1 == ts2 {
		return true
	}
	diff := ts2 - ts1
	return diff < 0x80000000
}
