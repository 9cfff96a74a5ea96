package mediagraph

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
)

// rtpSink sends frames as RTP over UDP to the "resource" host:port.
//
// Properties:
//   - "payload_type": RTP payload type (default 96)
//   - "mtu": maximum packet size (default 1200)
//   - "ssrc": stream source id (default random)
type rtpSink struct {
	mu         sync.Mutex
	conn       net.Conn
	packetizer *RTPPacketizer

	packets atomic.Uint64
}

func (s *rtpSink) Open(_ context.Context, props *Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	addr := props.GetString("resource", "")
	if addr == "" {
		return fmt.Errorf("rtp consumer needs host:port: %w", ErrInvalidArgument)
	}
	pt := props.IntOr("payload_type", 96)
	if pt < 0 || pt > 127 {
		return fmt.Errorf("rtp payload type %d: %w", pt, ErrInvalidArgument)
	}
	ssrc := uint32(props.GetInt("ssrc"))
	if ssrc == 0 {
		ssrc = rand.Uint32()
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.packetizer = NewRTPPacketizer(ssrc, uint8(pt), props.IntOr("mtu", DefaultMTU))
	return nil
}

func (s *rtpSink) WriteFrame(_ context.Context, frame *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("rtp consumer: %w", ErrClosed)
	}
	packets, err := s.packetizer.Packetize(frame)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		buf, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if _, err := s.conn.Write(buf); err != nil {
			return fmt.Errorf("rtp send: %w", err)
		}
		s.packets.Add(1)
	}
	return nil
}

// Packets returns the number of packets sent.
func (s *rtpSink) Packets() uint64 { return s.packets.Load() }

func (s *rtpSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func init() {
	registerBuiltin(KindConsumer, "rtp", func(bc *BuildContext) (Service, error) {
		return NewConsumer(bc.Profile, bc.ID, &rtpSink{}, bc.Logger), nil
	})
}
