package mediagraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// wsSink streams frames to the websocket URL in the "resource" property.
// The first binary message is a msgpack DumpHeader; each frame follows as
// one msgpack FrameRecord message.
//
// Properties:
//   - "handshake_timeout": dial timeout in milliseconds (default 10000)
type wsSink struct {
	profile *Profile

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Open(ctx context.Context, props *Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	url := props.GetString("resource", "")
	if url == "" {
		return fmt.Errorf("ws consumer needs a URL: %w", ErrInvalidArgument)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(props.IntOr("handshake_timeout", 10000)) * time.Millisecond,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("ws dial %s: %w", url, err)
	}

	hdr := NewDumpHeader(s.profile)
	if err := s.send(conn, &hdr); err != nil {
		conn.Close()
		return err
	}
	s.conn = conn
	return nil
}

func (s *wsSink) send(conn *websocket.Conn, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsSink) WriteFrame(_ context.Context, frame *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("ws consumer: %w", ErrClosed)
	}
	return s.send(s.conn, NewFrameRecord(frame))
}

func (s *wsSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	return err
}

func init() {
	registerBuiltin(KindConsumer, "ws", func(bc *BuildContext) (Service, error) {
		return NewConsumer(bc.Profile, bc.ID, &wsSink{profile: bc.Profile}, bc.Logger), nil
	})
}
