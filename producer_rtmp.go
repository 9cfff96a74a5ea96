package mediagraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

// MimeTypeH264 is the codec of packets delivered by the rtmp producer.
const MimeTypeH264 = "video/H264"

// DefaultRTMPAddr is the listen address of the rtmp producer.
const DefaultRTMPAddr = ":1935"

// rtmpIngest is a live generator fed by an RTMP publisher. Each H.264 video
// message becomes one frame carrying an Annex-B packet.
type rtmpIngest struct {
	ln      net.Listener
	packets chan *Packet
	closed  atomic.Bool
	done    chan struct{}
	next    int
	logger  *slog.Logger

	mu      sync.Mutex
	config  *avcConfig
	dropped uint64
}

func listenRTMP(addr string, logger *slog.Logger) (*rtmpIngest, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	g := &rtmpIngest{
		ln:      ln,
		packets: make(chan *Packet, 60),
		done:    make(chan struct{}),
		logger:  logger,
	}

	srv := rtmp.NewServer(&rtmp.ServerConfig{
		OnConnect: func(conn net.Conn) (io.ReadWriteCloser, *rtmp.ConnConfig) {
			return conn, &rtmp.ConnConfig{
				Handler: &rtmpHandler{ingest: g},
				ControlState: rtmp.StreamControlStateConfig{
					DefaultBandwidthWindowSize: 6 * 1024 * 1024,
				},
			}
		},
	})
	go func() {
		srv.Serve(ln)
		g.Close()
	}()

	logger.Info("rtmp listening", "addr", ln.Addr().String())
	return g, nil
}

// Addr returns the listening address.
func (g *rtmpIngest) Addr() net.Addr { return g.ln.Addr() }

func (g *rtmpIngest) push(p *Packet) {
	if g.closed.Load() {
		return
	}
	select {
	case g.packets <- p:
	default:
		g.mu.Lock()
		g.dropped++
		g.mu.Unlock()
	}
}

// Seek only accepts the live position.
func (g *rtmpIngest) Seek(pos int) error {
	if pos != g.next {
		return fmt.Errorf("rtmp seek to %d: %w", pos, ErrNotSupported)
	}
	return nil
}

func (g *rtmpIngest) Generate(ctx context.Context, _ int, frame *Frame, _ *Properties) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrEndOfStream
	case p := <-g.packets:
		frame.Packet = p
		g.mu.Lock()
		frame.props.SetInt("dropped", int(g.dropped))
		g.mu.Unlock()
		g.next++
		return nil
	}
}

func (g *rtmpIngest) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	close(g.done)
	return g.ln.Close()
}

type rtmpHandler struct {
	rtmp.DefaultHandler
	ingest *rtmpIngest
}

func (h *rtmpHandler) OnPublish(_ *rtmp.StreamContext, _ uint32, cmd *rtmpmsg.NetStreamPublish) error {
	h.ingest.logger.Info("rtmp publish", "name", cmd.PublishingName)
	return nil
}

func (h *rtmpHandler) OnVideo(_ uint32, payload io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, payload); err != nil {
		return nil
	}
	data := buf.Bytes()
	if len(data) < 5 {
		return nil
	}

	// FLV video tag header
	frameType := (data[0] >> 4) & 0x0F
	codecID := data[0] & 0x0F
	if codecID != 7 { // Not AVC/H.264
		return nil
	}

	g := h.ingest
	avcType := data[1]
	avcData := data[5:]

	switch avcType {
	case 0: // Sequence header
		cfg, err := parseAVCConfig(avcData)
		if err != nil {
			g.logger.Debug("ignoring sequence header", "error", err)
			return nil
		}
		g.mu.Lock()
		g.config = cfg
		g.mu.Unlock()

	case 1: // NALU
		g.mu.Lock()
		cfg := g.config
		g.mu.Unlock()
		if cfg == nil {
			return nil
		}
		units, err := splitLengthPrefixed(avcData, cfg.lengthSize)
		if err != nil || len(units) == 0 {
			g.logger.Debug("dropping video tag", "error", err)
			return nil
		}
		isKey := frameType == 1
		var annexB []byte
		if isKey {
			annexB = appendAnnexB(annexB, cfg.paramSets...)
		}
		g.push(&Packet{
			Codec:    MimeTypeH264,
			Data:     appendAnnexB(annexB, units...),
			Keyframe: isKey,
		})
	}
	return nil
}

func (h *rtmpHandler) OnClose() {
	h.ingest.logger.Info("rtmp publisher disconnected")
}

func init() {
	registerBuiltin(KindProducer, "rtmp", func(bc *BuildContext) (Service, error) {
		addr := bc.Arg
		if addr == "" {
			addr = DefaultRTMPAddr
		}
		g, err := listenRTMP(addr, bc.Logger.With("component", "rtmp"))
		if err != nil {
			return nil, err
		}
		c := NewClip(bc.Profile, bc.ID, g, bc.Logger)
		c.Properties().Set("listen", g.Addr().String())
		return c, nil
	})
}
