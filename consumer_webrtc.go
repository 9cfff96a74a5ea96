package mediagraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCSink publishes frames on a WebRTC track. Every viewer that
// negotiates through Answer or the HTTP offer endpoint receives the same
// RTP stream.
//
// Properties:
//   - "mime_type": track codec (default video/H264)
//   - "payload_type": RTP payload type (default 96)
//   - "listen": when set, serve POST /offer on this address (factory arg)
type WebRTCSink struct {
	logger *slog.Logger

	mu         sync.Mutex
	track      *webrtc.TrackLocalStaticRTP
	packetizer *RTPPacketizer
	peers      map[*webrtc.PeerConnection]struct{}
	srv        *http.Server
	ln         net.Listener
}

// NewWebRTCSink creates an unopened sink.
func NewWebRTCSink(logger *slog.Logger) *WebRTCSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTCSink{logger: logger, peers: make(map[*webrtc.PeerConnection]struct{})}
}

func (s *WebRTCSink) Open(_ context.Context, props *Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track != nil {
		return nil
	}
	mime := props.GetString("mime_type", webrtc.MimeTypeH264)
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mime, ClockRate: RTPClockRate},
		"video", "mediagraph",
	)
	if err != nil {
		return fmt.Errorf("webrtc track: %w", err)
	}
	pt := props.IntOr("payload_type", 96)
	if pt < 0 || pt > 127 {
		return fmt.Errorf("webrtc payload type %d: %w", pt, ErrInvalidArgument)
	}
	s.track = track
	s.packetizer = NewRTPPacketizer(rand.Uint32(), uint8(pt), DefaultMTU)

	if addr, ok := props.Get("listen"); ok && addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.track = nil
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("POST /offer", s)
		s.ln = ln
		s.srv = &http.Server{Handler: mux}
		go s.srv.Serve(ln)
		props.Set("listen", ln.Addr().String())
		s.logger.Info("webrtc signaling listening", "addr", ln.Addr().String())
	}
	return nil
}

// Track returns the published track, or nil before Open.
func (s *WebRTCSink) Track() *webrtc.TrackLocalStaticRTP {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// Viewers returns the number of connected peers.
func (s *WebRTCSink) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Answer creates a peer connection for offer and returns the local answer
// once ICE gathering completes.
func (s *WebRTCSink) Answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	track := s.Track()
	if track == nil {
		return nil, fmt.Errorf("webrtc answer: %w", ErrNotConnected)
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, err
	}

	// Drain RTCP so interceptors keep running
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Info("webrtc viewer", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.mu.Lock()
			s.peers[pc] = struct{}{}
			s.mu.Unlock()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.mu.Lock()
			delete(s.peers, pc)
			s.mu.Unlock()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, err
	}
	done := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, err
	}
	<-done
	return pc.LocalDescription(), nil
}

// ServeHTTP answers a JSON session description offer.
func (s *WebRTCSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := s.Answer(offer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

func (s *WebRTCSink) WriteFrame(_ context.Context, frame *Frame) error {
	s.mu.Lock()
	track, packetizer := s.track, s.packetizer
	s.mu.Unlock()
	if track == nil {
		return fmt.Errorf("webrtc consumer: %w", ErrClosed)
	}
	packets, err := packetizer.Packetize(frame)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		if err := track.WriteRTP(pkt); err != nil {
			return fmt.Errorf("webrtc write: %w", err)
		}
	}
	return nil
}

func (s *WebRTCSink) Close() error {
	s.mu.Lock()
	peers := s.peers
	s.peers = make(map[*webrtc.PeerConnection]struct{})
	srv := s.srv
	s.srv, s.ln, s.track = nil, nil, nil
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		errs = append(errs, srv.Close())
	}
	for pc := range peers {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}

func init() {
	registerBuiltin(KindConsumer, "webrtc", func(bc *BuildContext) (Service, error) {
		c := NewConsumer(bc.Profile, bc.ID, NewWebRTCSink(bc.Logger), bc.Logger)
		if bc.Arg != "" {
			c.Properties().Set("listen", bc.Arg)
		}
		return c, nil
	})
}
