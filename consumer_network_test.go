package mediagraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

func TestWSConsumer(t *testing.T) {
	messages := make(chan []byte, 16)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(messages)
				return
			}
			messages <- data
		}
	}))
	defer srv.Close()

	f := newTestFactory(t)
	profile := testProfile(t)
	c, err := f.Consumer(profile, "ws", "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	src, _ := f.Producer(profile, "count", "3")
	c.Connect(src)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(); err != nil {
		t.Fatal(err)
	}
	c.Close()

	var got [][]byte
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case m, ok := <-messages:
			if !ok {
				done = true
				break
			}
			got = append(got, m)
		case <-timeout:
			t.Fatalf("timed out after %d messages", len(got))
		}
	}
	if len(got) != 4 {
		t.Fatalf("got %d messages, want header and 3 frames", len(got))
	}

	var hdr DumpHeader
	if err := msgpack.Unmarshal(got[0], &hdr); err != nil {
		t.Fatal(err)
	}
	if hdr.Magic != DumpMagic || hdr.Profile != "qcif_15" {
		t.Errorf("header = %+v", hdr)
	}
	for i, m := range got[1:] {
		var rec FrameRecord
		if err := msgpack.Unmarshal(m, &rec); err != nil {
			t.Fatal(err)
		}
		frame := rec.Frame(profile)
		if frame.Position() != i || frame.Properties().GetInt("count") != i || frame.Image == nil {
			t.Errorf("frame %d: position %d count %d", i, frame.Position(), frame.Properties().GetInt("count"))
		}
	}
}

func TestWSConsumer_DialError(t *testing.T) {
	c := NewConsumer(nil, "ws", &wsSink{}, nil)
	c.Connect(newTestClip(t, 1))
	if err := c.Start(context.Background()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Start() without URL = %v, want ErrInvalidArgument", err)
	}
	c.Properties().Set("resource", "ws://127.0.0.1:1/none")
	c.Properties().SetInt("handshake_timeout", 200)
	if err := c.Start(context.Background()); err == nil {
		t.Error("Start() to a closed port should fail")
	}
	if c.State() != ConsumerIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func TestWebRTCSink_Lifecycle(t *testing.T) {
	sink := NewWebRTCSink(quietLogger())
	if _, err := sink.Answer(webrtc.SessionDescription{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Answer() before Open = %v, want ErrNotConnected", err)
	}
	if err := sink.WriteFrame(context.Background(), NewFrame(0, nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame() before Open = %v, want ErrClosed", err)
	}

	props := NewProperties()
	props.SetInt("payload_type", 300)
	if err := sink.Open(context.Background(), props); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Open() with payload type 300 = %v, want ErrInvalidArgument", err)
	}

	props = NewProperties()
	if err := sink.Open(context.Background(), props); err != nil {
		t.Fatal(err)
	}
	track := sink.Track()
	if track == nil || track.Codec().MimeType != webrtc.MimeTypeH264 {
		t.Fatalf("Track() = %v", track)
	}
	// Without viewers frames are dropped by the track.
	if err := sink.WriteFrame(context.Background(), h264Frame(nil, 0, 100)); err != nil {
		t.Errorf("WriteFrame() = %v", err)
	}
	if sink.Viewers() != 0 {
		t.Errorf("Viewers() = %d, want 0", sink.Viewers())
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if sink.Track() != nil {
		t.Error("Track() after Close should be nil")
	}
}

func TestWebRTCSink_Offer(t *testing.T) {
	f := newTestFactory(t)
	c, err := f.Consumer(nil, "webrtc", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.Properties().SetInt("realtime", 1)
	c.Connect(newTestClip(t, Unbounded))
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addr := c.Properties().GetString("listen", "")
	if addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("listen = %q, want the bound address", addr)
	}

	resp, err := http.Post("http://"+addr+"/offer", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad offer status = %d, want 400", resp.StatusCode)
	}

	viewer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	defer viewer.Close()
	if _, err := viewer.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatal(err)
	}
	offer, err := viewer.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(viewer)
	if err := viewer.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gathered

	body, _ := json.Marshal(viewer.LocalDescription())
	resp, err = http.Post("http://"+addr+"/offer", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("offer status = %d", resp.StatusCode)
	}
	var answer webrtc.SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if answer.Type != webrtc.SDPTypeAnswer || !strings.Contains(answer.SDP, "H264") {
		t.Errorf("answer = %s", answer.Type)
	}
	if err := viewer.SetRemoteDescription(answer); err != nil {
		t.Errorf("SetRemoteDescription() = %v", err)
	}
}
