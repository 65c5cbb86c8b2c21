package subscribe

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"framebroker/internal/bus"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, reg *bus.Registry, capacity int) *httptest.Server {
	t.Helper()
	h := NewHandler(reg, capacity)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, streamID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + streamID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestSubscribeReceivesPublishedFrame(t *testing.T) {
	reg := bus.NewRegistry()
	srv := newTestServer(t, reg, 8)

	conn := dial(t, srv, "alpha")
	defer conn.Close()

	// Give the handler a moment to register its Subscription before
	// publishing, since the upgrade happens asynchronously on the server.
	time.Sleep(50 * time.Millisecond)

	id, _ := bus.ParseStreamID("alpha")
	res := reg.Publish(id, bus.NewFrameView([]byte{0x01, 0x02, 0x03}))
	if res.Delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", res.Delivered)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.BinaryMessage || !bytes.Equal(data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unexpected message: type=%d data=%v", msgType, data)
	}
}

func TestSubscribeRejectsInvalidStreamID(t *testing.T) {
	reg := bus.NewRegistry()
	srv := newTestServer(t, reg, 8)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ok..ok"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for an invalid stream id")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got response %+v", resp)
	}
}

func TestSubscribeDisconnectReclaimsChannel(t *testing.T) {
	reg := bus.NewRegistry()
	srv := newTestServer(t, reg, 8)

	conn := dial(t, srv, "gamma")

	time.Sleep(50 * time.Millisecond)
	if reg.ActiveStreams() != 1 {
		t.Fatalf("expected 1 active stream while connected, got %d", reg.ActiveStreams())
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	if reg.ActiveStreams() != 0 {
		t.Fatalf("expected active_streams to return to 0 after disconnect, got %d", reg.ActiveStreams())
	}
}
