// Package subscribe implements the broker's push-channel endpoint:
// GET /ws/{stream_id}, upgraded to a binary WebSocket push session.
package subscribe

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"framebroker/internal/bus"
	"framebroker/internal/logger"

	"github.com/gorilla/websocket"
)

// Handler upgrades subscribe requests and drains a Subscription onto the
// resulting connection until the peer disconnects, the channel closes, or
// the server shuts down.
type Handler struct {
	registry *bus.Registry
	capacity int
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler bound to registry, allocating subscriptions
// with the given per-channel buffer capacity.
func NewHandler(registry *bus.Registry, capacity int) *Handler {
	return &Handler{
		registry: registry,
		capacity: capacity,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/{stream_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/ws/")
	streamID, err := bus.ParseStreamID(raw)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	log := logger.WithStream(logger.Logger(), streamID.String())

	handle, sub, err := h.registry.Subscribe(streamID, h.capacity)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		handle.Release()
		return
	}
	defer func() {
		sub.Close()
		handle.Release()
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// gorilla/websocket only surfaces a peer-initiated close through a
	// failing Read, so a dedicated read pump is the only way to notice the
	// viewer going away while we are otherwise only ever writing.
	go watchForPeerClose(conn, cancel)

	runSession(ctx, conn, sub, log)
}

// watchForPeerClose blocks on reads from conn purely to detect disconnects
// and protocol-level close frames, discarding anything the peer sends.
func watchForPeerClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runSession drains sub onto conn until the Channel closes, the peer goes
// away, or ctx is cancelled.
func runSession(ctx context.Context, conn *websocket.Conn, sub *bus.Subscription, log *slog.Logger) {
	for {
		out, err := sub.Recv(ctx)
		if err != nil {
			return // context cancelled: peer gone or server shutting down
		}

		switch out.Kind {
		case bus.RecvFrame:
			writeErr := conn.WriteMessage(websocket.BinaryMessage, out.Frame.Bytes())
			out.Frame.Release()
			if writeErr != nil {
				return // peer gone
			}
		case bus.RecvLagged:
			log.Warn("subscriber lagged", "dropped", out.Lag)
		case bus.RecvClosed:
			return
		}
	}
}
