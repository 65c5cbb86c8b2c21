// Package ingest implements the broker's frame-intake HTTP endpoint:
// POST /ingest/{stream_id} with a raw binary body.
package ingest

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"framebroker/internal/apperrors"
	"framebroker/internal/bufpool"
	"framebroker/internal/bus"
	"framebroker/internal/logger"
)

// Handler publishes one incoming frame per request onto the Registry.
type Handler struct {
	registry      *bus.Registry
	maxFrameBytes int
	readTimeout   time.Duration
}

// NewHandler returns a Handler bound to registry, rejecting bodies larger
// than maxFrameBytes and enforcing readTimeout on the body read.
func NewHandler(registry *bus.Registry, maxFrameBytes int, readTimeout time.Duration) *Handler {
	return &Handler{
		registry:      registry,
		maxFrameBytes: maxFrameBytes,
		readTimeout:   readTimeout,
	}
}

// ServeHTTP handles POST /ingest/{stream_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/ingest/")
	streamID, err := bus.ParseStreamID(raw)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	log := logger.WithStream(logger.Logger(), streamID.String())

	if h.readTimeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			log.Warn("ingest: set read deadline failed", "err", err)
		}
	}

	body := http.MaxBytesReader(w, r.Body, int64(h.maxFrameBytes))
	buf := bufpool.Get(h.maxFrameBytes)
	n, err := io.ReadFull(body, buf)
	switch {
	case err == nil:
		// buf filled exactly; one more byte tells us whether the body was
		// exactly maxFrameBytes (io.EOF) or larger (MaxBytesReader error).
		var extra [1]byte
		if _, err2 := body.Read(extra[:]); err2 != io.EOF {
			bufpool.Put(buf)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		// Body was smaller than maxFrameBytes; n holds the real length.
	case isMaxBytesError(err):
		bufpool.Put(buf)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	case isTimeout(err):
		bufpool.Put(buf)
		w.WriteHeader(http.StatusRequestTimeout)
		return
	default:
		bufpool.Put(buf)
		log.Error("ingest: body read failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if n == 0 {
		bufpool.Put(buf)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	frame := bus.NewFrame(buf[:n])
	result := h.registry.Publish(streamID, frame)

	if result.Delivered >= 1 {
		w.WriteHeader(http.StatusOK)
		return
	}
	log.Debug("ingest: no subscribers", "delivered", result.Delivered)
	w.WriteHeader(http.StatusAccepted)
}

func isMaxBytesError(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return apperrors.IsTimeout(err)
}
