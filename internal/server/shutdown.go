package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framebroker/internal/logger"
)

// ShutdownHandler ends subscribe sessions and drains in-flight ingest
// requests on SIGINT or SIGTERM, logging the broker's live stream/subscriber counts so an
// operator can see what was still connected at the moment of shutdown.
type ShutdownHandler struct {
	server  *Server
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewShutdownHandler returns a handler bound to server. parent is used as
// the base for the context returned by Context, which callers may thread
// through long-lived work (e.g. a future admin listener) so it observes
// shutdown without polling. The same context becomes the base context of
// every request the server accepts, so it must be created before Start.
func NewShutdownHandler(server *Server, parent context.Context) *ShutdownHandler {
	ctx, cancel := context.WithCancel(parent)
	server.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }
	return &ShutdownHandler{
		server:  server,
		timeout: 5 * time.Second,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Wait blocks the calling goroutine until SIGINT or SIGTERM arrives, then
// drains the HTTP server within the handler's timeout. Subscribe sessions
// get no special drain path here: each one's context derives from its
// request, whose base context is cancelled just before Shutdown, so their
// WebSocket loops notice it and exit. http.Server.Shutdown itself does not
// wait for those hijacked connections; it waits for ingest requests only.
func (h *ShutdownHandler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	log := logger.Logger()
	log.Info("shutdown signal received",
		"signal", sig.String(),
		"active_streams", h.server.Registry().ActiveStreams(),
		"total_subscribers", h.server.Registry().TotalSubscribers(),
	)

	h.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown did not complete cleanly",
			"err", err,
			"remaining_subscribers", h.server.Registry().TotalSubscribers(),
		)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// Context returns a context cancelled the moment a shutdown signal is
// observed, ahead of the HTTP server's own Shutdown call.
func (h *ShutdownHandler) Context() context.Context {
	return h.ctx
}
