// Command broker runs the frame broadcast server: binary frame ingest
// over HTTP and fan-out to subscribers over WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"framebroker/internal/config"
	"framebroker/internal/logger"
	"framebroker/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger.Init()
	logger.SetLevel(cfg.LogLevel)

	ctx := context.Background()

	srv := server.New(cfg)
	shutdownHandler := server.NewShutdownHandler(srv, ctx)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		logger.Logger().Error("shutdown error", "err", err)
		os.Exit(1)
	}

	logger.Logger().Info("server shut down cleanly")
}
