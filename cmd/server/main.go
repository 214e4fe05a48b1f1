package main

import (
	"context"
	"log"

	"fleetmon-server/internal/config"
	"fleetmon-server/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := server.BuildLogger(cfg)
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("server initialization failed", "error", err)
		return
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server runtime failed", "error", err)
	}
}
