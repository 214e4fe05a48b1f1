package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"fleetmon-server/internal/config"
	"fleetmon-server/internal/model"
)

// Ingest serves one inbound transport until its context is cancelled.
type Ingest interface {
	Serve(ctx context.Context) error
}

func NewIngestFromConfig(
	cfg config.Config,
	tlsCfg *tls.Config,
	samples chan<- model.NodeTelemetry,
	inventory chan<- model.ContainerList,
	logger *slog.Logger,
) (Ingest, error) {
	switch cfg.IngestMode {
	case config.IngestModeGRPC:
		return NewGRPCIngest(
			cfg.GRPCListenAddr,
			tlsCfg,
			cfg.IngestToken,
			cfg.GRPCNodeStreamMethod,
			cfg.GRPCInventoryStreamMethod,
			samples,
			inventory,
			logger,
		), nil
	case config.IngestModeWebSocket:
		return NewWebSocketIngest(
			cfg.WSListenAddr,
			cfg.WSPath,
			cfg.IngestToken,
			tlsCfg,
			samples,
			inventory,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported ingest mode %q", cfg.IngestMode)
	}
}
