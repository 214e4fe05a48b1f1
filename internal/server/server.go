// Package server wires configuration, ingest transports, the guarded
// aggregate store and the persistence layer into one supervised process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetmon-server/internal/config"
	"fleetmon-server/internal/model"
	"fleetmon-server/internal/monitor"
	"fleetmon-server/internal/report"
	"fleetmon-server/internal/storage"
	"fleetmon-server/internal/store"
	"fleetmon-server/internal/transport"
)

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	ingest   transport.Ingest
	monitor  *monitor.Monitor
	reporter *report.Reporter
	health   *HealthStatus

	samples   chan model.NodeTelemetry
	inventory chan model.ContainerList
	etcd      *storage.EtcdKV // nil when persistence is disabled
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	samples := make(chan model.NodeTelemetry, cfg.StreamBuffer)
	inventory := make(chan model.ContainerList, cfg.StreamBuffer)

	var etcd *storage.EtcdKV
	var persist monitor.Persister
	if cfg.PersistenceEnabled {
		var etcdTLS = tlsCfg
		if !cfg.EtcdTLS {
			etcdTLS = nil
		}
		etcd, err = storage.NewEtcdKV(cfg.EtcdEndpoints, cfg.EtcdDialTimeout, etcdTLS)
		if err != nil {
			return nil, fmt.Errorf("etcd client: %w", err)
		}
		persist = storage.NewMonitoring(etcd, logger)
	}

	health := NewHealthStatus()
	mon := monitor.New(logger, store.New(), persist, cfg.PersistTimeout, samples, inventory, health)

	ingest, err := transport.NewIngestFromConfig(cfg, tlsCfg, samples, inventory, logger)
	if err != nil {
		if etcd != nil {
			_ = etcd.Close()
		}
		return nil, fmt.Errorf("ingest transport: %w", err)
	}

	return &Server{
		cfg:       cfg,
		logger:    logger,
		ingest:    ingest,
		monitor:   mon,
		reporter:  report.NewReporter(logger, mon, cfg.ReportInterval),
		health:    health,
		samples:   samples,
		inventory: inventory,
		etcd:      etcd,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting fleetmon-server",
		"version", s.cfg.ServerVersion,
		"ingest_mode", s.cfg.IngestMode,
		"persistence", s.cfg.PersistenceEnabled)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- s.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Server terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", s.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(s.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			s.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			s.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", s.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	s.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	s.logger.Info("fleetmon-server stopped")
	return nil
}

func (s *Server) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(s.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.logger.Debug("server health", "snapshot", s.health.Snapshot())
		}
	}
}

func (s *Server) shutdown() {
	if s.etcd != nil {
		if err := s.etcd.Close(); err != nil {
			s.logger.Warn("etcd close failed", "error", err)
		}
	}
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
