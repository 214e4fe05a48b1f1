package server

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

func (s *Server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The monitor loops exit only when the stream channels close, so the
	// ingest goroutine closes them once its listener is fully stopped.
	// Buffered samples are drained before the monitor reports done.
	g.Go(func() error {
		s.health.SetIngestServing(true)
		err := s.ingest.Serve(gctx)
		s.health.SetIngestServing(false)
		close(s.samples)
		close(s.inventory)
		return err
	})
	g.Go(func() error {
		return s.monitor.Run(gctx)
	})
	g.Go(func() error {
		return s.reporter.Run(gctx)
	})
	g.Go(func() error {
		return s.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return s.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
