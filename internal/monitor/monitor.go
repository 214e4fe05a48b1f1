// Package monitor serializes all access to the aggregate store and drives
// the two inbound telemetry streams.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetmon-server/internal/model"
	"fleetmon-server/internal/store"
)

// Persister receives entities after a successful upsert. Persistence is
// best-effort durability: failures are logged and never roll back or block
// the in-memory update.
type Persister interface {
	PersistNode(ctx context.Context, node model.NodeTelemetry) error
	PersistSoc(ctx context.Context, soc store.SocGroup) error
	PersistBoard(ctx context.Context, board store.BoardGroup) error
}

// Tracker observes stream activity for health reporting.
type Tracker interface {
	MarkSample(at time.Time)
	MarkInventory(at time.Time)
	MarkRejected()
}

// Monitor owns the aggregate store behind a single mutex. Mutations and
// snapshot reads both take the lock, so readers only ever observe the
// result of a fully completed upsert.
type Monitor struct {
	logger         *slog.Logger
	persist        Persister // may be nil
	persistTimeout time.Duration
	tracker        Tracker // may be nil

	samples   <-chan model.NodeTelemetry
	inventory <-chan model.ContainerList

	mu    sync.Mutex
	store *store.Store
}

func New(
	logger *slog.Logger,
	st *store.Store,
	persist Persister,
	persistTimeout time.Duration,
	samples <-chan model.NodeTelemetry,
	inventory <-chan model.ContainerList,
	tracker Tracker,
) *Monitor {
	if persistTimeout <= 0 {
		persistTimeout = 3 * time.Second
	}
	return &Monitor{
		logger:         logger,
		persist:        persist,
		persistTimeout: persistTimeout,
		tracker:        tracker,
		samples:        samples,
		inventory:      inventory,
		store:          st,
	}
}

// Run consumes both inbound streams until their channels are closed. The
// two loops run concurrently and share nothing but the guarded store;
// channel closure is the only termination signal per loop.
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.runSampleLoop(gctx)
	})
	g.Go(func() error {
		return m.runInventoryLoop(gctx)
	})
	return g.Wait()
}

func (m *Monitor) runSampleLoop(ctx context.Context) error {
	for sample := range m.samples {
		m.handleSample(ctx, sample)
	}
	m.logger.Info("telemetry stream closed, sample loop stopping")
	return nil
}

func (m *Monitor) runInventoryLoop(_ context.Context) error {
	for list := range m.inventory {
		m.handleInventory(list)
	}
	m.logger.Info("inventory stream closed, inventory loop stopping")
	return nil
}

func (m *Monitor) handleSample(ctx context.Context, sample model.NodeTelemetry) {
	if err := m.UpsertSample(sample); err != nil {
		m.logger.Warn("telemetry sample rejected",
			"node", sample.NodeName, "ip", sample.IP, "error", err)
		if m.tracker != nil {
			m.tracker.MarkRejected()
		}
		return
	}
	m.logger.Debug("telemetry sample stored",
		"node", sample.NodeName, "ip", sample.IP, "cpu_percent", sample.CPUUsage)
	if m.tracker != nil {
		m.tracker.MarkSample(time.Now().UTC())
	}
	m.persistAfterUpsert(ctx, sample)
}

func (m *Monitor) handleInventory(list model.ContainerList) {
	m.logger.Info("container inventory received",
		"node", list.NodeName, "containers", len(list.Containers))
	for _, c := range list.Containers {
		m.logger.Debug("container observed",
			"node", list.NodeName, "id", c.ID, "names", c.Names, "image", c.Image)
	}
	if m.tracker != nil {
		m.tracker.MarkInventory(time.Now().UTC())
	}
}

// UpsertSample applies exactly one store mutation under the lock. An upsert,
// once begun, always runs to completion before the lock is released.
func (m *Monitor) UpsertSample(sample model.NodeTelemetry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.UpsertNode(sample)
}

func (m *Monitor) persistAfterUpsert(ctx context.Context, sample model.NodeTelemetry) {
	if m.persist == nil {
		return
	}

	// Snapshot the affected entities under the lock, write them outside it.
	socID, err := store.SocID(sample.IP)
	if err != nil {
		return
	}
	boardID, err := store.BoardID(sample.IP)
	if err != nil {
		return
	}
	m.mu.Lock()
	soc, hasSoc := m.store.Soc(socID)
	board, hasBoard := m.store.Board(boardID)
	m.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()

	if err := m.persist.PersistNode(pctx, sample); err != nil {
		m.logger.Warn("node persistence failed", "node", sample.NodeName, "error", err)
	}
	if hasSoc {
		if err := m.persist.PersistSoc(pctx, soc); err != nil {
			m.logger.Warn("soc persistence failed", "soc_id", socID, "error", err)
		}
	}
	if hasBoard {
		if err := m.persist.PersistBoard(pctx, board); err != nil {
			m.logger.Warn("board persistence failed", "board_id", boardID, "error", err)
		}
	}
}

// Node returns the latest sample for a node name.
func (m *Monitor) Node(name string) (model.NodeTelemetry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Node(name)
}

// Soc returns a snapshot of one SoC group.
func (m *Monitor) Soc(id string) (store.SocGroup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Soc(id)
}

// Board returns a snapshot of one board group.
func (m *Monitor) Board(id string) (store.BoardGroup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Board(id)
}

// Nodes returns a snapshot of all node records.
func (m *Monitor) Nodes() map[string]model.NodeTelemetry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Nodes()
}

// Socs returns a snapshot of all SoC groups.
func (m *Monitor) Socs() map[string]store.SocGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Socs()
}

// Boards returns a snapshot of all board groups.
func (m *Monitor) Boards() map[string]store.BoardGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Boards()
}
