package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmon-server/internal/model"
	"fleetmon-server/internal/storage"
	"fleetmon-server/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func telemetry(name, ip string, cpu float64) model.NodeTelemetry {
	return model.NodeTelemetry{NodeName: name, IP: ip, CPUUsage: cpu, MemUsage: cpu, CPUCount: 4}
}

type countingTracker struct {
	mu        sync.Mutex
	samples   int
	inventory int
	rejected  int
}

func (c *countingTracker) MarkSample(time.Time) {
	c.mu.Lock()
	c.samples++
	c.mu.Unlock()
}

func (c *countingTracker) MarkInventory(time.Time) {
	c.mu.Lock()
	c.inventory++
	c.mu.Unlock()
}

func (c *countingTracker) MarkRejected() {
	c.mu.Lock()
	c.rejected++
	c.mu.Unlock()
}

func TestConcurrentUpsertsSameSoc(t *testing.T) {
	m := New(testLogger(), store.New(), nil, 0, nil, nil, nil)

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			// Last octets 200-207 keep every node in SoC 10.0.0.200.
			s := telemetry(fmt.Sprintf("node-%02d", i), fmt.Sprintf("10.0.0.%d", 200+i%8), 50)
			assert.NoError(t, m.UpsertSample(s))
		}(i)
	}
	wg.Wait()

	soc, ok := m.Soc("10.0.0.200")
	require.True(t, ok)
	assert.Len(t, soc.Nodes, workers, "no lost updates, no duplicate members")
	assert.Equal(t, uint64(4*workers), soc.TotalCPUCount)

	board, ok := m.Board("10.0.0.200")
	require.True(t, ok)
	assert.Len(t, board.Nodes, workers)
}

func TestRunConsumesBothStreamsUntilClosed(t *testing.T) {
	samples := make(chan model.NodeTelemetry, 8)
	inventory := make(chan model.ContainerList, 8)
	tracker := &countingTracker{}
	m := New(testLogger(), store.New(), nil, 0, samples, inventory, tracker)

	done := make(chan error, 1)
	go func() {
		done <- m.Run(context.Background())
	}()

	samples <- telemetry("n1", "10.0.0.201", 50)
	samples <- telemetry("n2", "10.0.0.205", 70)
	samples <- telemetry("bad", "999.1.1.1", 10)
	inventory <- model.ContainerList{
		NodeName:   "n1",
		Containers: []model.ContainerInfo{{ID: "c1", Names: []string{"web"}, Image: "nginx:1.27"}},
	}
	close(samples)
	close(inventory)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after stream closure")
	}

	assert.Len(t, m.Nodes(), 2)
	assert.Equal(t, 2, tracker.samples)
	assert.Equal(t, 1, tracker.inventory)
	assert.Equal(t, 1, tracker.rejected)

	// Inventory messages never mutate aggregates.
	_, ok := m.Node("c1")
	assert.False(t, ok)

	soc, ok := m.Soc("10.0.0.200")
	require.True(t, ok)
	assert.InDelta(t, 60.0, soc.TotalCPUUsage, 1e-9)
}

func TestPersistAfterUpsert(t *testing.T) {
	kv := storage.NewMemoryKV()
	persist := storage.NewMonitoring(kv, testLogger())

	samples := make(chan model.NodeTelemetry, 1)
	inventory := make(chan model.ContainerList)
	m := New(testLogger(), store.New(), persist, time.Second, samples, inventory, nil)

	samples <- telemetry("n1", "10.0.0.201", 50)
	close(samples)
	close(inventory)
	require.NoError(t, m.Run(context.Background()))

	ctx := context.Background()
	node, err := persist.Node(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.201", node.IP)

	soc, err := persist.Soc(ctx, "10.0.0.200")
	require.NoError(t, err)
	assert.Len(t, soc.Nodes, 1)

	board, err := persist.Board(ctx, "10.0.0.200")
	require.NoError(t, err)
	assert.Len(t, board.Socs, 1)
}

func TestPersistFailureDoesNotAffectStore(t *testing.T) {
	samples := make(chan model.NodeTelemetry, 1)
	inventory := make(chan model.ContainerList)
	m := New(testLogger(), store.New(), failingPersister{}, time.Second, samples, inventory, nil)

	samples <- telemetry("n1", "10.0.0.201", 50)
	close(samples)
	close(inventory)
	require.NoError(t, m.Run(context.Background()))

	n, ok := m.Node("n1")
	require.True(t, ok)
	assert.InDelta(t, 50.0, n.CPUUsage, 1e-9)
}

type failingPersister struct{}

func (failingPersister) PersistNode(context.Context, model.NodeTelemetry) error {
	return fmt.Errorf("kv unavailable")
}

func (failingPersister) PersistSoc(context.Context, store.SocGroup) error {
	return fmt.Errorf("kv unavailable")
}

func (failingPersister) PersistBoard(context.Context, store.BoardGroup) error {
	return fmt.Errorf("kv unavailable")
}
