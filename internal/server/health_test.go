package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthSnapshotCounters(t *testing.T) {
	h := NewHealthStatus()

	snap := h.Snapshot()
	assert.Equal(t, false, snap["ingest_serving"])
	assert.Equal(t, uint64(0), snap["samples_total"])
	assert.NotContains(t, snap, "last_sample_at")
	assert.NotContains(t, snap, "last_inventory_at")

	now := time.Now().UTC()
	h.SetIngestServing(true)
	h.MarkSample(now)
	h.MarkSample(now.Add(time.Second))
	h.MarkInventory(now)
	h.MarkRejected()

	snap = h.Snapshot()
	assert.Equal(t, true, snap["ingest_serving"])
	assert.Equal(t, uint64(2), snap["samples_total"])
	assert.Equal(t, uint64(1), snap["inventory_total"])
	assert.Equal(t, uint64(1), snap["rejected_samples"])
	assert.Equal(t, now.Add(time.Second), snap["last_sample_at"])
	assert.Equal(t, now, snap["last_inventory_at"])
}
