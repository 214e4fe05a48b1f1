package server

import (
	"sync/atomic"
	"time"
)

// HealthStatus tracks stream activity without taking the store lock.
type HealthStatus struct {
	ingestServing   atomic.Bool
	samplesTotal    atomic.Uint64
	inventoryTotal  atomic.Uint64
	rejectedTotal   atomic.Uint64
	lastSampleAt    atomic.Int64
	lastInventoryAt atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.ingestServing.Store(false)
	return h
}

func (h *HealthStatus) SetIngestServing(ok bool) {
	h.ingestServing.Store(ok)
}

func (h *HealthStatus) MarkSample(at time.Time) {
	h.samplesTotal.Add(1)
	h.lastSampleAt.Store(at.UnixNano())
}

func (h *HealthStatus) MarkInventory(at time.Time) {
	h.inventoryTotal.Add(1)
	h.lastInventoryAt.Store(at.UnixNano())
}

func (h *HealthStatus) MarkRejected() {
	h.rejectedTotal.Add(1)
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"ingest_serving":   h.ingestServing.Load(),
		"samples_total":    h.samplesTotal.Load(),
		"inventory_total":  h.inventoryTotal.Load(),
		"rejected_samples": h.rejectedTotal.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastInventoryAt.Load(); v > 0 {
		out["last_inventory_at"] = time.Unix(0, v).UTC()
	}
	return out
}
