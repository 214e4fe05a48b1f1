package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetmon-server/internal/model"
)

func TestBuildSummary(t *testing.T) {
	nodes := map[string]model.NodeTelemetry{
		"n1": {CPUUsage: 50, MemUsage: 40, CPUCount: 8, GPUCount: 1, UsedMemory: 1000, TotalMemory: 2000},
		"n2": {CPUUsage: 70, MemUsage: 60, CPUCount: 16, GPUCount: 3, UsedMemory: 3000, TotalMemory: 6000},
	}
	s := BuildSummary(nodes, 2, 1)

	assert.Equal(t, 2, s.NodeCount)
	assert.Equal(t, 2, s.SocCount)
	assert.Equal(t, 1, s.BoardCount)
	assert.InDelta(t, 60.0, s.AvgCPUUsage, 1e-9)
	assert.InDelta(t, 50.0, s.AvgMemUsage, 1e-9)
	assert.Equal(t, uint64(24), s.TotalCPUCount)
	assert.Equal(t, uint64(4), s.TotalGPUCount)
	assert.Equal(t, uint64(4000), s.UsedMemory)
	assert.Equal(t, uint64(8000), s.TotalMemory)
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary(nil, 0, 0)
	assert.Zero(t, s.NodeCount)
	assert.Zero(t, s.AvgCPUUsage)
	assert.Zero(t, s.AvgMemUsage)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		kb   uint64
		want string
	}{
		{100, "100 KB"},
		{2048, "2.0 MB"},
		{3 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMemory(tt.kb))
	}
}
