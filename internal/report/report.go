// Package report periodically summarizes the fleet for operators.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fleetmon-server/internal/model"
	"fleetmon-server/internal/store"
)

// Source is the read side of the guarded aggregate store.
type Source interface {
	Nodes() map[string]model.NodeTelemetry
	Socs() map[string]store.SocGroup
	Boards() map[string]store.BoardGroup
}

// Summary holds fleet-wide statistics derived from the current node set.
type Summary struct {
	NodeCount     int
	SocCount      int
	BoardCount    int
	AvgCPUUsage   float64
	AvgMemUsage   float64
	TotalCPUCount uint64
	TotalGPUCount uint64
	UsedMemory    uint64
	TotalMemory   uint64
}

func BuildSummary(nodes map[string]model.NodeTelemetry, socCount, boardCount int) Summary {
	s := Summary{NodeCount: len(nodes), SocCount: socCount, BoardCount: boardCount}
	if len(nodes) == 0 {
		return s
	}
	for _, n := range nodes {
		s.AvgCPUUsage += n.CPUUsage
		s.AvgMemUsage += n.MemUsage
		s.TotalCPUCount += n.CPUCount
		s.TotalGPUCount += n.GPUCount
		s.UsedMemory += n.UsedMemory
		s.TotalMemory += n.TotalMemory
	}
	count := float64(len(nodes))
	s.AvgCPUUsage /= count
	s.AvgMemUsage /= count
	return s
}

// Reporter logs a fleet summary at a fixed interval.
type Reporter struct {
	logger   *slog.Logger
	source   Source
	interval time.Duration
}

func NewReporter(logger *slog.Logger, source Source, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reporter{logger: logger, source: source, interval: interval}
}

func (r *Reporter) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Report()
		}
	}
}

// Report emits the current fleet summary plus one line per board rollup.
func (r *Reporter) Report() {
	nodes := r.source.Nodes()
	socs := r.source.Socs()
	boards := r.source.Boards()
	summary := BuildSummary(nodes, len(socs), len(boards))

	r.logger.Info("fleet summary",
		"nodes", summary.NodeCount,
		"socs", summary.SocCount,
		"boards", summary.BoardCount,
		"avg_cpu_percent", fmt.Sprintf("%.2f", summary.AvgCPUUsage),
		"avg_mem_percent", fmt.Sprintf("%.2f", summary.AvgMemUsage),
		"total_cores", summary.TotalCPUCount,
		"total_gpus", summary.TotalGPUCount,
		"used_memory", FormatMemory(summary.UsedMemory),
		"total_memory", FormatMemory(summary.TotalMemory),
	)

	for id, board := range boards {
		r.logger.Debug("board rollup",
			"board_id", id,
			"nodes", len(board.Nodes),
			"socs", len(board.Socs),
			"avg_cpu_percent", fmt.Sprintf("%.2f", board.TotalCPUUsage),
			"avg_mem_percent", fmt.Sprintf("%.2f", board.TotalMemUsage),
			"rx", FormatBytes(board.TotalRxBytes),
			"tx", FormatBytes(board.TotalTxBytes),
			"updated", board.LastUpdated.Format(time.RFC3339),
		)
	}
}

// FormatBytes renders a byte counter in human-readable units.
func FormatBytes(b uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", b, units[idx])
	}
	return fmt.Sprintf("%.1f %s", size, units[idx])
}

// FormatMemory renders a KB memory figure in human-readable units.
func FormatMemory(kb uint64) string {
	switch {
	case kb >= 1024*1024:
		return fmt.Sprintf("%.1f GB", float64(kb)/(1024*1024))
	case kb >= 1024:
		return fmt.Sprintf("%.1f MB", float64(kb)/1024)
	default:
		return fmt.Sprintf("%d KB", kb)
	}
}
