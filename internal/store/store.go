package store

import (
	"sort"
	"time"

	"fleetmon-server/internal/model"
)

// AggregateTotals is the derived-statistics shape shared by SoC and board
// groups. CPU and memory usage are arithmetic means over current members;
// every other field is an exact sum. JSON names follow the persisted
// layout of the monitoring data.
type AggregateTotals struct {
	TotalCPUUsage   float64 `json:"total_cpu_usage"`
	TotalCPUCount   uint64  `json:"total_cpu_count"`
	TotalGPUCount   uint64  `json:"total_gpu_count"`
	TotalUsedMemory uint64  `json:"total_used_memory"`
	TotalMemory     uint64  `json:"total_memory"`
	TotalMemUsage   float64 `json:"total_mem_usage"`
	TotalRxBytes    uint64  `json:"total_rx_bytes"`
	TotalTxBytes    uint64  `json:"total_tx_bytes"`
	TotalReadBytes  uint64  `json:"total_read_bytes"`
	TotalWriteBytes uint64  `json:"total_write_bytes"`
}

// SocGroup aggregates the nodes sharing one SoC identifier.
type SocGroup struct {
	SocID string                `json:"soc_id"`
	Nodes []model.NodeTelemetry `json:"nodes"`
	AggregateTotals
	LastUpdated time.Time `json:"last_updated"`
}

// BoardGroup aggregates the nodes sharing one board identifier, together
// with the SoC groups whose identifier maps to this board.
type BoardGroup struct {
	BoardID string                `json:"board_id"`
	Nodes   []model.NodeTelemetry `json:"nodes"`
	Socs    []SocGroup            `json:"socs"`
	AggregateTotals
	LastUpdated time.Time `json:"last_updated"`
}

// Store holds the latest telemetry per node plus the SoC- and board-level
// rollups derived from node addresses. It is not safe for concurrent use;
// the monitor serializes all access behind a single mutex.
type Store struct {
	nodes  map[string]model.NodeTelemetry
	socs   map[string]*SocGroup
	boards map[string]*BoardGroup
}

func New() *Store {
	return &Store{
		nodes:  make(map[string]model.NodeTelemetry),
		socs:   make(map[string]*SocGroup),
		boards: make(map[string]*BoardGroup),
	}
}

// UpsertNode records a telemetry sample and brings every dependent
// aggregate back in line with its member list. The sample is rejected
// with ErrInvalidAddress, and no state changes, when its address does not
// parse. Aggregates are always fully recomputed from members rather than
// incrementally adjusted.
func (s *Store) UpsertNode(sample model.NodeTelemetry) error {
	socID, err := SocID(sample.IP)
	if err != nil {
		return err
	}
	boardID, err := BoardID(sample.IP)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	s.nodes[sample.NodeName] = sample

	// A node whose address moved to another band must leave its old
	// groups, otherwise it would be double-counted.
	s.removeFromOtherGroups(sample.NodeName, socID, boardID, now)

	soc, ok := s.socs[socID]
	if !ok {
		soc = &SocGroup{SocID: socID}
		s.socs[socID] = soc
	}
	upsertMember(&soc.Nodes, sample)
	soc.AggregateTotals = computeTotals(soc.Nodes)
	soc.LastUpdated = now

	board, ok := s.boards[boardID]
	if !ok {
		board = &BoardGroup{BoardID: boardID}
		s.boards[boardID] = board
	}
	upsertMember(&board.Nodes, sample)
	board.AggregateTotals = computeTotals(board.Nodes)
	board.LastUpdated = now

	s.rebuildBoardSocLists()
	return nil
}

// Node returns the latest sample stored for a node name.
func (s *Store) Node(name string) (model.NodeTelemetry, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// Soc returns a copy of the SoC group with the given identifier.
func (s *Store) Soc(id string) (SocGroup, bool) {
	g, ok := s.socs[id]
	if !ok {
		return SocGroup{}, false
	}
	return g.clone(), true
}

// Board returns a copy of the board group with the given identifier.
func (s *Store) Board(id string) (BoardGroup, bool) {
	b, ok := s.boards[id]
	if !ok {
		return BoardGroup{}, false
	}
	return b.clone(), true
}

// Nodes returns a snapshot of all node records keyed by node name.
func (s *Store) Nodes() map[string]model.NodeTelemetry {
	out := make(map[string]model.NodeTelemetry, len(s.nodes))
	for name, n := range s.nodes {
		out[name] = n
	}
	return out
}

// Socs returns a snapshot of all SoC groups keyed by SoC identifier.
func (s *Store) Socs() map[string]SocGroup {
	out := make(map[string]SocGroup, len(s.socs))
	for id, g := range s.socs {
		out[id] = g.clone()
	}
	return out
}

// Boards returns a snapshot of all board groups keyed by board identifier.
func (s *Store) Boards() map[string]BoardGroup {
	out := make(map[string]BoardGroup, len(s.boards))
	for id, b := range s.boards {
		out[id] = b.clone()
	}
	return out
}

func (s *Store) removeFromOtherGroups(nodeName, socID, boardID string, now time.Time) {
	for id, g := range s.socs {
		if id == socID {
			continue
		}
		if removeMember(&g.Nodes, nodeName) {
			g.AggregateTotals = computeTotals(g.Nodes)
			g.LastUpdated = now
		}
	}
	for id, b := range s.boards {
		if id == boardID {
			continue
		}
		if removeMember(&b.Nodes, nodeName) {
			b.AggregateTotals = computeTotals(b.Nodes)
			b.LastUpdated = now
		}
	}
}

// rebuildBoardSocLists re-derives every board's SoC list from the current
// SoC mapping: a SoC belongs to the board its own identifier maps to. The
// lists are replaced, never patched, and sorted for deterministic
// snapshots.
func (s *Store) rebuildBoardSocLists() {
	for boardID, board := range s.boards {
		socs := board.Socs[:0]
		for _, soc := range s.socs {
			id, err := BoardID(soc.SocID)
			if err != nil || id != boardID {
				continue
			}
			socs = append(socs, soc.clone())
		}
		sort.Slice(socs, func(i, j int) bool { return socs[i].SocID < socs[j].SocID })
		board.Socs = socs
	}
}

func upsertMember(members *[]model.NodeTelemetry, sample model.NodeTelemetry) {
	for i := range *members {
		if (*members)[i].NodeName == sample.NodeName {
			(*members)[i] = sample
			return
		}
	}
	*members = append(*members, sample)
}

func removeMember(members *[]model.NodeTelemetry, nodeName string) bool {
	for i := range *members {
		if (*members)[i].NodeName == nodeName {
			*members = append((*members)[:i], (*members)[i+1:]...)
			return true
		}
	}
	return false
}

func computeTotals(members []model.NodeTelemetry) AggregateTotals {
	var t AggregateTotals
	if len(members) == 0 {
		return t
	}
	for _, n := range members {
		t.TotalCPUUsage += n.CPUUsage
		t.TotalMemUsage += n.MemUsage
		t.TotalCPUCount += n.CPUCount
		t.TotalGPUCount += n.GPUCount
		t.TotalUsedMemory += n.UsedMemory
		t.TotalMemory += n.TotalMemory
		t.TotalRxBytes += n.RxBytes
		t.TotalTxBytes += n.TxBytes
		t.TotalReadBytes += n.ReadBytes
		t.TotalWriteBytes += n.WriteBytes
	}
	count := float64(len(members))
	t.TotalCPUUsage /= count
	t.TotalMemUsage /= count
	return t
}

func (g *SocGroup) clone() SocGroup {
	out := *g
	out.Nodes = append([]model.NodeTelemetry(nil), g.Nodes...)
	return out
}

func (b *BoardGroup) clone() BoardGroup {
	out := *b
	out.Nodes = append([]model.NodeTelemetry(nil), b.Nodes...)
	out.Socs = make([]SocGroup, 0, len(b.Socs))
	for i := range b.Socs {
		out.Socs = append(out.Socs, b.Socs[i].clone())
	}
	return out
}
