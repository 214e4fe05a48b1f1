package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"fleetmon-server/internal/model"
	"fleetmon-server/internal/store"
)

const (
	nodeKeyPrefix  = "monitoring/nodes/"
	socKeyPrefix   = "monitoring/socs/"
	boardKeyPrefix = "monitoring/boards/"
)

// Monitoring stores monitoring entities as JSON under fixed key
// namespaces. Bulk loads are per-item recoverable: a malformed record is
// skipped with a diagnostic instead of aborting the whole listing.
type Monitoring struct {
	kv     KV
	logger *slog.Logger
}

func NewMonitoring(kv KV, logger *slog.Logger) *Monitoring {
	return &Monitoring{kv: kv, logger: logger}
}

func (m *Monitoring) PersistNode(ctx context.Context, node model.NodeTelemetry) error {
	return m.put(ctx, nodeKeyPrefix+node.NodeName, node)
}

func (m *Monitoring) PersistSoc(ctx context.Context, soc store.SocGroup) error {
	return m.put(ctx, socKeyPrefix+soc.SocID, soc)
}

func (m *Monitoring) PersistBoard(ctx context.Context, board store.BoardGroup) error {
	return m.put(ctx, boardKeyPrefix+board.BoardID, board)
}

func (m *Monitoring) Node(ctx context.Context, name string) (model.NodeTelemetry, error) {
	var node model.NodeTelemetry
	err := m.get(ctx, nodeKeyPrefix+name, &node)
	return node, err
}

func (m *Monitoring) Soc(ctx context.Context, id string) (store.SocGroup, error) {
	var soc store.SocGroup
	err := m.get(ctx, socKeyPrefix+id, &soc)
	return soc, err
}

func (m *Monitoring) Board(ctx context.Context, id string) (store.BoardGroup, error) {
	var board store.BoardGroup
	err := m.get(ctx, boardKeyPrefix+id, &board)
	return board, err
}

func (m *Monitoring) Nodes(ctx context.Context) ([]model.NodeTelemetry, error) {
	pairs, err := m.kv.ListByPrefix(ctx, nodeKeyPrefix)
	if err != nil {
		return nil, err
	}
	nodes := make([]model.NodeTelemetry, 0, len(pairs))
	for _, pair := range pairs {
		var node model.NodeTelemetry
		if err := json.Unmarshal([]byte(pair.Value), &node); err != nil {
			m.logger.Warn("skipping malformed node record", "key", pair.Key, "error", err)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (m *Monitoring) Socs(ctx context.Context) ([]store.SocGroup, error) {
	pairs, err := m.kv.ListByPrefix(ctx, socKeyPrefix)
	if err != nil {
		return nil, err
	}
	socs := make([]store.SocGroup, 0, len(pairs))
	for _, pair := range pairs {
		var soc store.SocGroup
		if err := json.Unmarshal([]byte(pair.Value), &soc); err != nil {
			m.logger.Warn("skipping malformed soc record", "key", pair.Key, "error", err)
			continue
		}
		socs = append(socs, soc)
	}
	return socs, nil
}

func (m *Monitoring) Boards(ctx context.Context) ([]store.BoardGroup, error) {
	pairs, err := m.kv.ListByPrefix(ctx, boardKeyPrefix)
	if err != nil {
		return nil, err
	}
	boards := make([]store.BoardGroup, 0, len(pairs))
	for _, pair := range pairs {
		var board store.BoardGroup
		if err := json.Unmarshal([]byte(pair.Value), &board); err != nil {
			m.logger.Warn("skipping malformed board record", "key", pair.Key, "error", err)
			continue
		}
		boards = append(boards, board)
	}
	return boards, nil
}

func (m *Monitoring) DeleteNode(ctx context.Context, name string) error {
	return m.kv.Delete(ctx, nodeKeyPrefix+name)
}

func (m *Monitoring) DeleteSoc(ctx context.Context, id string) error {
	return m.kv.Delete(ctx, socKeyPrefix+id)
}

func (m *Monitoring) DeleteBoard(ctx context.Context, id string) error {
	return m.kv.Delete(ctx, boardKeyPrefix+id)
}

func (m *Monitoring) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	return m.kv.Put(ctx, key, string(data))
}

func (m *Monitoring) get(ctx context.Context, key string, v any) error {
	data, err := m.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("deserialize %s: %w", key, err)
	}
	return nil
}
