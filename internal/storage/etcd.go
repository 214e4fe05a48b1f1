package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdKV implements KV on an etcd cluster.
type EtcdKV struct {
	cli *clientv3.Client
}

func NewEtcdKV(endpoints []string, dialTimeout time.Duration, tlsCfg *tls.Config) (*EtcdKV, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		TLS:         tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client: %w", err)
	}
	return &EtcdKV{cli: cli}, nil
}

func (e *EtcdKV) Put(ctx context.Context, key, value string) error {
	if _, err := e.cli.Put(ctx, key, value); err != nil {
		return fmt.Errorf("etcd put %s: %w", key, err)
	}
	return nil
}

func (e *EtcdKV) Get(ctx context.Context, key string) (string, error) {
	resp, err := e.cli.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("etcd get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("etcd get %s: %w", key, ErrNotFound)
	}
	return string(resp.Kvs[0].Value), nil
}

func (e *EtcdKV) ListByPrefix(ctx context.Context, prefix string) ([]KVPair, error) {
	resp, err := e.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd list %s: %w", prefix, err)
	}
	pairs := make([]KVPair, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		pairs = append(pairs, KVPair{Key: string(kv.Key), Value: string(kv.Value)})
	}
	return pairs, nil
}

func (e *EtcdKV) Delete(ctx context.Context, key string) error {
	if _, err := e.cli.Delete(ctx, key); err != nil {
		return fmt.Errorf("etcd delete %s: %w", key, err)
	}
	return nil
}

func (e *EtcdKV) Close() error {
	return e.cli.Close()
}
