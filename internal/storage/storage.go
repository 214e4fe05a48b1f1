// Package storage provides the durable key-value adapter the monitor
// writes through after successful upserts. The in-memory aggregates remain
// the source of truth; everything here is best-effort durability.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports a lookup miss. Callers treat it as "no such entity
// yet", not as a failure.
var ErrNotFound = errors.New("key not found")

type KVPair struct {
	Key   string
	Value string
}

// KV is the durable store boundary: put/get/list-by-prefix/delete over
// string keys and values.
type KV interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	ListByPrefix(ctx context.Context, prefix string) ([]KVPair, error)
	Delete(ctx context.Context, key string) error
}
