// Package store is the blob store behind baselines and scratch captures:
// an opaque put/get keyspace so the pipeline never touches the filesystem
// directly.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Store is a key-value blob store. Keys are slash-separated paths.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}
