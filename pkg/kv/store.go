package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is missing or expired
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store closed")
)

// Store is the slice of Redis string commands the snapshot cache needs.
// A zero ttl keeps the value until the store is closed.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}
