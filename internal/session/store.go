// Package session keeps per-client state behind an opaque cookie. State is a
// small set of byte values per session, held in memory, BadgerDB, or SQLite.
package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session or key does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Store persists per-session values. Every Set refreshes the session's
// lifetime; sessions not written for longer than the TTL disappear.
type Store interface {
	Get(ctx context.Context, id, key string) ([]byte, error)
	Set(ctx context.Context, id, key string, value []byte) error
	Delete(ctx context.Context, id string) error
	CheckReadiness(ctx context.Context) error
	Close() error
}

// Sweeper is implemented by stores that need periodic removal of expired data.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
