package storage

import (
	"context"
)

// ContextStore holds published payloads keyed by a store-assigned id.
// Implementations are safe for concurrent use; a record becomes visible to Get
// only once it is completely written.
type ContextStore interface {
	// Put stores payload under a fresh id and returns the id.
	Put(ctx context.Context, payload string) (string, error)
	// Get returns the payload stored under id, or an error matching errors.ErrNotFound.
	Get(ctx context.Context, id string) (string, error)
	Ping(ctx context.Context) error
	Close() error
}
