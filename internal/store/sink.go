package store

import (
	"context"
	"errors"
)

var ErrNoDocument = errors.New("document not found")

// Sink persists one JSON document per table. Save must replace the previous
// body atomically.
type Sink interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, body []byte) error
	Ping(ctx context.Context) error
	Close() error
}
