// Package testutil holds store fixtures shared by package tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"stars-engine/internal/store"
)

// MemSink keeps ledger documents in memory.
type MemSink struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemSink() *MemSink {
	return &MemSink{docs: map[string][]byte{}}
}

func (m *MemSink) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.docs[name]; ok {
		return b, nil
	}
	return nil, store.ErrNoDocument
}

func (m *MemSink) Save(_ context.Context, name string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), body...)
	return nil
}

func (m *MemSink) Ping(context.Context) error { return nil }
func (m *MemSink) Close() error               { return nil }

// Document returns the last saved body for name.
func (m *MemSink) Document(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[name]
	return b, ok
}

// OpenStore returns a store backed by a fresh MemSink. The background flusher
// is pushed out to an hour unless opts sets FlushDelay.
func OpenStore(t testing.TB, opts store.Options) *store.Store {
	t.Helper()
	st, _ := OpenStoreWithSink(t, NewMemSink(), opts)
	return st
}

func OpenStoreWithSink(t testing.TB, sink store.Sink, opts store.Options) (*store.Store, store.Sink) {
	t.Helper()
	if opts.FlushDelay == 0 {
		opts.FlushDelay = defaultFlushDelay
	}
	st, err := store.New(context.Background(), sink, opts)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st, sink
}
