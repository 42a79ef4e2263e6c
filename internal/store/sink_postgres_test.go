package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stars-engine/internal/config"
)

func TestPostgresSinkRoundTrip(t *testing.T) {
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx := context.Background()
	sink, err := NewPostgresSink(ctx, cfg.TestPostgresDSN)
	if err != nil {
		t.Fatalf("NewPostgresSink() error = %v", err)
	}
	defer sink.Close()

	name := fmt.Sprintf("test_accounts_%d", time.Now().UnixNano())
	defer func() {
		_, _ = sink.Pool.Exec(ctx, `DELETE FROM ledger_documents WHERE name = $1`, name)
	}()

	if _, err := sink.Load(ctx, name); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Load(missing) err = %v", err)
	}
	if err := sink.Save(ctx, name, []byte(`{"1":{"balance":"1"}}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := sink.Save(ctx, name, []byte(`{"1":{"balance":"2"}}`)); err != nil {
		t.Fatalf("Save() upsert error = %v", err)
	}
	raw, err := sink.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(raw) != `{"1": {"balance": "2"}}` {
		t.Fatalf("Load() = %s", raw)
	}
}
