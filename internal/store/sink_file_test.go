package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}
	ctx := context.Background()

	if _, err := sink.Load(ctx, "accounts"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Load(missing) err = %v, want ErrNoDocument", err)
	}
	if err := sink.Save(ctx, "accounts", []byte(`{"1":{}}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := sink.Save(ctx, "accounts", []byte(`{"2":{}}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, err := sink.Load(ctx, "accounts")
	if err != nil || string(raw) != `{"2":{}}` {
		t.Fatalf("Load() = %s, %v", raw, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "accounts.json" {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestStoreOverFileSinkSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	sink, _ := NewFileSink(dir)
	st := newTestStore(t, sink, Options{})
	if _, err := st.Credit(ctx, 42, dec("1.25"), "deposit", "", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sink2, _ := NewFileSink(dir)
	st2 := newTestStore(t, sink2, Options{})
	if bal, _ := st2.FreshBalance(ctx, 42); !bal.Equal(dec("1.25")) {
		t.Fatalf("balance after restart = %s", bal)
	}
}
