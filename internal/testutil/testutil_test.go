package testutil

import (
	"context"
	"testing"

	"stars-engine/internal/store"

	"github.com/shopspring/decimal"
)

func creditAndReload(t *testing.T, first, second store.Sink) {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, first, store.Options{FlushDelay: defaultFlushDelay})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	if _, err := st.Credit(ctx, 7, decimal.RequireFromString("1.25"), "deposit", "test", "r1"); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, _ := OpenStoreWithSink(t, second, store.Options{})
	got, err := reopened.Balance(ctx, 7)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("balance after reload = %s, want 1.25", got)
	}
}

func TestMemSinkSurvivesReopen(t *testing.T) {
	sink := NewMemSink()
	creditAndReload(t, sink, sink)
	if _, ok := sink.Document(string(store.TableAccounts)); !ok {
		t.Fatal("accounts document was not saved")
	}
}

func TestPostgresSinkSurvivesReopen(t *testing.T) {
	dsn := PostgresDSN(t)
	ctx := context.Background()
	first, err := store.NewPostgresSink(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresSink() error = %v", err)
	}
	second, err := store.NewPostgresSink(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresSink() error = %v", err)
	}
	creditAndReload(t, first, second)
}

func TestSchemaDDLRejectsUnsafeNames(t *testing.T) {
	if _, err := schemaDDL("CREATE SCHEMA %s", "x; DROP TABLE y"); err == nil {
		t.Fatal("expected unsafe schema name to be rejected")
	}
	got, err := schemaDDL("DROP SCHEMA %s CASCADE", "test_1")
	if err != nil || got != `DROP SCHEMA "test_1" CASCADE` {
		t.Fatalf("schemaDDL() = %q, %v", got, err)
	}
}

func TestWithSearchPath(t *testing.T) {
	if got := withSearchPath("postgres://h/db", "s1"); got != "postgres://h/db?search_path=s1" {
		t.Fatalf("got %q", got)
	}
	if got := withSearchPath("postgres://h/db?sslmode=disable", "s1"); got != "postgres://h/db?sslmode=disable&search_path=s1" {
		t.Fatalf("got %q", got)
	}
}
