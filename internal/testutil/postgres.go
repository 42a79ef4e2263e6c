package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"stars-engine/internal/config"
	"stars-engine/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultFlushDelay = time.Hour

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresDSN creates a throwaway schema on TEST_POSTGRES_DSN and returns a dsn
// pinned to it. The schema is dropped on cleanup. Tests skip without a database.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	defer base.Close()
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(context.Background(), createSchemaSQL); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	t.Cleanup(func() {
		base, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return
		}
		defer base.Close()
		if dropSchemaSQL, err := schemaDDL("DROP SCHEMA %s CASCADE", schema); err == nil {
			_, _ = base.Exec(context.Background(), dropSchemaSQL)
		}
	})
	return withSearchPath(dsn, schema)
}

// OpenPostgresSink opens a sink inside an isolated schema.
func OpenPostgresSink(t testing.TB) *store.PostgresSink {
	t.Helper()
	sink, err := store.NewPostgresSink(context.Background(), PostgresDSN(t))
	if err != nil {
		t.Fatalf("NewPostgresSink() error = %v", err)
	}
	return sink
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
