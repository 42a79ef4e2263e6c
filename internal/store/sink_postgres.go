package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentsDDL = `CREATE TABLE IF NOT EXISTS ledger_documents (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink stores table documents as JSONB rows.
type PostgresSink struct {
	Pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresSink{Pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, documentsDDL); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.Pool.QueryRow(ctx, `SELECT body FROM ledger_documents WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *PostgresSink) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO ledger_documents (name, body, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, name, string(body))
	return err
}

func (s *PostgresSink) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *PostgresSink) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}
