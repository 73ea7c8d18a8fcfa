// Package pgxstore backs store.Store with a pgx connection pool.
package pgxstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"
	"github.com/warriorguo/autoflow/store"
)

var (
	_ store.Store  = &PGStore{}
	_ store.Closer = &PGStore{}
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS autoflow_kv (
    prefix     TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BYTEA,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (prefix, key)
);
`

// PGStore keeps engine state in the autoflow_kv table.
type PGStore struct {
	db    *pgxpool.Pool
	owned bool
}

// New wraps a caller-owned pool. Close leaves the pool open.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// NewFromDSN connects, creates the schema and owns the resulting pool.
func NewFromDSN(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "pgx connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Annotate(err, "pgx ping")
	}
	s := &PGStore{db: pool, owned: true}
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

// CreateSchema creates autoflow_kv if it doesn't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return errors.Annotate(err, "create autoflow_kv")
}

// DropSchema drops autoflow_kv.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS autoflow_kv`)
	return errors.Annotate(err, "drop autoflow_kv")
}

func (s *PGStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM autoflow_kv WHERE prefix = $1 AND key = $2`,
		prefix, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get %s%s", prefix, key)
	}
	return value, nil
}

func (s *PGStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO autoflow_kv (prefix, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (prefix, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		prefix, key, value,
	)
	return errors.Annotatef(err, "set %s%s", prefix, key)
}

func (s *PGStore) Remove(ctx context.Context, prefix, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM autoflow_kv WHERE prefix = $1 AND key = $2`,
		prefix, key,
	)
	return errors.Annotatef(err, "remove %s%s", prefix, key)
}

func (s *PGStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	rows, err := s.db.Query(ctx,
		`SELECT key FROM autoflow_kv WHERE prefix = $1 ORDER BY key`, prefix)
	if err != nil {
		return errors.Annotatef(err, "list %s", prefix)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return errors.Annotatef(err, "list %s", prefix)
	}
	for _, key := range keys {
		if !iterator(key) {
			break
		}
	}
	return nil
}

func (s *PGStore) Close() error {
	if s.owned {
		s.db.Close()
	}
	return nil
}
