// Package postgres is the database/sql (lib/pq) backend of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/types"
)

var (
	_ store.Store  = &pgStore{}
	_ store.Closer = &pgStore{}
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS autoflow_store (
	prefix     TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BYTEA,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (prefix, key)
);
`

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Config is the engine's postgres option.
type Config = types.PostgresConfig

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "autoflow",
		SSLMode:  "disable",
	}
}

// Validate fills an empty sslmode with "disable".
func Validate(c *Config) error {
	switch {
	case c == nil:
		return errors.NotValidf("nil config")
	case c.Host == "":
		return errors.NotValidf("empty host")
	case c.Port <= 0 || c.Port > 65535:
		return errors.NotValidf("port %d", c.Port)
	case c.User == "":
		return errors.NotValidf("empty user")
	case c.Database == "":
		return errors.NotValidf("empty database")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if !validSSLModes[c.SSLMode] {
		return errors.NotValidf("sslmode %s", c.SSLMode)
	}
	return nil
}

func DSN(c *Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// ParseDSN reads the key=value form produced by DSN. Unknown keys are ignored.
func ParseDSN(dsn string) (*Config, error) {
	c := DefaultConfig()
	for _, part := range strings.Fields(dsn) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "host":
			c.Host = v
		case "port":
			if _, err := fmt.Sscanf(v, "%d", &c.Port); err != nil {
				return nil, errors.NotValidf("port %q", v)
			}
		case "user":
			c.User = v
		case "password":
			c.Password = v
		case "dbname":
			c.Database = v
		case "sslmode":
			c.SSLMode = v
		}
	}
	return c, errors.Trace(Validate(c))
}

type pgStore struct {
	db *sql.DB
}

// NewPostgresStore opens, pings and migrates. A nil config means DefaultConfig.
func NewPostgresStore(ctx context.Context, config *Config) (store.Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := Validate(config); err != nil {
		return nil, errors.Trace(err)
	}
	db, err := sql.Open("postgres", DSN(config))
	if err != nil {
		return nil, errors.Annotatef(err, "open postgres %s:%d", config.Host, config.Port)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Annotatef(err, "ping postgres %s:%d", config.Host, config.Port)
	}
	s, err := NewPostgresStoreWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB) (store.Store, error) {
	if db == nil {
		return nil, errors.BadRequestf("nil db")
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errors.Annotate(err, "create autoflow_store")
	}
	return &pgStore{db: db}, nil
}

func (p *pgStore) Get(ctx context.Context, prefix, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM autoflow_store WHERE prefix = $1 AND key = $2`, prefix, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return value, errors.Annotatef(err, "get %s%s", prefix, key)
}

func (p *pgStore) Set(ctx context.Context, prefix, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO autoflow_store (prefix, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (prefix, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		prefix, key, value)
	return errors.Annotatef(err, "set %s%s", prefix, key)
}

func (p *pgStore) Remove(ctx context.Context, prefix, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM autoflow_store WHERE prefix = $1 AND key = $2`, prefix, key)
	return errors.Annotatef(err, "remove %s%s", prefix, key)
}

// List collects keys before iterating so the iterator may call back into the store.
func (p *pgStore) List(ctx context.Context, prefix string, iterator func(key string) bool) error {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM autoflow_store WHERE prefix = $1 ORDER BY key`, prefix)
	if err != nil {
		return errors.Annotatef(err, "list %s", prefix)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return errors.Annotatef(err, "scan %s", prefix)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Annotatef(err, "list %s", prefix)
	}

	for _, key := range keys {
		if !iterator(key) {
			break
		}
	}
	return nil
}

func (p *pgStore) Close() error {
	return p.db.Close()
}
