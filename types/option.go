package types

import (
	"context"
	"time"

	"github.com/mcuadros/go-defaults"
)

func NewEngineOptions() *EngineOptions {
	opts := &EngineOptions{Ctx: context.Background()}
	defaults.SetDefaults(opts)
	return opts
}

type EngineOptions struct {
	Ctx context.Context
	/**
	 * default: 64
	 * upper bound of nodes invoked at the same time, across all runs.
	 */
	MaxNodeConcurrency int `default:"64"`
	/**
	 * delay between attempts for handlers whose policy leaves it unset.
	 */
	DefaultRetryDelay time.Duration `default:"200ms"`
	MaxRetryDelay     time.Duration `default:"30s"`
	/**
	 * default: false, only set it to true when doing testing or developing.
	 */
	MemStore bool `default:"false"`

	// PostgresConfig takes precedence over PgxDSN, which takes precedence over MemStore.
	PostgresConfig *PostgresConfig
	PgxDSN         string

	CredentialProvider CredentialProvider
	StatusSink         StatusSink
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

type EngineOption func(*EngineOptions)

func WithContext(ctx context.Context) EngineOption {
	return func(opts *EngineOptions) {
		opts.Ctx = ctx
	}
}

func SetMaxNodeConcurrency(concurrency int) EngineOption {
	return func(opts *EngineOptions) {
		opts.MaxNodeConcurrency = concurrency
	}
}

func SetRetryDelay(delay, maxDelay time.Duration) EngineOption {
	return func(opts *EngineOptions) {
		opts.DefaultRetryDelay = delay
		opts.MaxRetryDelay = maxDelay
	}
}

func EnableMemStore() EngineOption {
	return func(opts *EngineOptions) {
		opts.MemStore = true
	}
}

// WithPostgresConfig persists runs through database/sql and lib/pq.
func WithPostgresConfig(config *PostgresConfig) EngineOption {
	return func(opts *EngineOptions) {
		opts.PostgresConfig = config
	}
}

// WithPgxDSN persists runs through a pgx connection pool.
func WithPgxDSN(dsn string) EngineOption {
	return func(opts *EngineOptions) {
		opts.PgxDSN = dsn
	}
}

func WithCredentialProvider(provider CredentialProvider) EngineOption {
	return func(opts *EngineOptions) {
		opts.CredentialProvider = provider
	}
}

func WithStatusSink(sink StatusSink) EngineOption {
	return func(opts *EngineOptions) {
		opts.StatusSink = sink
	}
}
