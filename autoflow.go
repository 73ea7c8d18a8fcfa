package autoflow

import (
	"github.com/juju/errors"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/runtime"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/store/mem"
	"github.com/warriorguo/autoflow/store/pgxstore"
	"github.com/warriorguo/autoflow/store/postgres"
	"github.com/warriorguo/autoflow/types"
)

// NewEngine creates an engine running the actions of registry.
func NewEngine(registry *plugin.Registry, opts ...types.EngineOption) (types.Engine, error) {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	s, err := newStore(options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return runtime.NewEngine(s, registry, options), nil
}

// NewEngineWithStore skips store selection, e.g. to share a pgx pool.
func NewEngineWithStore(s store.Store, registry *plugin.Registry, opts ...types.EngineOption) types.Engine {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}
	return runtime.NewEngine(s, registry, options)
}

func newStore(options *types.EngineOptions) (store.Store, error) {
	switch {
	case options.PostgresConfig != nil:
		s, err := postgres.NewPostgresStore(options.Ctx, options.PostgresConfig)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
		return s, nil

	case options.PgxDSN != "":
		s, err := pgxstore.NewFromDSN(options.Ctx, options.PgxDSN)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create pgx store")
		}
		return s, nil

	default:
		// Default to mem store if not specified
		return mem.NewMemStore(), nil
	}
}
