package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/warriorguo/autoflow"
	"github.com/warriorguo/autoflow/credential"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/plugin/builtin"
	"github.com/warriorguo/autoflow/server"
	"github.com/warriorguo/autoflow/snapshot"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/store/mem"
	"github.com/warriorguo/autoflow/store/pgxstore"
	"github.com/warriorguo/autoflow/types"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupLogging() {
	level, err := log.ParseLevel(getenv("AUTOFLOW_LOG_LEVEL", "info"))
	if err != nil {
		log.Warnf("unknown log level, using info: %v", err)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if getenv("AUTOFLOW_LOG_FORMAT", "text") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func openStore(ctx context.Context) (store.Store, func()) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Warn("DATABASE_URL is not set, runs are kept in memory")
		return mem.NewMemStore(), func() {}
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	s := pgxstore.New(pool)
	if err := s.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	return s, pool.Close
}

func main() {
	setupLogging()
	ctx := context.Background()

	s, closeStore := openStore(ctx)
	defer closeStore()

	registry := plugin.MustNewRegistry(builtin.Descriptors()...)
	engine := autoflow.NewEngineWithStore(s, registry,
		types.SetMaxNodeConcurrency(cast.ToInt(getenv("AUTOFLOW_MAX_CONCURRENCY", "64"))),
		types.WithCredentialProvider(credential.NewStoreProvider(s)),
		types.WithStatusSink(types.StatusSinkFunc(func(executionID, nodeID string, status types.NodeStatus) {
			log.WithFields(log.Fields{"execution": executionID, "node": nodeID}).Debugf("node %s", status)
		})),
	)

	errs, err := engine.ReloadRuns(ctx)
	if err != nil {
		log.Fatalf("reload runs: %v", err)
	}
	for executionID, err := range errs {
		log.Errorf("execution %s not resumed: %v", executionID, err)
	}

	srv := server.New(engine, snapshot.NewProvider(s))
	go func() {
		if err := srv.Listen(getenv("AUTOFLOW_ADDR", ":3000")); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown server: %v", err)
	}
	if err := engine.Close(shutdownCtx); err != nil {
		log.Errorf("close engine: %v", err)
	}
}
