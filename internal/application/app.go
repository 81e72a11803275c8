// Package application wires configuration into a running import service.
// Both the HTTP server and the CLI start from here.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/core/pipelines"
	"github.com/JonMunkholm/bulkimport/internal/remote"
	"github.com/JonMunkholm/bulkimport/internal/store/postgres"
)

// App holds the service and the resources it owns.
type App struct {
	Config  *config.Config
	Service *core.Service
	Store   core.ReportStore

	pool *pgxpool.Pool
}

// New applies the pipelines overlay, opens the report store and builds the
// service with its remote clients. Close must be called when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := pipelines.ApplyOverlayFile(cfg.PipelinesFile); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	if cfg.Database.Enabled() {
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := postgres.NewReportStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure report schema: %w", err)
		}
		app.pool = pool
		app.Store = store
		slog.Info("reports stored in database", "max_conns", cfg.Database.MaxConns)
	} else {
		app.Store = core.NewMemoryReportStore(cfg.Runs.MemoryReports)
		slog.Info("reports kept in memory", "max_reports", cfg.Runs.MemoryReports)
	}

	catalog := remote.NewCatalogClient(remote.Options{
		BaseURL:   cfg.Catalog.URL,
		Timeout:   cfg.Catalog.Timeout,
		RateLimit: cfg.Catalog.RateLimit,
		APIKey:    cfg.Catalog.APIKey,
	})
	executor := remote.NewExecutionClient(remote.Options{
		BaseURL:   cfg.Executor.URL,
		Timeout:   cfg.Executor.Timeout,
		RateLimit: cfg.Executor.RateLimit,
		APIKey:    cfg.Executor.APIKey,
	})

	app.Service = core.NewService(catalog, executor, app.Store, ServiceConfig(cfg))

	slog.Info("pipelines registered", "count", core.PipelineCount())
	for _, def := range core.All() {
		slog.Debug("pipeline", "key", def.Key, "fields", len(def.Fields), "batch_size", def.BatchSize)
	}
	return app, nil
}

// ServiceConfig maps the run and execution settings onto core.ServiceConfig.
func ServiceConfig(cfg *config.Config) core.ServiceConfig {
	return core.ServiceConfig{
		RunTTL:                  cfg.Runs.TTL,
		ExecTimeout:             cfg.Exec.Timeout,
		Idempotent:              cfg.Exec.Idempotent,
		MaxConcurrentExecutions: cfg.Exec.MaxConcurrent,
		ExecSlotWait:            cfg.Exec.SlotWait,
	}
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
