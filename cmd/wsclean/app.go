package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/config"
	"github.com/mattjoyce/wsclean/internal/inventory"
	"github.com/mattjoyce/wsclean/internal/log"
	"github.com/mattjoyce/wsclean/internal/metrics"
	"github.com/mattjoyce/wsclean/internal/runlog"
	"github.com/mattjoyce/wsclean/internal/storage"
	"github.com/mattjoyce/wsclean/internal/workpool"
	"github.com/mattjoyce/wsclean/internal/workspace"
)

// app is the wiring shared by every command that touches the database.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	inventory *inventory.Store
	runs      *runlog.Store
	registry  *prometheus.Registry
	cleaner   *cleanup.Orchestrator
	logger    *slog.Logger
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}

// openApp loads configuration, opens the database and builds the cleanup
// engine. Callers must Close it.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openAppWithConfig(ctx, cfg, log.New(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat))
}

func openAppWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.State.Path, err)
	}

	a := &app{
		cfg:       cfg,
		db:        db,
		inventory: inventory.NewStore(db),
		runs:      runlog.NewStore(db),
		registry:  prometheus.NewRegistry(),
		logger:    logger,
	}
	a.cleaner = cleanup.NewOrchestrator(cfg.Settings(), cleanup.Deps{
		Catalog:    a.inventory,
		Labels:     a.inventory,
		Workspaces: a.inventory,
		History:    a.inventory,
		Deleter:    workspace.NewFSDeleter(cfg.Mounts, logger.With("component", "workspace")),
		Pool:       workpool.New(cfg.Cleanup.PoolSize),
		Runs:       a.runs,
		Metrics:    metrics.New(a.registry),
		Logger:     logger,
	})
	return a, nil
}

// lockDir holds the per-job run locks, next to the database.
func (a *app) lockDir() string {
	return filepath.Join(filepath.Dir(a.cfg.State.Path), "locks")
}

func (a *app) Close() error {
	return a.db.Close()
}
