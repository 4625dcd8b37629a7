package entrypoint

import (
	"context"
	"fmt"

	"github.com/mrlokans/catalogmirror/internal/archive"
	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/coordinator"
	"github.com/mrlokans/catalogmirror/internal/database"
	"github.com/mrlokans/catalogmirror/internal/database/catalog"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/events"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/metrics"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
	"github.com/mrlokans/catalogmirror/internal/syncer"
	"github.com/mrlokans/catalogmirror/internal/watchdog"
)

// App holds the sync engine. The server and the CLI commands share it.
type App struct {
	Config       *config.Config
	DB           *database.Database
	Broker       *events.Broker
	Metrics      *metrics.Collectors
	Jobs         *jobs.Repository
	Catalog      *catalog.Repository
	Watchdog     *watchdog.Watchdog
	Orchestrator *syncer.Orchestrator
	Coordinator  *coordinator.Coordinator
}

// Build opens the database and wires every engine component.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	broker := events.NewBroker()
	collectors := metrics.New()

	jobRepo := jobs.NewRepository(db.DB, broker)
	catalogRepo := catalog.NewRepository(db.DB)
	fetcher := pokeapi.NewClient(upstreamConfig(cfg.Upstream), collectors)

	wd := watchdog.New(jobRepo, cfg.Watchdog, collectors)
	processor := syncer.NewProcessor(jobRepo, fetcher, catalogRepo, archiver, collectors)
	orchestrator := syncer.NewOrchestrator(jobRepo, processor, wd, cfg.Sync)

	coord := coordinator.New(jobRepo, catalogRepo, orchestrator, orchestrator.SyncType(), cfg.Coordinator, cfg.Watchdog.StuckThreshold)
	coord.SetSubscriber(broker)

	logger.Default().WithFields(logger.Fields{
		"driver":          db.Driver,
		"sync_type":       orchestrator.SyncType(),
		"archive_enabled": cfg.Archive.Enabled,
	}).Info("Sync engine ready")

	return &App{
		Config:       cfg,
		DB:           db,
		Broker:       broker,
		Metrics:      collectors,
		Jobs:         jobRepo,
		Catalog:      catalogRepo,
		Watchdog:     wd,
		Orchestrator: orchestrator,
		Coordinator:  coord,
	}, nil
}

// SyncType is the configured sync type.
func (a *App) SyncType() entities.SyncType {
	return a.Orchestrator.SyncType()
}

// Close stops event delivery and closes the database.
func (a *App) Close() error {
	a.Broker.Close()
	return a.DB.Close()
}

func upstreamConfig(cfg config.Upstream) pokeapi.Config {
	return pokeapi.Config{
		BaseURL:        cfg.BaseURL,
		Concurrency:    cfg.Concurrency,
		BatchDelay:     cfg.BatchDelay,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.Timeout,
		UserAgent:      cfg.UserAgent,
	}
}

// SetupLogger installs the process logger described by cfg.
func SetupLogger(cfg config.Log) *logger.Logger {
	log := logger.New(&logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		File:        cfg.File,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
		ServiceName: "catalogmirror",
	})
	logger.SetDefault(log)
	return log
}
