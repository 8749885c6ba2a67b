package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/api"
	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine"
	"github.com/leadflowhq/leadflow/engine/compliance"
	"github.com/leadflowhq/leadflow/engine/convcache"
	"github.com/leadflowhq/leadflow/engine/dedup"
	"github.com/leadflowhq/leadflow/engine/handoff"
	"github.com/leadflowhq/leadflow/engine/normalize"
	"github.com/leadflowhq/leadflow/engine/qualify"
	"github.com/leadflowhq/leadflow/engine/ratelimit"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/migration"
	"github.com/leadflowhq/leadflow/internal/server"
	"github.com/leadflowhq/leadflow/internal/taskq"
	"github.com/leadflowhq/leadflow/internal/telemetry"
	"github.com/leadflowhq/leadflow/providers"
)

// deferredDrainInterval is how often held-back replies are rechecked.
const deferredDrainInterval = 30 * time.Second

func runServe(args []string) {
	cfg := loadConfig(args, "serve")

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting leadflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without", zap.Error(err))
	}

	// Shared cache. The engine degrades to in-process fallbacks without it,
	// which is only safe for a single instance.
	redis, err := cache.NewManager(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running on in-process fallbacks", zap.Error(err))
		redis = nil
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}

	store := storage.NewStore(db, logger)
	if err := migrateSchema(cfg.Database, store, logger); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	var archive *storage.Archive
	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err = storage.OpenArchive(ctx, cfg.Archive, logger)
		cancel()
		if err != nil {
			logger.Warn("archive unavailable, history lookups use the recent window", zap.Error(err))
			archive = nil
		}
	}

	collector := metrics.NewCollector("leadflow")
	queue := taskq.New(cfg.Engine.Worker, logger)
	queue.OnDepth(collector.SetQueueDepth)

	var guard dedup.Guard
	if redis != nil {
		guard = dedup.NewRedisGuard(cfg.Engine.Dedup, redis, logger)
	} else {
		guard = dedup.NewMemoryGuard(cfg.Engine.Dedup)
	}

	normalizer := normalize.New(cfg.Server.WebhookSecret, logger)
	limiter := ratelimit.New(cfg.Engine.RateLimit, redis, logger)

	eng := engine.New(cfg.Engine, engine.Deps{
		Guard:      guard,
		Normalizer: normalizer,
		Filter:     compliance.New(cfg.Engine.Compliance, logger),
		Cache:      convcache.New(cfg.Engine.Cache, redis, store, archive, collector, logger),
		Store:      store,
		Machine:    qualify.NewMachine(cfg.Engine.Qualification, logger),
		Coord:      handoff.New(cfg.Engine.Handoff, redis, store, logger),
		Limiter:    limiter,
		Queue:      queue,
		CRM:        buildCRM(cfg.Providers.CRM, logger),
		Messenger:  buildMessenger(cfg.Providers.Messenger, logger),
		Calendar:   buildCalendar(cfg.Providers.Calendar, logger),
		Metrics:    collector,
	}, logger)

	router := api.NewRouter(cfg.Server, api.Deps{
		Engine:     eng,
		Normalizer: normalizer,
		Redis:      redis,
		DB:         db,
		Queue:      queue,
	}, logger)

	srv := server.NewManager(router.Handler(), cfg.Server, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}

	drainCtx, stopDrain := context.WithCancel(context.Background())
	go eng.RunDeferredLoop(drainCtx, deferredDrainInterval)

	waitForShutdown(srv, logger)
	stopDrain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	queue.Close()
	if archive != nil {
		_ = archive.Close(shutdownCtx)
	}
	if redis != nil {
		_ = redis.Close()
	}
	_ = db.Close()
	if otelProviders != nil {
		_ = otelProviders.Shutdown(shutdownCtx)
	}
	logger.Info("leadflow stopped")
}

// migrateSchema brings the store current: versioned migrations for server
// databases, GORM auto-migration for sqlite.
func migrateSchema(cfg config.DatabaseConfig, store *storage.Store, logger *zap.Logger) error {
	if cfg.Driver == "sqlite" {
		return store.AutoMigrate()
	}
	mg, err := migration.New(cfg)
	if err != nil {
		return err
	}
	defer mg.Close()
	if err := mg.Up(); err != nil {
		return err
	}
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	logger.Info("schema current", zap.Uint("version", version))
	return nil
}

func buildCRM(cfg config.CollaboratorConfig, logger *zap.Logger) providers.CRM {
	if cfg.BaseURL == "" {
		logger.Warn("no CRM endpoint configured, using in-memory fake")
		return providers.NewMemoryCRM()
	}
	return providers.NewHTTPCRM(clientConfig(cfg), logger)
}

func buildMessenger(cfg config.CollaboratorConfig, logger *zap.Logger) providers.Messenger {
	if cfg.BaseURL == "" {
		logger.Warn("no messenger endpoint configured, using in-memory fake")
		return providers.NewMemoryMessenger()
	}
	return providers.NewHTTPMessenger(clientConfig(cfg), logger)
}

func buildCalendar(cfg config.CollaboratorConfig, logger *zap.Logger) providers.Calendar {
	if cfg.BaseURL == "" {
		logger.Warn("no calendar endpoint configured, using in-memory fake")
		return providers.NewMemoryCalendar()
	}
	return providers.NewHTTPCalendar(clientConfig(cfg), logger)
}

func clientConfig(cfg config.CollaboratorConfig) providers.ClientConfig {
	return providers.ClientConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Timeout: cfg.Timeout}
}

func waitForShutdown(srv *server.Manager, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-srv.Err():
		logger.Error("server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
