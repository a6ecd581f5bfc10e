package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/api"
	"github.com/clinimetric-scale-server/internal/cache"
	"github.com/clinimetric-scale-server/internal/config"
	"github.com/clinimetric-scale-server/internal/database"
	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/logging"
	"github.com/clinimetric-scale-server/internal/repository"
	"github.com/clinimetric-scale-server/internal/results"
	"github.com/clinimetric-scale-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Up(ctx); err != nil {
		migrator.Close()
		return err
	}
	if status, err := migrator.Status(); err == nil {
		logger.WithFields(logrus.Fields{
			"schema_version": status.Version,
			"source":         status.Source,
			"pool":           db.Summary(),
		}).Info("Scale store ready")
	}
	migrator.Close()

	repo := repository.NewBreakerRepository(
		repository.NewScaleRepository(db.Pool, logger),
		repository.BreakerConfig{
			Timeout:     cfg.Database.BreakerTimeout,
			MaxFailures: cfg.Database.BreakerFailures,
		},
		logger,
	)

	checks := []api.ServerOption{api.WithHealthCheck("database", db.Health)}
	var catalogOpts []service.CatalogOption

	if cfg.Cache.Enabled {
		var shared domain.ReportCache
		if cfg.Cache.RedisURL != "" {
			redisCache, err := cache.NewRedisReportCache(cfg.Cache, logger)
			if err != nil {
				logger.WithError(err).Warn("Redis unavailable, caching validation reports in memory only")
			} else {
				defer redisCache.Close()
				shared = redisCache
				checks = append(checks, api.WithHealthCheck("cache", redisCache.Ping))
			}
		}
		memory := cache.NewMemoryReportCache(cfg.Cache.MemoryEntries, cfg.Cache.DefaultTTL)
		catalogOpts = append(catalogOpts, service.WithReportCache(cache.NewTieredReportCache(memory, shared, logger)))
	}

	if cfg.Scoring.RecordResults {
		store, err := results.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
		if err != nil {
			return err
		}
		defer store.Close()
		catalogOpts = append(catalogOpts, service.WithResultStore(store))
	}

	validator := service.NewScaleDefinitionValidator(logger, nil)
	orchestrator := service.NewAssessmentOrchestrator(logger)
	catalog := service.NewScaleCatalog(logger, repo, validator, orchestrator, catalogOpts...)
	batch := service.NewBatchValidator(logger, validator, cfg.Scoring.BatchConcurrency)

	server := api.NewServer(configManager, catalog, batch, logger, checks...)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting clinimetric scale server")

	return server.Start(ctx)
}
