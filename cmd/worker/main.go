package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fennelouski/cardoncue/internal/config"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/provider"
	"github.com/fennelouski/cardoncue/internal/repository"
	"github.com/fennelouski/cardoncue/internal/service"
	"github.com/robfig/cron/v3"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "cardoncue-worker",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	batchSize := flag.Int("batch", 0, "Batch size override (0 uses configured size)")
	schedule := flag.Bool("schedule", false, "Keep running and process batches on the configured cron spec")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	jobRepo := repository.NewJobRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	providers := []provider.Provider{
		provider.NewCommunityProvider(&provider.CommunityConfig{
			Endpoint:    cfg.Providers.Community.Endpoint,
			MinInterval: time.Duration(cfg.Providers.Community.MinIntervalMs) * time.Millisecond,
			Timeout:     time.Duration(cfg.Providers.Community.TimeoutS) * time.Second,
		}),
		provider.NewCommercialProvider(&provider.CommercialConfig{
			APIKey:      cfg.Providers.Commercial.APIKey,
			BaseURL:     cfg.Providers.Commercial.BaseURL,
			SearchCost:  cfg.Providers.Commercial.SearchCost,
			DetailsCost: cfg.Providers.Commercial.DetailsCost,
			MaxDetails:  cfg.Providers.Commercial.MaxDetails,
			Timeout:     time.Duration(cfg.Providers.Commercial.TimeoutS) * time.Second,
		}),
		provider.NewAIDiscoveryProvider(&provider.AIDiscoveryConfig{
			APIKey:    cfg.Providers.AI.APIKey,
			Model:     cfg.Providers.AI.Model,
			BaseURL:   cfg.Providers.AI.BaseURL,
			FixedCost: cfg.Providers.AI.FixedCost,
			Timeout:   time.Duration(cfg.Providers.AI.TimeoutS) * time.Second,
		}),
	}

	keys := service.KeyOptions{
		GridDegrees:    cfg.Resolver.CoordGridDegrees,
		RadiusBucketKm: cfg.Resolver.RadiusBucketKm,
	}

	resolver := service.NewResolver(cacheRepo, providers, service.ResolverConfig{
		SufficiencyThreshold: cfg.Resolver.SufficiencyThreshold,
		CacheTTL:             time.Duration(cfg.Resolver.CacheTTLDays) * 24 * time.Hour,
		Keys:                 keys,
	}, appLogger)

	processor := service.NewProcessor(jobRepo, locationRepo, cacheRepo, resolver, service.ProcessorConfig{
		BatchSize:  cfg.Queue.BatchSize,
		JobDelay:   time.Duration(cfg.Queue.JobDelayMs) * time.Millisecond,
		StaleAfter: time.Duration(cfg.Queue.StaleAfterMinutes) * time.Minute,
	}, appLogger)

	runOnce := func() {
		ctx := context.Background()
		result, err := processor.ProcessBatch(ctx, *batchSize)
		if err != nil {
			appLogger.WithError(err).Error("Batch run failed")
			return
		}
		appLogger.WithFields(logger.Fields{
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"reclaimed": result.Reclaimed,
		}).Info("Batch run finished")
	}

	if !*schedule {
		runOnce()
		return
	}

	// Scheduled mode for single-binary deployments. The primary deployment
	// still uses an external scheduler hitting the API trigger; this mode is
	// the same processor on an in-process cron.
	c := cron.New()
	if _, err := c.AddFunc(cfg.Scheduler.Cron, runOnce); err != nil {
		appLogger.WithError(err).Fatal("Invalid cron spec")
	}
	c.Start()
	appLogger.WithField("cron", cfg.Scheduler.Cron).Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Stopping scheduler...")
	<-c.Stop().Done()
	appLogger.Info("Scheduler stopped")
}
