package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fennelouski/cardoncue/internal/api"
	"github.com/fennelouski/cardoncue/internal/config"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/provider"
	"github.com/fennelouski/cardoncue/internal/repository"
	"github.com/fennelouski/cardoncue/internal/service"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	// Provider chain in increasing-cost order
	providers := buildProviderChain(cfg)

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

	queueService := service.NewQueueService(jobRepo, locationRepo, keys, cfg.Queue.MaxAttempts, appLogger)

	// Setup router
	router := api.SetupRouter(queueService, processor, cfg, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// buildProviderChain wires the three lookup tiers from configuration.
func buildProviderChain(cfg *config.Config) []provider.Provider {
	return []provider.Provider{
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
}
