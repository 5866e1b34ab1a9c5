package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/dashbridge/internal/api"
	"github.com/platformbuilds/dashbridge/internal/artifacts"
	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/enrichment"
	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/internal/monitoring"
	"github.com/platformbuilds/dashbridge/internal/services"
	"github.com/platformbuilds/dashbridge/internal/store"
	"github.com/platformbuilds/dashbridge/internal/tracing"
	"github.com/platformbuilds/dashbridge/pkg/cache"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if profile := os.Getenv("DASHBRIDGE_PROFILE"); profile != "" {
		cfg = config.ApplyEnvironment(cfg, profile)
	}

	var fileOpts *logger.FileOptions
	if cfg.LogFile != "" {
		fileOpts = &logger.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
	}
	appLogger := logger.NewWithFile(cfg.LogLevel, fileOpts)
	appLogger.Info("Starting DASHBRIDGE", "version", monitoring.Version, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start on the in-memory cache and swap to Valkey once it answers.
	valkeyCache := cache.NewNoopValkeyCache(appLogger)
	if cfg.Cache.Enabled && len(cfg.Cache.Nodes) > 0 {
		if len(cfg.Cache.Nodes) == 1 {
			valkeyCache = cache.NewAutoSwapForSingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, cfg.Cache.CacheTTL(), appLogger, valkeyCache)
		} else {
			valkeyCache = cache.NewAutoSwapForCluster(cfg.Cache.Nodes, cfg.Cache.Password, cfg.Cache.CacheTTL(), appLogger, valkeyCache)
		}
		appLogger.Info("Valkey cache configured", "nodes", len(cfg.Cache.Nodes))
	} else {
		appLogger.Warn("Valkey cache disabled; using in-memory cache")
	}

	recordStore, err := openStore(cfg, valkeyCache)
	if err != nil {
		appLogger.Fatal("Failed to open record store", "backend", cfg.Store.Backend, "error", err)
	}
	defer recordStore.Close()

	var artifactStore *artifacts.Store
	if cfg.Artifacts.InMemory {
		artifactStore = artifacts.NewMemStore()
	} else {
		artifactStore, err = artifacts.NewOSStore(cfg.Artifacts.Dir)
		if err != nil {
			appLogger.Fatal("Failed to prepare artifact directory", "dir", cfg.Artifacts.Dir, "error", err)
		}
	}

	convLogger := logging.FromCoreLogger(appLogger)
	convOpts := []converter.Option{converter.WithLogger(convLogger)}
	if cfg.Enrichment.Enabled {
		enricher, err := enrichment.New(cfg.Enrichment, valkeyCache, convLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize enrichment", "provider", cfg.Enrichment.Provider, "error", err)
		}
		convOpts = append(convOpts,
			converter.WithEnricher(enricher),
			converter.WithEnrichTimeout(cfg.Enrichment.CallTimeout()),
		)
		appLogger.Info("AI enrichment enabled", "provider", cfg.Enrichment.Provider, "model", cfg.Enrichment.Model)
	}

	if cfg.Monitoring.TracingEnabled {
		tp, err := tracing.NewTracerProvider(ctx, cfg.Monitoring.ServiceName, monitoring.Version, cfg.Monitoring.OTLPEndpoint, cfg.Monitoring.SampleRatio)
		if err != nil {
			appLogger.Warn("Tracing disabled: failed to create tracer provider", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					appLogger.Warn("Tracer shutdown failed", "error", err)
				}
			}()
		}
	}
	tracer := tracing.NewConversionTracer(cfg.Monitoring.ServiceName)

	svc := services.NewConversionService(converter.New(convOpts...), recordStore, artifactStore, tracer, appLogger, cfg)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		watcher := config.NewConfigWatcher(path, cfg, appLogger)
		watcher.RegisterWatcher(func(next *config.Config) {
			svc.ApplyConfig(next)
			appLogger.Info("Conversion settings reloaded")
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				appLogger.Warn("Configuration watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	apiServer := api.NewServer(cfg, appLogger, svc, valkeyCache, recordStore)
	if err := apiServer.Start(ctx); err != nil {
		appLogger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Background batches did not finish before shutdown", "error", err)
	}

	appLogger.Info("DASHBRIDGE shutdown complete")
}

func openStore(cfg *config.Config, c cache.ValkeyCluster) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	default:
		return store.NewValkeyStore(c, cfg.Store.RecordTTLDuration()), nil
	}
}
