package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/llm-smart-labels/internal/adapters/cache"
	"github.com/mikey/llm-smart-labels/internal/adapters/ingest"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/mikey/llm-smart-labels/internal/di"
	"github.com/mikey/llm-smart-labels/internal/factory"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the dependency injection container
	container, err := di.BuildContainer(ctx, *configFile)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		closers *factory.Closers,
		smtpIngest *ingest.SMTPIngest,
		cacheRepo core.CacheRepository,
	) error {
		return run(ctx, cfg, logger, closers, smtpIngest, cacheRepo)
	}); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	closers *factory.Closers,
	smtpIngest *ingest.SMTPIngest,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()
	defer func() {
		if err := closers.Close(); err != nil {
			logger.Error("Failed to release resources", zap.Error(err))
		}
	}()

	ingestCfg, err := cfg.GetIngest()
	if err != nil {
		return err
	}
	if ingestCfg.Enabled {
		if err := smtpIngest.Start(); err != nil {
			logger.Error("Failed to start SMTP ingest", zap.Error(err))
			return err
		}
		defer func() {
			if err := smtpIngest.Stop(); err != nil {
				logger.Error("Failed to stop SMTP ingest", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("SMTP ingest disabled, only the cache sweeper is running")
	}

	if cacheRepo != nil {
		if _, selfCleaning := cacheRepo.(*cache.MemoryCache); !selfCleaning {
			cacheCfg, err := cfg.GetCache()
			if err != nil {
				return err
			}
			go sweepCache(ctx, cacheRepo, cacheCfg.CleanupFrequency, logger)
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	return nil
}

func sweepCache(ctx context.Context, repo core.CacheRepository, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := repo.Cleanup(ctx); err != nil {
				logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
