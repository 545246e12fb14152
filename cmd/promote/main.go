package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/config"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
	"github.com/rktik/cortex/internal/service"
)

func main() {
	// Bootstrap logger; replaced once configuration is loaded
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "cortex-promote",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	movementName := flag.String("movement", "", "Sweep a single movement by username")
	workers := flag.Int("workers", 0, "Number of sweep workers (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}
	if *workers > 0 {
		cfg.Promote.Workers = *workers
	}

	// Rebuild the logger from the loaded settings; a configured file path
	// turns on rotation
	appLogger = logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "cortex-promote",
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Compress:    cfg.Logging.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Close()

	appLogger.WithFields(logger.Fields{
		"movement": *movementName,
		"workers":  cfg.Promote.Workers,
		"batch":    cfg.Promote.BatchSize,
	}).Info("Starting promotion sweep")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize the view cache, falling back to an in-process cache so
	// the sweep can run against a plain database in development
	viewCache, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, using in-process cache")
		viewCache = cache.NewMemory()
	}
	if closer, ok := viewCache.(io.Closer); ok {
		defer closer.Close()
	}

	// Initialize repositories
	thoughtRepo := repository.NewThoughtRepository(db)
	perceptRepo := repository.NewPerceptRepository(db)
	identityRepo := repository.NewIdentityRepository(db)

	// Initialize services
	membershipService := service.NewMembershipService(identityRepo, viewCache, appLogger)
	promotionService := service.NewPromotionService(
		thoughtRepo,
		perceptRepo,
		membershipService,
		viewCache,
		appLogger,
	)
	sweepService := service.NewSweepService(
		thoughtRepo,
		identityRepo,
		promotionService,
		appLogger,
		&service.SweepConfig{
			Workers:   cfg.Promote.Workers,
			BatchSize: cfg.Promote.BatchSize,
		},
	)

	// Handle graceful shutdown; services read the logger back out of the
	// context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = appLogger.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run the sweep
	var stats *service.SweepStats
	if *movementName != "" {
		movement, err := identityRepo.GetMovementByUsername(ctx, *movementName)
		if err != nil {
			appLogger.WithError(err).WithField("movement", *movementName).Fatal("Unknown movement")
		}
		stats, err = sweepService.RunMovement(ctx, movement)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to sweep movement")
		}
	} else {
		stats, err = sweepService.Run(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to sweep movements")
		}
	}

	appLogger.WithFields(logger.Fields{
		"movements": stats.Movements,
		"checked":   stats.Checked,
		"promoted":  stats.Promoted,
		"failed":    stats.Failed,
	}).Info("Sweep completed")
}
