package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/config"
	"github.com/openhealth/modelserve/internal/drift"
	"github.com/openhealth/modelserve/internal/loader"
	"github.com/openhealth/modelserve/internal/monitoring"
	"github.com/openhealth/modelserve/internal/registry"
	"github.com/openhealth/modelserve/internal/server"
	"github.com/openhealth/modelserve/internal/serving"
	"github.com/openhealth/modelserve/internal/storage"
)

func main() {
	flags := ParseFlags()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	applyFlags(cfg, flags)

	logger := setupLogger(cfg.Monitoring.LogLevel, cfg.Monitoring.LogFormat)

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting model serving daemon")

	store, err := storage.NewFileStore(&storage.FileStoreConfig{
		BaseDir:    cfg.Models.Dir,
		CreateDirs: true,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize artifact store")
	}

	reg, err := registry.New(&registry.Config{
		Dir:            cfg.Models.Dir,
		DefaultVersion: cfg.Models.DefaultVersion,
		PinnedVersion:  cfg.Models.PinnedVersion,
		KnownModels:    cfg.Models.KnownModels,
	}, store, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize version registry")
	}

	cache := loader.NewCache(reg, store, logger)

	var prom *monitoring.PromMetrics
	if cfg.Monitoring.MetricsEnabled {
		prom = monitoring.NewPromMetrics("modelserve")
	}
	collector := monitoring.NewCollector(logger, prom)

	// The detector always exists so reference stats stay manageable over
	// the admin API; DriftEnabled only gates the in-pipeline check.
	detector, err := drift.New(&drift.Config{
		Dir:       cfg.Monitoring.ReferenceStatsDir,
		Threshold: cfg.Monitoring.DriftThreshold,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize drift detector")
	}

	policy := serving.NewFallbackPolicy(cfg.Models.ConfidenceThreshold, collector, prom, logger)
	orchestrator := serving.NewOrchestrator(reg, cache, policy, collector, detector, prom, logger,
		cfg.Monitoring.DriftEnabled)

	if cfg.Models.Preload {
		cache.Preload(cfg.Models.KnownModels)
	}

	handlers := server.NewHandlers(orchestrator, reg, cache, collector, detector, logger, cfg, Version)
	router := server.NewRouter(handlers, logger)
	srv := server.New(cfg, router, prom, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Server stopped")
}

func applyFlags(cfg *config.Config, flags *Flags) {
	if flags.Host != "" {
		cfg.Server.Host = flags.Host
	}
	if flags.Port != 0 {
		cfg.Server.Port = flags.Port
	}
	if flags.MetricsPort != 0 {
		cfg.Server.MetricsPort = flags.MetricsPort
	}
	if flags.ModelsDir != "" {
		cfg.Models.Dir = flags.ModelsDir
	}
	if flags.PinnedVersion != "" {
		cfg.Models.PinnedVersion = flags.PinnedVersion
	}
	if flags.LogLevel != "" {
		cfg.Monitoring.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Monitoring.LogFormat = flags.LogFormat
	}
	if flags.Preload {
		cfg.Models.Preload = true
	}
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
