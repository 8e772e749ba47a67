package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalfleet/intelligence-engine/internal/api"
	"github.com/signalfleet/intelligence-engine/internal/cache"
	"github.com/signalfleet/intelligence-engine/internal/config"
	"github.com/signalfleet/intelligence-engine/internal/detect"
	"github.com/signalfleet/intelligence-engine/internal/engine"
	"github.com/signalfleet/intelligence-engine/internal/healing"
	"github.com/signalfleet/intelligence-engine/internal/metrics"
	"github.com/signalfleet/intelligence-engine/internal/status"
	"github.com/signalfleet/intelligence-engine/internal/store"
	"github.com/signalfleet/intelligence-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting intelligence-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, status views uncached", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	analysisStore := openStore(cfg, logger)
	defer analysisStore.Close()

	scorers := []detect.Model{
		detect.NewBreakingChangeModel(cfg.Models.BreakingChangeThreshold),
		detect.NewAnomalyModel(cfg.Models.AnomalyThreshold),
		detect.NewPerformanceModel(cfg.Models.PerformanceThreshold),
	}
	trainer := detect.NewTrainer(logger, analysisStore, cfg.Models.TrainingHistoryBatchSize)

	dispatcher := healing.NewDispatcher(logger, cfg.Healing, analysisStore, nil, nil)
	pipeline := engine.NewPipeline(logger, cfg, analysisStore, scorers, dispatcher)
	reporter := status.NewReporter(logger, analysisStore, cacheProvider, cfg.Cache.StatusTTL)
	pipeline.SetInvalidate(reporter.Invalidate)

	server := api.NewServer(logger, pipeline, dispatcher, reporter, trainer, scorers)
	dispatcher.SetListener(server.Feed().Publish)

	gin.SetMode(gin.ReleaseMode)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server exited", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}
	server.Feed().Close()

	if err := pipeline.Close(shutdownCtx); err != nil {
		logger.Warn("scoring pool drain incomplete", slog.Any("error", err))
	}
	trainer.Shutdown()

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("intelligence-engine stopped")
}

// openStore prefers Postgres when a DSN is configured and falls back to the
// in-memory store so the engine can still serve analyses without durability.
func openStore(cfg *config.Config, logger *slog.Logger) store.Store {
	if cfg.Database.DSN == "" {
		logger.Warn("no database DSN configured, using in-memory store")
		return store.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()

	pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN, cfg.Database.ConnectTimeout)
	if err != nil {
		logger.Warn("postgres unavailable, using in-memory store", slog.Any("error", err))
		return store.NewMemoryStore()
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("schema migration failed", slog.Any("error", err))
		pg.Close()
		os.Exit(1)
	}
	return pg
}
