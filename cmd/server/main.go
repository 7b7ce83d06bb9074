package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/config"
	httpDelivery "github.com/ecoshop/ecoshop/internal/delivery/http"
	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/infrastructure/cache"
	"github.com/ecoshop/ecoshop/internal/infrastructure/esg"
	"github.com/ecoshop/ecoshop/internal/infrastructure/llm"
	"github.com/ecoshop/ecoshop/internal/infrastructure/store"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/monitoring"
	"github.com/ecoshop/ecoshop/internal/tasks"
	"github.com/ecoshop/ecoshop/internal/usecase"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		logrus.WithError(err).Fatal("Failed to load .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Infof("Starting EcoShop Backend v%s", httpDelivery.Version)
	logger.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache":       cfg.Cache.Type,
		"cache_ttl":   cfg.Cache.TTL.String(),
		"store":       cfg.Store.Type,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	productCache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize cache")
	}
	defer closeCache()

	productStore, err := newStore(ctx, cfg.Store)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize product store")
	}
	defer productStore.Close()

	directory, err := esg.Load(cfg.ESG.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load ESG dataset")
	}
	logger.WithField("brands", directory.Len()).Info("ESG dataset loaded")

	analyzer, err := llm.NewAnalyzer(llm.Config{
		APIKey:          cfg.Analyzer.APIKey,
		BaseURL:         cfg.Analyzer.BaseURL,
		Model:           cfg.Analyzer.Model,
		Temperature:     cfg.Analyzer.Temperature,
		MaxTokens:       cfg.Analyzer.MaxTokens,
		Timeout:         cfg.Analyzer.Timeout,
		RequestsPerHour: cfg.RateLimit.Analyzer,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize analyzer")
	}
	logger.WithFields(logrus.Fields{
		"base_url": cfg.Analyzer.BaseURL,
		"model":    cfg.Analyzer.Model,
	}).Info("Analyzer configured")

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	registry := tasks.NewRegistry(logger)

	// Initialize usecase layer
	brandService := usecase.NewBrandService(directory, logger)
	productService := usecase.NewProductService(
		productCache,
		productStore,
		analyzer,
		registry,
		brandService,
		metrics,
		usecase.ProductServiceConfig{
			CacheTTL:        cfg.Cache.TTL,
			AnalysisTimeout: cfg.Analyzer.Timeout,
		},
		logger,
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(productService, brandService, logger)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, metrics, logger)

	go pruneTasks(ctx, registry, cfg.Server.TaskRetention, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("Failed to start server")
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if err := productService.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Analyses still running at shutdown were cancelled")
	}
	logger.Info("Server stopped")
}

// newCache builds the product cache. The returned func releases it.
func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	if cfg.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	}
	return cache.NewMemoryCache(), func() {}, nil
}

// newStore opens the product store selected by cfg.Type
func newStore(ctx context.Context, cfg config.StoreConfig) (domain.ProductRepository, error) {
	switch cfg.Type {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		db, err := store.NewSQLiteStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return store.NewMemoryStore(), nil
}

// pruneTasks drops finished tasks older than retention until ctx is done
func pruneTasks(ctx context.Context, registry *tasks.Registry, retention time.Duration, logger logrus.FieldLogger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := registry.Prune(now.Add(-retention)); n > 0 {
				logger.WithField("tasks", n).Debug("Pruned finished tasks")
			}
		}
	}
}
