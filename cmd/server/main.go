package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/listproxy/backend/config"
	httpDelivery "github.com/listproxy/backend/internal/delivery/http"
	"github.com/listproxy/backend/internal/domain"
	"github.com/listproxy/backend/internal/infrastructure/cache"
	"github.com/listproxy/backend/internal/infrastructure/catalog"
	"github.com/listproxy/backend/internal/infrastructure/upstream"
	"github.com/listproxy/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)

	logger.Info("starting listproxy backend",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"cache", cfg.Cache.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	datasets, err := catalog.Load(cfg.Fallback.DatasetPath, cfg.Fallback.BrandDir)
	if err != nil {
		logger.Error("failed to load fallback datasets", "error", err)
		os.Exit(1)
	}
	logger.Info("fallback datasets loaded", "brands", datasets.Brands())

	resultCache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer closeCache.Close()

	upstreamClient, err := newUpstreamClient(cfg.Upstream, logger)
	if err != nil {
		logger.Error("failed to create upstream client", "error", err)
		os.Exit(1)
	}

	// Initialize usecase layer
	rc := usecase.NewRewriteContext(cfg.Upstream.BaseURL, cfg.Proxy.ResourceEndpoint)
	listingService := usecase.NewListingService(
		upstreamClient,
		datasets,
		resultCache,
		rc,
		usecase.ListingServiceConfig{
			DefaultLimit: cfg.Limits.Default,
			MaxLimit:     cfg.Limits.Max,
			StageTimeout: cfg.Upstream.Timeout,
			CacheTTL:     cfg.Cache.TTL,
			Sort:         cfg.Upstream.Sort,
			Order:        cfg.Upstream.Order,
		},
		logger,
	)
	resourceService := usecase.NewResourceService(upstreamClient, rc, logger)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(listingService, resourceService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// newLogger builds the process logger: JSON in production, text elsewhere
func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newUpstreamClient builds the upstream client from its config section
func newUpstreamClient(cfg config.UpstreamConfig, logger *slog.Logger) (*upstream.Client, error) {
	return upstream.NewClient(upstream.Config{
		BaseURL:         cfg.BaseURL,
		PrimaryAPIURL:   cfg.PrimaryAPIURL,
		SecondaryAPIURL: cfg.SecondaryAPIURL,
		Timeout:         cfg.Timeout,
		UserAgent:       cfg.UserAgent,
		AcceptLanguage:  cfg.AcceptLanguage,
		RatePerSecond:   cfg.RatePerSecond,
		Burst:           cfg.Burst,
		Retries:         cfg.Retries,
		RetryWait:       cfg.RetryWait,
	}, logger)
}

// newCache returns the configured result cache, or nil when caching is off
func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, io.Closer, error) {
	switch cfg.Type {
	case "memory":
		c := cache.NewMemoryCache(10 * time.Minute)
		return c, c, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, io.NopCloser(nil), nil
	}
}
