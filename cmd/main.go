package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "tenant-scope/docs"
	"tenant-scope/internal/api"
	"tenant-scope/internal/auth"
	"tenant-scope/internal/cache"
	"tenant-scope/internal/config"
	"tenant-scope/internal/logging"
	"tenant-scope/internal/manager"
	"tenant-scope/internal/messaging"
	"tenant-scope/internal/metrics"
	"tenant-scope/internal/storage"
	"tenant-scope/internal/tenancy"
)

const queueDepthInterval = 10 * time.Second

// @title Tenant Scope API
// @version 1.0
// @description Resolves the tenant for each request and confines it to the tenant's region
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	// Load Configuration
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Init PostgreSQL
	dir, err := storage.NewDirectory(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("failed to init tenant directory", zap.Error(err))
	}
	defer dir.Close()
	logger.Info("tenant directory connected")

	// Init Redis; the service runs uncached without it
	var tenantCache tenancy.Cache = cache.NopCache{}
	var cacheCheck api.Checker
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL, 5*time.Second)
		if err != nil {
			logger.Warn("tenant cache unavailable, resolving from directory only", zap.Error(err))
		} else {
			rc := cache.NewRedisCache(client, logger, m)
			defer rc.Close()
			tenantCache = rc
			cacheCheck = rc
			logger.Info("tenant cache connected")
		}
	}

	resolver := tenancy.NewResolver(dir, tenantCache, tenancy.Options{
		BaseDomain:    cfg.Tenant.BaseDomain,
		CacheTTL:      cfg.Tenant.CacheTTL,
		LookupTimeout: cfg.Tenant.LookupTimeout,
	}, logger, m)

	// Init RabbitMQ invalidation pipeline
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbitClient.Close()

		mgr := manager.NewInvalidationManager(resolver, logger, m)
		if err := mgr.Start(rabbitClient, cfg.Workers); err != nil {
			logger.Fatal("failed to start invalidation pipeline", zap.Error(err))
		}
		defer mgr.Shutdown()

		// Start background loop for updating queue depth metrics
		go mgr.MonitorQueueDepth(ctx, queueDepthInterval)
	} else {
		logger.Warn("rabbitmq.url not set, cache entries expire by TTL only")
	}

	// Init API
	a := api.NewAPI(resolver, auth.NewValidator(cfg.Auth.JWTSecret, 0), m, logger)
	a.ExemptPaths = cfg.Tenant.ExemptPaths
	a.Checks["directory"] = dir
	if cacheCheck != nil {
		a.Checks["cache"] = cacheCheck
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting API server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("graceful shutdown complete")
}

// configPath prefers CONFIG_PATH, then ./config.yaml when present. An empty
// result means environment-only configuration.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}
