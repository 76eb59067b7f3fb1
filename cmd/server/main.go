package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scorewire/match-data-service/internal/api/handlers"
	"github.com/scorewire/match-data-service/internal/api/middleware"
	"github.com/scorewire/match-data-service/internal/providers"
	"github.com/scorewire/match-data-service/internal/proxy"
	"github.com/scorewire/match-data-service/internal/services"
	"github.com/scorewire/match-data-service/pkg/config"
	"github.com/scorewire/match-data-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger with service context
	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithService("match-data-service").WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Match Data Service")

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Select the storage backend for cache durability
	var store services.Store
	switch cfg.StorageBackend {
	case "redis":
		redisStore, err := services.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.WithService("match-data-service").Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	default:
		fileStore, err := services.NewFileStore(cfg.DataDir, structuredLogger)
		if err != nil {
			logger.WithService("match-data-service").Fatalf("Failed to open data directory: %v", err)
		}
		store = fileStore
	}

	// Initialize the acquisition pipeline
	pool := proxy.NewPool(cfg.Proxies, structuredLogger)
	if pool.Size() == 0 {
		logger.WithService("match-data-service").Warn("No proxies configured, every fetch will fail with no proxy available")
	}

	client := providers.NewSofaScoreClient(cfg.UpstreamBaseURL, pool, providers.RequestPolicy{
		MaxRetries:           cfg.MaxRetries,
		MinRequestInterval:   cfg.MinRequestInterval,
		JitterMin:            cfg.JitterMin,
		JitterMax:            cfg.JitterMax,
		BackoffMin:           cfg.BackoffMin,
		BackoffMax:           cfg.BackoffMax,
		RateLimitCooldownMin: cfg.RateLimitCooldownMin,
		RateLimitCooldownMax: cfg.RateLimitCooldownMax,
		ConnectTimeout:       cfg.ConnectTimeout,
		RequestTimeout:       cfg.RequestTimeout,
	}, structuredLogger)

	cache := services.NewMatchCacheService(store, services.StalenessPolicy{
		LiveStaleAfter:      cfg.LiveStaleAfter,
		ScheduledStaleAfter: cfg.ScheduledStaleAfter,
	}, structuredLogger)
	cache.WarmFromStore()

	tracker := services.NewFailureTrackerService(services.FailureThresholds{
		Degraded:   cfg.DegradedThreshold,
		Critical:   cfg.CriticalThreshold,
		ForceReset: cfg.ForceResetThreshold,
	}, pool, structuredLogger)

	normalizer := services.NewMatchNormalizer(structuredLogger)
	breaker := services.NewIncidentBreakerService(cfg.CircuitBreakerThreshold, cfg.ExternalAPITimeout, structuredLogger)
	refresher := services.NewRefreshService(client, normalizer, cache, tracker, breaker, structuredLogger)

	scheduler := services.NewSchedulerService(refresher, tracker, cache, services.SchedulerConfig{
		BaseInterval:       cfg.RefreshInterval,
		DegradedMultiplier: cfg.DegradedIntervalMultiplier,
		RetentionDays:      cfg.ScheduledRetentionDays,
	}, structuredLogger)

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.CorsOrigins))

	// Initialize handlers
	matchHandler := handlers.NewMatchHandler(cache, refresher, client, structuredLogger)
	healthHandler := handlers.NewHealthHandler(cache, tracker, pool, breaker, structuredLogger)
	adminHandler := handlers.NewAdminHandler(pool, structuredLogger)

	// Setup API routes
	api := router.Group("/api")
	{
		api.GET("/livescores", matchHandler.GetLiveScores)
		api.GET("/scheduled", matchHandler.GetScheduled)
		api.GET("/scheduled/:date", matchHandler.GetScheduledByDate)
		api.POST("/refresh", matchHandler.RefreshData)
		api.GET("/status", healthHandler.GetStatus)
		api.GET("/match/:id", matchHandler.GetMatchDetails)
		api.GET("/match/:id/incidents", matchHandler.GetMatchIncidents)
		api.POST("/admin/proxies/reset", adminHandler.ResetProxies)
	}

	// Health check endpoints (support both GET and HEAD)
	router.GET("/health", healthHandler.GetHealth)
	router.HEAD("/health", healthHandler.GetHealth)
	router.GET("/metrics", healthHandler.GetMetrics)
	router.HEAD("/metrics", healthHandler.GetMetrics)

	// Start the refresh scheduler
	if err := scheduler.Start(); err != nil {
		logger.WithService("match-data-service").Fatalf("Failed to start scheduler: %v", err)
	}

	// Initial fetch so consumers have data before the first tick
	if !cfg.SkipInitialFetch {
		refresher.TriggerRefresh()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.WithService("match-data-service").WithField("port", cfg.Port).Info("Match data service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("match-data-service").Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("match-data-service").Info("Shutting down match data service...")

	// Stop the scheduler first; an in-flight cycle runs to completion
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService("match-data-service").Fatalf("Match data service forced to shutdown: %v", err)
	}

	logger.WithService("match-data-service").Info("Match data service exited")
}
