package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/cache"
	"bank-sync-backend/internal/config"
	handler "bank-sync-backend/internal/handlers"
	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/metrics"
	promcollector "bank-sync-backend/internal/metrics/prometheus"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/routes"
	"bank-sync-backend/internal/services/orchestrator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.SyncHistory{},
		&models.Requisition{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	collector := promcollector.NewCollector("bank_sync")
	if err := collector.Register(registry); err != nil {
		logger.Fatal("metrics registration failed", zap.Error(err))
	}
	var recorder metrics.Recorder = collector

	client, err := aggregator.NewClient(aggregator.Config{
		BaseURL:   cfg.AggregatorBaseURL,
		SecretID:  cfg.AggregatorSecretID,
		SecretKey: cfg.AggregatorSecretKey,
		Timeout:   cfg.AggregatorTimeout,
	})
	if err != nil {
		logger.Fatal("aggregator client", zap.Error(err))
	}
	source := aggregator.NewResilientClient(client, aggregator.BreakerConfig{
		Name:        "aggregator",
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, recorder, logger)

	var institutions cache.InstitutionCache = cache.NewMemoryCache(nil)
	if cfg.RedisAddr != "" {
		redisConfig := cache.DefaultRedisConfig()
		redisConfig.Addr = cfg.RedisAddr
		redisConfig.Password = cfg.RedisPassword
		redisCache, err := cache.NewRedisCache(redisConfig)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory institution cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			institutions = redisCache
		}
	}

	syncConfig := orchestrator.DefaultConfig()
	syncConfig.CallDelay = cfg.CallDelay
	syncConfig.AccountDelay = cfg.AccountDelay

	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger))
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", handler.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:           db,
		Source:       source,
		Institutions: institutions,
		Sync:         syncConfig,
		Recorder:     recorder,
		Logger:       logger,
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
