package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	rediscache "github.com/sloanfm/biscuit/internal/adapter/cache/redis"
	"github.com/sloanfm/biscuit/internal/adapter/catalog/itunes"
	httpadapter "github.com/sloanfm/biscuit/internal/adapter/http"
	natsadapter "github.com/sloanfm/biscuit/internal/adapter/messaging/nats"
	"github.com/sloanfm/biscuit/internal/adapter/repository/mongodb"
	"github.com/sloanfm/biscuit/internal/config"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
	"github.com/sloanfm/biscuit/internal/platform/tracer"
	"github.com/sloanfm/biscuit/internal/usecase"
	"github.com/sloanfm/biscuit/internal/worker"
)

func main() {
	_ = godotenv.Load()

	appLogger := logger.NewLogger()
	defer appLogger.Sync()

	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	tracerProvider := tracer.InitTracer(cfg.ServiceName, cfg.OTLPEndpoint, appLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	metricsManager := metrics.NewMetricsManager(cfg.ServiceName)
	go func() {
		if err := metrics.StartMetricsServer(cfg.PrometheusMetricsPort, appLogger, metricsManager.Registry); err != nil {
			appLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Warn("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.MongoDatabase)

	redisClient, err := rediscache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	publisher, err := natsadapter.Connect(cfg.NATSURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer publisher.Close()

	reviewRepo, err := mongodb.NewReviewRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize review repository", zap.Error(err))
	}
	likeRepo, err := mongodb.NewLikeRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize like repository", zap.Error(err))
	}
	userRepo := mongodb.NewUserStatsRepository(db, appLogger)

	feedCache := rediscache.NewFeedCache(redisClient, appLogger)
	catalogClient := itunes.NewClient(cfg.CatalogBaseURL, cfg.CatalogCountry, cfg.CatalogTimeout, appLogger)

	reviewUC := usecase.NewReviewUsecase(reviewRepo, userRepo, feedCache, publisher, metricsManager, appLogger)
	feedUC := usecase.NewFeedUsecase(reviewRepo, likeRepo, catalogClient, feedCache, metricsManager, appLogger,
		cfg.ReleaseCacheTTL, cfg.ProfileFeedCacheTTL)
	likeUC := usecase.NewLikeUsecase(likeRepo, reviewRepo, feedCache, publisher, metricsManager, appLogger)

	reconciler := worker.NewStatsReconciler(reviewRepo, userRepo, appLogger)
	if err := reconciler.Start(cfg.StatsReconcileSpec); err != nil {
		appLogger.Fatal("Failed to schedule stats reconciler", zap.Error(err))
	}
	defer reconciler.Stop()

	handler := httpadapter.NewHandler(reviewUC, feedUC, likeUC, appLogger)
	router := httpadapter.NewRouter(handler, cfg.JWTSecret, appLogger, metricsManager)
	server := httpadapter.NewServer(cfg.HTTPPort, router, appLogger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			appLogger.Error("HTTP server error", zap.Error(err))
		}
	case sig := <-quit:
		appLogger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", zap.Error(err))
	}

	appLogger.Info("Service stopped")
}
