package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/api/handlers"
	"github.com/dataset-eval/backend/internal/bootstrap"
	"github.com/dataset-eval/backend/internal/classifier"
	"github.com/dataset-eval/backend/internal/evaluation"
	"github.com/dataset-eval/backend/internal/metrics"
	"github.com/dataset-eval/backend/internal/middleware/ratelimit"
	"github.com/dataset-eval/backend/internal/middleware/security"
	"github.com/dataset-eval/backend/internal/middleware/validation"
	"github.com/dataset-eval/backend/internal/storage/sqlite"
	"github.com/dataset-eval/backend/pkg/config"
	appLogger "github.com/dataset-eval/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting dataset evaluation API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	deps := map[string]handlers.Pinger{
		"sqlite": func(context.Context) error { return sqliteClient.Ping() },
	}

	var store classifier.Store
	redisClient, err := bootstrap.Redis(cfg.Redis)
	if err != nil {
		appLogger.Warn("Redis unavailable, verdicts will only be cached in memory", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		store = redisClient
		deps["redis"] = redisClient.Ping
	}

	catalog, err := bootstrap.Catalog(cfg, store)
	if err != nil {
		appLogger.Fatal("Failed to create check catalog", zap.Error(err))
	}

	defaults := validation.EvaluationParams{
		QualityThreshold:    cfg.Checks.QualityThreshold,
		ComplianceThreshold: cfg.Checks.ComplianceThreshold,
		Relevance:           cfg.Checks.Relevance,
		PII:                 cfg.Checks.PII,
		Bias:                cfg.Checks.Bias,
	}
	runner := handlers.NewRunner(evaluation.NewEvaluator(catalog), sqliteClient, defaults, cfg.Checks.Workers)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID, X-Dataset-Name",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Format != "json",
	}))

	evaluationHandler := handlers.NewEvaluationHandler(runner, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(runner)
	healthHandler := handlers.NewHealthHandler(deps)

	api := app.Group("/api/v1")

	api.Post("/evaluations",
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			Defaults:      defaults,
			MaxUploadSize: cfg.Server.BodyLimit,
			Logger:        appLogger.Named("validation"),
		}),
		evaluationHandler.CreateEvaluation,
	)
	api.Get("/evaluations", evaluationHandler.ListEvaluations)
	api.Get("/evaluations/:id/report", evaluationHandler.GetReport)
	api.Get("/evaluations/:id/dataset", evaluationHandler.GetFlaggedDataset)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/evaluations", limiter.Middleware(), websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
