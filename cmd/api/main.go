package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/api/handlers"
	"github.com/Hngdcmnh/ai-metric/internal/cache/redis"
	"github.com/Hngdcmnh/ai-metric/internal/ingestion"
	"github.com/Hngdcmnh/ai-metric/internal/metrics"
	"github.com/Hngdcmnh/ai-metric/internal/middleware/ratelimit"
	"github.com/Hngdcmnh/ai-metric/internal/middleware/security"
	"github.com/Hngdcmnh/ai-metric/internal/middleware/validation"
	"github.com/Hngdcmnh/ai-metric/internal/monitor"
	"github.com/Hngdcmnh/ai-metric/internal/scheduler"
	"github.com/Hngdcmnh/ai-metric/internal/service"
	"github.com/Hngdcmnh/ai-metric/internal/storage/postgres"
	"github.com/Hngdcmnh/ai-metric/pkg/config"
	appLogger "github.com/Hngdcmnh/ai-metric/pkg/logger"
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

	appLogger.Info("Starting AI Metric API Server")

	metrics.Init()

	store, err := postgres.NewClient(cfg.Postgres.DSN())
	if err != nil {
		appLogger.Fatal("Failed to create Postgres client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	monitorClient := monitor.NewClient(
		cfg.Monitor.EndpointBaseURL,
		cfg.Monitor.AuthToken,
		cfg.Monitor.MonitorToken,
		time.Duration(cfg.Monitor.TimeoutSec)*time.Second,
	)

	broadcaster := ingestion.NewBroadcaster()
	processor := ingestion.NewProcessor(store, monitorClient, cache, broadcaster)
	metricsService := service.NewMetricsService(store, cache, time.Duration(cfg.Redis.CacheTTL)*time.Second)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(processor, cfg.Scheduler.RunTime, cfg.Scheduler.MetricType)
		if err != nil {
			appLogger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		sched.Start()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowWebSocket: true,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		SkipPaths:            []string{"/health", "/metrics", "/ws/ingestion"},
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use("/api/metrics", validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	metricsHandler := handlers.NewMetricsHandler(metricsService)
	ingestionHandler := handlers.NewIngestionHandler(processor, store)
	wsHandler := handlers.NewWebSocketHandler(broadcaster)

	api := app.Group("/api/metrics")

	api.Get("/last-7-days", metricsHandler.GetLast7Days)
	api.Post("/refresh", metricsHandler.RefreshMetrics)
	api.Get("/daily", metricsHandler.GetDailyMetrics)
	api.Post("/fetch-date", ingestionHandler.FetchDate)
	api.Post("/fetch-intent-accuracy", ingestionHandler.FetchIntentAccuracy)
	api.Get("/intent-accuracy", metricsHandler.GetIntentAccuracy)
	api.Get("/intent-accuracy-metrics", metricsHandler.GetIntentAccuracyMetrics)
	api.Post("/update-intent-accuracy-3days", ingestionHandler.UpdateIntentAccuracy3Days)

	app.Get("/ws/ingestion", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

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
	if sched != nil {
		sched.Stop()
	}
	app.Shutdown()
	appLogger.Info("Server stopped")
}
