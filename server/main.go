package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/api/routes"
	_ "staybook/docs"
	"staybook/internal/notifications"
	"staybook/internal/reservations"
	"staybook/internal/shared/clock"
	"staybook/internal/shared/config"
	"staybook/internal/shared/database"
	"staybook/internal/shared/middleware"
	"staybook/pkg/logger"
	"staybook/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title StayBook API
// @version 1.0
// @description Room availability and booking ledger behind the StayBook app
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Rebuild the default logger now that LOG_LEVEL and GIN_MODE are final
	logger.SetDefault(logger.New())
	appLogger = logger.GetDefault()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := database.InitDB(rootCtx, cfg)
	if err != nil {
		appLogger.WithError(err).Error("Failed to initialize storage")
		os.Exit(1)
	}
	defer db.Close()

	// Rate limiter needs Redis; without it requests go unthrottled
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			PublicRequests:          cfg.RateLimit.PublicRequests,
			BookingRequests:         cfg.RateLimit.BookingRequests,
			BookingCriticalRequests: cfg.RateLimit.BookingCriticalRequests,
			AdminRequests:           cfg.RateLimit.AdminRequests,
			HealthRequests:          cfg.RateLimit.HealthRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig, nil)
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Booking events
	publisher, consumer := setupNotifications(rootCtx, cfg, appLogger)
	defer func() {
		if consumer != nil {
			appLogger.Info("Stopping notification consumers...")
			if err := consumer.Stop(); err != nil {
				appLogger.WithError(err).Error("Error stopping notification consumers")
			}
		}
		if err := publisher.Close(); err != nil {
			appLogger.WithError(err).Error("Error closing event producer")
		}
	}()

	systemClock := clock.NewSystem()
	engine, appRouter := setupRouter(cfg, db, systemClock, publisher, rateLimiter)

	// Lapsed holds are reclaimed even when no request touches the room
	sweeper := reservations.NewSweeper(appRouter.BookingService(), systemClock, cfg.Booking.SweepInterval, appLogger)
	sweeper.Start(rootCtx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("docs", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.String("storage", cfg.StorageDriver),
			slog.String("payment_provider", cfg.Payment.Provider),
			slog.Bool("redis_cache", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Error("Server failed")
			rootCancel()
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-rootCtx.Done():
	}
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}

	appLogger.Info("Server exited gracefully")
}

// setupNotifications returns the booking event producer and, when Kafka is
// enabled, the consumer group that notifies guests. Without Kafka events are
// only logged.
func setupNotifications(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (notifications.Producer, notifications.Consumer) {
	if !cfg.Kafka.Enabled {
		appLogger.Info("Kafka disabled, booking events will be logged only")
		return notifications.NewLogProducer(appLogger), nil
	}

	producerConfig := notifications.DefaultKafkaProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.Topic = cfg.Kafka.BookingTopic

	producer, err := notifications.NewKafkaProducer(producerConfig)
	if err != nil {
		appLogger.WithError(err).Error("Failed to create Kafka producer, falling back to log producer")
		return notifications.NewLogProducer(appLogger), nil
	}

	consumerConfig := notifications.DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.GroupID = cfg.Kafka.ConsumerGroupID
	consumerConfig.Topics = []string{cfg.Kafka.BookingTopic}

	consumer, err := notifications.NewKafkaConsumer(consumerConfig, notifications.NewGuestNotifier(appLogger))
	if err != nil {
		appLogger.WithError(err).Error("Failed to create Kafka consumer, guest notifications disabled")
		return producer, nil
	}
	if err := consumer.StartConsumers(ctx, cfg.Kafka.NumWorkers); err != nil {
		appLogger.WithError(err).Error("Failed to start Kafka consumers")
		return producer, nil
	}

	appLogger.Info("Booking event stream started",
		slog.String("topic", cfg.Kafka.BookingTopic),
		slog.Int("workers", cfg.Kafka.NumWorkers),
	)
	return producer, consumer
}

func setupRouter(cfg *config.Config, db *database.DB, clk clock.Clock, publisher notifications.Producer, rateLimiter *ratelimit.RateLimiter) (*gin.Engine, *routes.Router) {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // the mobile app and local tooling call from arbitrary origins
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter := routes.NewRouter(cfg, db, clk, publisher)
	appRouter.SetupRoutes(engine)

	return engine, appRouter
}
