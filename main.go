package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"safeclicker/config"
	"safeclicker/dispatch"
	"safeclicker/metrics"
	"safeclicker/middleware"
	"safeclicker/routes"
	"safeclicker/tracking"
	"safeclicker/utils"
	"safeclicker/worker"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	utils.ConfigureLogging(cfg.Environment, cfg.LogLevel)
	logger := logrus.StandardLogger()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	metrics.Init()

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	var (
		locker  dispatch.Locker
		storage fiber.Storage
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to redis at %s: %v", cfg.Redis.Address, err)
		}
		defer client.Close()
		locker = dispatch.NewRedisLocker(client)
		storage = middleware.NewRedisStorage(client)
		logger.WithField("address", cfg.Redis.Address).Info("Using redis for dispatch locks and rate limits")
	} else {
		locker = dispatch.NewLocalLocker()
	}

	mailer, err := utils.NewSMTPMailer(utils.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	})
	if err != nil {
		logger.Fatalf("Failed to configure mailer: %v", err)
	}

	dispatcher := dispatch.NewDispatcher(
		config.DB,
		mailer,
		locker,
		worker.NewPool(cfg.DispatchWorkers, logger.WithField("component", "dispatch_pool")),
		logger.WithField("component", "dispatch"),
	)
	dispatcher.TrackingBaseURL = cfg.AppBaseURL
	dispatcher.TrackingEndpoint = cfg.TrackingEndpoint
	dispatcher.LockTTL = cfg.DispatchLockTTL

	recorder := tracking.NewRecorder(config.DB, cfg.LandingURL(), logger.WithField("component", "tracking"))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "safeclicker",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	})
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.FrontendURL)))
	app.Use(middleware.Metrics())

	routes.SetupRoutes(app, config.DB, routes.Dependencies{
		Dispatcher:        dispatcher,
		Recorder:          recorder,
		Logger:            logger,
		TrackingEndpoint:  cfg.TrackingEndpoint,
		RateLimitDispatch: cfg.RateLimitDispatch,
		RateLimitStorage:  storage,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
