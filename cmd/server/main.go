package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/api"
	"github.com/bobby-s-dev/weather-predictor/internal/config"
	"github.com/bobby-s-dev/weather-predictor/internal/dataset"
	"github.com/bobby-s-dev/weather-predictor/internal/metrics"
	"github.com/bobby-s-dev/weather-predictor/internal/scheduler"
	"github.com/bobby-s-dev/weather-predictor/internal/services"
	"github.com/bobby-s-dev/weather-predictor/internal/storage"
	"github.com/bobby-s-dev/weather-predictor/pkg/client"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting weather prediction service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if len(cfg.WeatherAPI.APIKeys) == 0 {
		logger.Warn("No weather API keys configured, predictions will fail")
	}

	weatherClient := client.NewVisualCrossingClient(
		cfg.WeatherAPI.BaseURL,
		cfg.WeatherAPI.APIKeys,
		client.ClientConfig{
			Timeout:        cfg.WeatherAPI.Timeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			RetryDelay:     cfg.Retry.Delay,
			Multiplier:     cfg.Retry.Multiplier,
			Threshold:      cfg.CircuitBreaker.Threshold,
			BreakerTimeout: cfg.CircuitBreaker.Timeout,
		},
		logger,
	)

	store, err := storage.OpenPredictionStore(cfg.Storage.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to open prediction store", zap.Error(err))
	}
	defer store.Close()

	recorder := metrics.NewRecorder()
	predictor := services.NewPredictor(cfg, weatherClient, store, recorder, logger)
	defer predictor.Stop()

	// A missing artifact is not fatal: the reloader picks it up once trained.
	if _, err := predictor.Reload(); err != nil {
		logger.Warn("Model not loaded at startup",
			zap.String("path", cfg.Model.ArtifactPath),
			zap.Error(err))
	}

	history := services.NewHistory(cfg.Data.HistoryPath, dataset.Options{
		TimestampColumn: cfg.Data.TimestampColumn,
		DayColumn:       cfg.Data.DayColumn,
	}, logger)

	// Initialize scheduler
	reloadScheduler, err := scheduler.NewScheduler(predictor, cfg.Scheduler.ModelReloadSchedule, logger)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  json.Marshal,
		ErrorHandler: api.ErrorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(predictor, history, weatherClient, reloadScheduler, logger)
	api.SetupRoutes(app, handler, recorder.Handler(), logger)

	// Start scheduler
	reloadScheduler.Start()

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	reloadScheduler.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
