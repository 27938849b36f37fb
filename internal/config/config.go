package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Data struct {
		HistoryPath     string
		TimestampColumn string
		DayColumn       string
	}

	Model struct {
		ArtifactPath string
		ReportPath   string
	}

	Training struct {
		TestSize           float64
		Seed               int64
		NEstimators        int
		MaxDepth           int
		LearningRate       float64
		FeaturesExportPath string
	}

	WeatherAPI struct {
		BaseURL  string
		APIKeys  []string
		Location string
		Timeout  time.Duration
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	Scheduler struct {
		ModelReloadSchedule string
	}

	Storage struct {
		DatabasePath string
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Historical data
	cfg.Data.HistoryPath = getEnv("HISTORY_CSV_PATH", "joined_weather_data.csv")
	cfg.Data.TimestampColumn = getEnv("TIMESTAMP_COLUMN", "datetime_completo")
	cfg.Data.DayColumn = getEnv("DAY_COLUMN", "dia")

	// Model artifact
	cfg.Model.ArtifactPath = getEnv("MODEL_PATH", "model_output/gradient_boosting_weather_model.json")
	cfg.Model.ReportPath = getEnv("MODEL_REPORT_PATH", "model_output/training_report.yaml")

	// Training
	cfg.Training.TestSize = parseFloat(getEnv("TEST_SIZE", "0.2"))
	cfg.Training.Seed = int64(parseInt(getEnv("RANDOM_SEED", "42")))
	cfg.Training.NEstimators = parseInt(getEnv("N_ESTIMATORS", "100"))
	cfg.Training.MaxDepth = parseInt(getEnv("MAX_DEPTH", "5"))
	cfg.Training.LearningRate = parseFloat(getEnv("LEARNING_RATE", "0.1"))
	cfg.Training.FeaturesExportPath = getEnv("FEATURES_EXPORT_PATH", "")

	// Weather API configuration
	cfg.WeatherAPI.BaseURL = getEnv("VISUALCROSSING_URL", "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services")
	cfg.WeatherAPI.APIKeys = splitList(getEnv("VISUALCROSSING_API_KEYS", ""))
	cfg.WeatherAPI.Location = getEnv("WEATHER_LOCATION", "Madrid,Spain")
	cfg.WeatherAPI.Timeout = parseDuration(getEnv("WEATHER_API_TIMEOUT", "10s"))

	// Cache configuration
	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "30m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "1000"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Retry configuration
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "2"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	// Scheduler configuration
	cfg.Scheduler.ModelReloadSchedule = getEnv("MODEL_RELOAD_SCHEDULE", "@every 5m")

	// Prediction log
	cfg.Storage.DatabasePath = getEnv("PREDICTIONS_DB_PATH", "data/predictions.db")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
