package api

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/bobby-s-dev/weather-predictor/internal/scheduler"
	"github.com/bobby-s-dev/weather-predictor/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPredictionsLimit = 20
	maxPredictionsLimit     = 500
)

// CurrentSource reports the latest conditions for a city.
type CurrentSource interface {
	GetCurrent(ctx context.Context, location string) (*models.CurrentWeather, error)
}

type Handler struct {
	predictor *services.Predictor
	history   *services.History
	current   CurrentSource
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

func NewHandler(predictor *services.Predictor, history *services.History, current CurrentSource, scheduler *scheduler.Scheduler, logger *zap.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		history:   history,
		current:   current,
		scheduler: scheduler,
		logger:    logger,
	}
}

// GetPrediction handles GET /api/v1/predict
func (h *Handler) GetPrediction(c *fiber.Ctx) error {
	dateStr := c.Query("date")
	if dateStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "date parameter is required (YYYY-MM-DD)")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
	}

	h.logger.Info("Predicting next-day condition", zap.String("date", dateStr))

	rec, err := h.predictor.Predict(c.UserContext(), date)
	if err != nil {
		h.logger.Error("Failed to predict",
			zap.String("date", dateStr),
			zap.Error(err))

		switch {
		case errors.Is(err, services.ErrModelNotLoaded):
			return fiber.NewError(fiber.StatusServiceUnavailable, "Model is not loaded")
		case errors.Is(err, services.ErrWeatherUnavailable):
			return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch weather data")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to compute prediction")
	}

	return c.JSON(predictionResponse(rec))
}

// GetPredictions handles GET /api/v1/predictions
func (h *Handler) GetPredictions(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultPredictionsLimit)))
	if err != nil || limit < 1 || limit > maxPredictionsLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPredictionsLimit))
	}

	records, err := h.predictor.Recent(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list predictions")
	}

	out := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		out = append(out, predictionResponse(rec))
	}
	return c.JSON(fiber.Map{
		"predictions": out,
		"count":       len(out),
	})
}

// GetCurrentWeather handles GET /api/v1/current
func (h *Handler) GetCurrentWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return fiber.NewError(fiber.StatusBadRequest, "city parameter is required")
	}

	current, err := h.current.GetCurrent(c.UserContext(), city)
	if err != nil {
		h.logger.Error("Failed to fetch current weather",
			zap.String("city", city),
			zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch current weather")
	}

	return c.JSON(fiber.Map{
		"data":    current,
		"success": true,
	})
}

// GetDailyHistory handles GET /api/v1/history/daily
func (h *Handler) GetDailyHistory(c *fiber.Ctx) error {
	days, err := h.history.Daily()
	if err != nil {
		return h.historyError(err)
	}

	out := make([]fiber.Map, 0, len(days))
	for _, d := range days {
		out = append(out, fiber.Map{
			"date":          d.Date.Format("2006-01-02"),
			"hourly_count":  d.HourlyCount,
			"raw_condition": d.RawCondition,
			"condition":     d.Condition,
			"values":        nullable(d.Values),
		})
	}
	return c.JSON(fiber.Map{
		"days":  out,
		"count": len(out),
	})
}

// GetConditionCounts handles GET /api/v1/history/conditions
func (h *Handler) GetConditionCounts(c *fiber.Ctx) error {
	counts, err := h.history.ConditionCounts()
	if err != nil {
		return h.historyError(err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return c.JSON(fiber.Map{
		"counts": counts,
		"total":  total,
	})
}

// GetVariability handles GET /api/v1/history/variability
func (h *Handler) GetVariability(c *fiber.Ctx) error {
	months, err := h.history.Variability()
	if err != nil {
		return h.historyError(err)
	}

	out := make([]fiber.Map, 0, len(months))
	for _, m := range months {
		out = append(out, fiber.Map{
			"month":          m.Month,
			"days":           m.Days,
			"temp_mean":      nullableFloat(m.TempMean),
			"temp_mean_std":  nullableFloat(m.TempMeanStd),
			"temp_range":     nullableFloat(m.TempRange),
			"temp_range_std": nullableFloat(m.TempRangeStd),
		})
	}
	return c.JSON(fiber.Map{"months": out})
}

func (h *Handler) historyError(err error) error {
	h.logger.Error("Failed to read historical data", zap.Error(err))
	if errors.Is(err, services.ErrHistoryUnavailable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Historical data is not available")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to read historical data")
}

// GetModel handles GET /api/v1/model
func (h *Handler) GetModel(c *fiber.Ctx) error {
	info, err := h.predictor.ModelInfo()
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Model is not loaded")
	}
	return c.JSON(info)
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	status := "healthy"
	if !h.predictor.Loaded() {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"model_loaded": h.predictor.Loaded(),
		"timestamp":    time.Now(),
		"uptime":       time.Since(startTime).String(),
	})
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats := fiber.Map{
		"predictor": h.predictor.GetStats(),
		"timestamp": time.Now(),
	}
	if n, err := h.predictor.PredictionCount(c.UserContext()); err != nil {
		h.logger.Warn("Failed to count logged predictions", zap.Error(err))
	} else {
		stats["predictions_logged"] = n
	}
	if h.scheduler != nil {
		stats["scheduler"] = h.scheduler.GetStatus()
	}
	return c.JSON(stats)
}

func predictionResponse(rec models.PredictionRecord) fiber.Map {
	resp := fiber.Map{
		"id":             rec.ID,
		"date":           rec.Date.Format("2006-01-02"),
		"target_date":    rec.TargetDate.Format("2006-01-02"),
		"condition":      rec.Condition,
		"probabilities":  rec.Probabilities,
		"rain_yesterday": rec.RainYesterday,
		"source":         rec.Source,
		"created_at":     rec.CreatedAt,
	}
	if rec.Features != nil {
		resp["features"] = nullable(rec.Features)
	}
	return resp
}

// nullable maps NaN to JSON null.
func nullable(values map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(values))
	for k, v := range values {
		out[k] = nullableFloat(v)
	}
	return out
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

var startTime = time.Now()
