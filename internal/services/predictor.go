package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/config"
	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/metrics"
	"github.com/bobby-s-dev/weather-predictor/internal/model"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/bobby-s-dev/weather-predictor/internal/training"
	"github.com/bobby-s-dev/weather-predictor/pkg/client"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrModelNotLoaded     = errors.New("model not loaded")
	ErrWeatherUnavailable = errors.New("weather data unavailable")
)

type HourlySource interface {
	GetHourly(ctx context.Context, location string, from, to time.Time) (*models.HourlyDataset, error)
}

type PredictionLog interface {
	Save(ctx context.Context, rec *models.PredictionRecord) error
	Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	Count(ctx context.Context) (int, error)
}

// Predictor serves next-day condition predictions from the loaded pipeline.
type Predictor struct {
	source       HourlySource
	store        PredictionLog
	cache        *PredictionCache
	recorder     *metrics.Recorder
	logger       *zap.Logger
	location     string
	artifactPath string
	reportPath   string
	inflight     singleflight.Group

	mu           sync.RWMutex
	pipeline     *model.Pipeline
	training     *TrainingSummary
	modTime      time.Time
	loadedAt     time.Time
	successCount int
	failureCount int
}

type ModelInfo struct {
	ArtifactPath string             `json:"artifact_path"`
	Continuous   []string           `json:"continuous_features"`
	Categorical  []string           `json:"categorical_features"`
	Classes      []models.Condition `json:"classes"`
	Stages       int                `json:"stages"`
	TrainedAt    time.Time          `json:"trained_at"`
	LoadedAt     time.Time          `json:"loaded_at"`
	Evaluation   *model.Evaluation  `json:"evaluation,omitempty"`
	Training     *TrainingSummary   `json:"training,omitempty"`
}

// TrainingSummary is read from the report the trainer writes next to the
// artifact.
type TrainingSummary struct {
	DataPath          string                       `json:"data_path"`
	Examples          int                          `json:"examples"`
	TrainSize         int                          `json:"train_size"`
	TestSize          int                          `json:"test_size"`
	TrainDistribution map[models.Condition]float64 `json:"train_distribution"`
	DurationSeconds   float64                      `json:"duration_seconds"`
}

func NewPredictor(cfg *config.Config, source HourlySource, store PredictionLog, recorder *metrics.Recorder, logger *zap.Logger) *Predictor {
	return &Predictor{
		source:       source,
		store:        store,
		cache:        NewPredictionCache(cfg.Cache.Duration, cfg.Cache.MaxSize, logger),
		recorder:     recorder,
		logger:       logger,
		location:     cfg.WeatherAPI.Location,
		artifactPath: cfg.Model.ArtifactPath,
		reportPath:   cfg.Model.ReportPath,
	}
}

// Reload loads the artifact when its modification time differs from the
// loaded one. It reports whether a new pipeline was swapped in. On failure
// the previous pipeline stays active.
func (p *Predictor) Reload() (bool, error) {
	info, err := os.Stat(p.artifactPath)
	if err != nil {
		err = fmt.Errorf("failed to stat model artifact: %w", err)
		p.recorder.RecordModelReload(err)
		return false, err
	}

	p.mu.RLock()
	unchanged := p.pipeline != nil && info.ModTime().Equal(p.modTime)
	p.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	pipeline, err := model.Load(p.artifactPath)
	p.recorder.RecordModelReload(err)
	if err != nil {
		return false, err
	}

	summary := p.readTrainingSummary(pipeline)

	p.mu.Lock()
	p.pipeline = pipeline
	p.training = summary
	p.modTime = info.ModTime()
	p.loadedAt = time.Now()
	p.mu.Unlock()

	p.cache.Clear()

	p.logger.Info("Model loaded",
		zap.String("path", p.artifactPath),
		zap.Time("trained_at", pipeline.TrainedAt),
		zap.Int("continuous_features", len(pipeline.Schema.Continuous)))
	return true, nil
}

// readTrainingSummary returns nil when the report is missing or belongs to
// another training run.
func (p *Predictor) readTrainingSummary(pipeline *model.Pipeline) *TrainingSummary {
	if p.reportPath == "" {
		return nil
	}
	report, err := training.ReadReport(p.reportPath)
	if err != nil {
		p.logger.Debug("Training report not read",
			zap.String("path", p.reportPath),
			zap.Error(err))
		return nil
	}
	if !report.TrainedAt.Equal(pipeline.TrainedAt) {
		p.logger.Warn("Training report does not match loaded model",
			zap.String("path", p.reportPath),
			zap.Time("report_trained_at", report.TrainedAt))
		return nil
	}
	return &TrainingSummary{
		DataPath:          report.DataPath,
		Examples:          report.Examples,
		TrainSize:         report.TrainSize,
		TestSize:          report.TestSize,
		TrainDistribution: report.TrainDistribution,
		DurationSeconds:   report.DurationSeconds,
	}
}

func (p *Predictor) current() *model.Pipeline {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pipeline
}

// Predict fetches the hourly observations of date and the day before and
// predicts the condition of the following day.
func (p *Predictor) Predict(ctx context.Context, date time.Time) (models.PredictionRecord, error) {
	pipeline := p.current()
	if pipeline == nil {
		return models.PredictionRecord{}, ErrModelNotLoaded
	}

	key := date.Format("2006-01-02")
	if rec, ok := p.cache.Get(key); ok {
		p.recorder.RecordCacheLookup(true)
		p.logger.Debug("Returning cached prediction", zap.String("date", key))
		return rec, nil
	}
	p.recorder.RecordCacheLookup(false)

	// Concurrent misses for one date share a single fetch and log entry.
	v, err, _ := p.inflight.Do(key, func() (interface{}, error) {
		if rec, ok := p.cache.Get(key); ok {
			return rec, nil
		}
		return p.predict(ctx, pipeline, date, key)
	})
	if err != nil {
		return models.PredictionRecord{}, err
	}
	return v.(models.PredictionRecord), nil
}

func (p *Predictor) predict(ctx context.Context, pipeline *model.Pipeline, date time.Time, key string) (models.PredictionRecord, error) {
	start := time.Now()
	ds, err := p.source.GetHourly(ctx, p.location, date.AddDate(0, 0, -1), date)
	p.recorder.RecordWeatherRequest(err)
	if err != nil {
		p.countResult(err)
		return models.PredictionRecord{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}

	builder := features.NewBuilder(pipeline.Schema, p.logger)
	row, err := builder.Row(builder.Aggregate(ds), date)
	if err != nil {
		p.countResult(err)
		return models.PredictionRecord{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}

	pred, err := pipeline.Predict(row)
	if err != nil {
		p.countResult(err)
		return models.PredictionRecord{}, fmt.Errorf("failed to predict: %w", err)
	}

	rec := models.PredictionRecord{
		Date:          row.Date,
		TargetDate:    row.Date.AddDate(0, 0, 1),
		Condition:     pred.Condition,
		Probabilities: pred.Probabilities,
		RainYesterday: row.RainYesterday,
		Features:      row.Features,
		Source:        client.SourceVisualCrossing,
	}

	if p.store != nil {
		if err := p.store.Save(ctx, &rec); err != nil {
			p.logger.Error("Failed to log prediction",
				zap.String("date", key),
				zap.Error(err))
		}
	}

	p.cache.Set(key, rec)
	p.countResult(nil)
	p.recorder.RecordPrediction(string(rec.Condition), time.Since(start))

	p.logger.Info("Prediction served",
		zap.String("date", key),
		zap.String("condition", string(rec.Condition)),
		zap.Int("rain_yesterday", rec.RainYesterday),
		zap.Duration("duration", time.Since(start)))

	return rec, nil
}

func (p *Predictor) countResult(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failureCount++
		return
	}
	p.successCount++
}

func (p *Predictor) Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.Recent(ctx, limit)
}

// PredictionCount returns the number of logged predictions, or zero
// without a log.
func (p *Predictor) PredictionCount(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, nil
	}
	return p.store.Count(ctx)
}

func (p *Predictor) ModelInfo() (ModelInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.pipeline == nil {
		return ModelInfo{}, ErrModelNotLoaded
	}
	return ModelInfo{
		ArtifactPath: p.artifactPath,
		Continuous:   p.pipeline.Schema.Continuous,
		Categorical:  p.pipeline.Schema.Categorical,
		Classes:      p.pipeline.Schema.Classes,
		Stages:       len(p.pipeline.Classifier.Stages),
		TrainedAt:    p.pipeline.TrainedAt,
		LoadedAt:     p.loadedAt,
		Evaluation:   p.pipeline.Evaluation,
		Training:     p.training,
	}, nil
}

func (p *Predictor) Loaded() bool {
	return p.current() != nil
}

func (p *Predictor) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"model_loaded":  p.pipeline != nil,
		"loaded_at":     p.loadedAt,
		"success_count": p.successCount,
		"failure_count": p.failureCount,
		"cache":         p.cache.GetStats(),
	}
}

func (p *Predictor) Stop() {
	p.cache.Stop()
}
