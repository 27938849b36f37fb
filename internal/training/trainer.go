package training

import (
	"fmt"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/config"
	"github.com/bobby-s-dev/weather-predictor/internal/dataset"
	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/model"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"go.uber.org/zap"
)

type Options struct {
	DataPath           string
	Dataset            dataset.Options
	ArtifactPath       string
	ReportPath         string
	FeaturesExportPath string
	TestSize           float64
	Boosting           model.BoostingConfig
}

func OptionsFromConfig(cfg *config.Config) Options {
	boosting := model.DefaultBoostingConfig()
	boosting.NEstimators = cfg.Training.NEstimators
	boosting.MaxDepth = cfg.Training.MaxDepth
	boosting.LearningRate = cfg.Training.LearningRate
	boosting.Seed = cfg.Training.Seed

	return Options{
		DataPath: cfg.Data.HistoryPath,
		Dataset: dataset.Options{
			TimestampColumn: cfg.Data.TimestampColumn,
			DayColumn:       cfg.Data.DayColumn,
		},
		ArtifactPath:       cfg.Model.ArtifactPath,
		ReportPath:         cfg.Model.ReportPath,
		FeaturesExportPath: cfg.Training.FeaturesExportPath,
		TestSize:           cfg.Training.TestSize,
		Boosting:           boosting,
	}
}

// Result is the outcome of one training run.
type Result struct {
	Pipeline          *model.Pipeline
	Evaluation        model.Evaluation
	Examples          int
	TrainSize         int
	TestSize          int
	TrainDistribution map[models.Condition]float64
	TestDistribution  map[models.Condition]float64
	Duration          time.Duration
}

type Trainer struct {
	opts    Options
	builder *features.Builder
	logger  *zap.Logger
}

func NewTrainer(opts Options, logger *zap.Logger) *Trainer {
	return &Trainer{
		opts:    opts,
		builder: features.NewBuilder(features.DefaultSchema(), logger),
		logger:  logger,
	}
}

// Run executes the whole batch: load, build features, split, fit, evaluate
// and persist. A missing timestamp column aborts before aggregation.
func (t *Trainer) Run() (*Result, error) {
	startTime := time.Now()

	ds, err := dataset.LoadCSV(t.opts.DataPath, t.opts.Dataset, t.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	table := t.builder.Build(ds)

	if t.opts.FeaturesExportPath != "" {
		if err := ExportParquet(t.opts.FeaturesExportPath, table); err != nil {
			return nil, fmt.Errorf("failed to export features: %w", err)
		}
		t.logger.Info("Feature table exported", zap.String("path", t.opts.FeaturesExportPath))
	}

	result, err := t.Train(table)
	if err != nil {
		return nil, err
	}

	if err := result.Pipeline.Save(t.opts.ArtifactPath); err != nil {
		return nil, err
	}
	t.logger.Info("Model saved", zap.String("path", t.opts.ArtifactPath))

	result.Duration = time.Since(startTime)
	if t.opts.ReportPath != "" {
		if err := WriteReport(t.opts.ReportPath, NewReport(result, t.opts)); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		t.logger.Info("Training report written", zap.String("path", t.opts.ReportPath))
	}

	return result, nil
}

// Train splits the table, fits a pipeline on the training partition and
// evaluates it on the held-out partition.
func (t *Trainer) Train(table *models.FeatureTable) (*Result, error) {
	if len(table.Examples) < 2 {
		return nil, fmt.Errorf("%w: %d", model.ErrTooFewExamples, len(table.Examples))
	}

	labels := table.Labels()
	trainIdx, testIdx, err := model.StratifiedSplit(labels, t.opts.TestSize, t.opts.Boosting.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to split examples: %w", err)
	}
	train := pick(table.Examples, trainIdx)
	test := pick(table.Examples, testIdx)

	result := &Result{
		Examples:          len(table.Examples),
		TrainSize:         len(train),
		TestSize:          len(test),
		TrainDistribution: model.ClassDistribution(pickLabels(labels, trainIdx)),
		TestDistribution:  model.ClassDistribution(pickLabels(labels, testIdx)),
	}
	t.logDistribution("train", result.TrainDistribution)
	t.logDistribution("test", result.TestDistribution)

	schema := t.builder.Schema().Restrict(table.Continuous)
	pipeline := model.NewPipeline(schema, t.opts.Boosting)
	fitStart := time.Now()
	if err := pipeline.Fit(train); err != nil {
		return nil, err
	}
	t.logger.Info("Pipeline fitted",
		zap.Int("train_examples", len(train)),
		zap.Int("continuous_features", len(schema.Continuous)),
		zap.Int("stages", t.opts.Boosting.NEstimators),
		zap.Duration("duration", time.Since(fitStart)))

	predicted, err := pipeline.PredictAll(test)
	if err != nil {
		return nil, err
	}
	truth := pickLabels(labels, testIdx)
	result.Evaluation = model.Evaluate(schema.Classes, truth, predicted)
	pipeline.Evaluation = &result.Evaluation
	result.Pipeline = pipeline

	t.logger.Info("Evaluation on held-out partition",
		zap.Int("test_examples", len(test)),
		zap.Float64("accuracy", result.Evaluation.Accuracy),
		zap.Float64("f1_macro", result.Evaluation.MacroF1),
		zap.Float64("f1_weighted", result.Evaluation.WeightedF1))

	return result, nil
}

func (t *Trainer) logDistribution(partition string, dist map[models.Condition]float64) {
	fields := []zap.Field{zap.String("partition", partition)}
	for _, c := range models.Conditions {
		fields = append(fields, zap.Float64(string(c), dist[c]))
	}
	t.logger.Info("Class distribution", fields...)
}

func pick(examples []models.TrainingExample, idx []int) []models.TrainingExample {
	out := make([]models.TrainingExample, len(idx))
	for i, j := range idx {
		out[i] = examples[j]
	}
	return out
}

func pickLabels(labels []models.Condition, idx []int) []models.Condition {
	out := make([]models.Condition, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}
