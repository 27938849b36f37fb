package training

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/model"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"gopkg.in/yaml.v3"
)

type Report struct {
	Model             string                       `yaml:"model"`
	TrainedAt         time.Time                    `yaml:"trained_at"`
	Artifact          string                       `yaml:"artifact"`
	DataPath          string                       `yaml:"data_path"`
	Examples          int                          `yaml:"examples"`
	TrainSize         int                          `yaml:"train_size"`
	TestSize          int                          `yaml:"test_size"`
	Continuous        []string                     `yaml:"continuous_features"`
	Categorical       []string                     `yaml:"categorical_features"`
	Boosting          model.BoostingConfig         `yaml:"boosting"`
	TrainDistribution map[models.Condition]float64 `yaml:"train_distribution"`
	TestDistribution  map[models.Condition]float64 `yaml:"test_distribution"`
	Metrics           model.Evaluation             `yaml:"metrics"`
	DurationSeconds   float64                      `yaml:"duration_seconds"`
}

func NewReport(result *Result, opts Options) Report {
	return Report{
		Model:             "gradient_boosting",
		TrainedAt:         result.Pipeline.TrainedAt,
		Artifact:          opts.ArtifactPath,
		DataPath:          opts.DataPath,
		Examples:          result.Examples,
		TrainSize:         result.TrainSize,
		TestSize:          result.TestSize,
		Continuous:        result.Pipeline.Schema.Continuous,
		Categorical:       result.Pipeline.Schema.Categorical,
		Boosting:          result.Pipeline.Classifier.Config,
		TrainDistribution: result.TrainDistribution,
		TestDistribution:  result.TestDistribution,
		Metrics:           result.Evaluation,
		DurationSeconds:   result.Duration.Seconds(),
	}
}

func WriteReport(path string, report Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadReport(path string) (Report, error) {
	var report Report
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}
