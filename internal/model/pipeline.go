package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
)

const artifactFormat = 1

// Pipeline is the fitted preprocessing and classification chain. It is
// persisted whole and carries the feature schema it was trained with.
type Pipeline struct {
	Format       int               `json:"format"`
	Schema       features.Schema   `json:"schema"`
	Preprocessor *Preprocessor     `json:"preprocessor"`
	Classifier   *GradientBoosting `json:"classifier"`
	TrainedAt    time.Time         `json:"trained_at"`
	Evaluation   *Evaluation       `json:"evaluation,omitempty"`
}

func NewPipeline(schema features.Schema, cfg BoostingConfig) *Pipeline {
	return &Pipeline{
		Format:     artifactFormat,
		Schema:     schema,
		Classifier: NewGradientBoosting(cfg),
	}
}

func (p *Pipeline) Fit(examples []models.TrainingExample) error {
	if len(examples) == 0 {
		return ErrTooFewExamples
	}

	p.Preprocessor = FitPreprocessor(p.Schema, examples)
	x := p.Preprocessor.TransformAll(examples)
	y := make([]models.Condition, len(examples))
	for i, ex := range examples {
		y[i] = ex.Target
	}

	if err := p.Classifier.Fit(x, y, p.Schema.Classes); err != nil {
		return fmt.Errorf("failed to fit classifier: %w", err)
	}
	p.TrainedAt = time.Now().UTC()
	return nil
}

func (p *Pipeline) fitted() bool {
	return p.Preprocessor != nil && p.Classifier != nil && len(p.Classifier.Stages) > 0
}

// Predict returns the most likely condition and the probability of every class.
func (p *Pipeline) Predict(ex models.TrainingExample) (models.Prediction, error) {
	if !p.fitted() {
		return models.Prediction{}, ErrNotFitted
	}

	proba := p.Classifier.PredictProba(p.Preprocessor.Transform(ex))
	out := models.Prediction{
		Condition:     p.Classifier.Classes[argmax(proba)],
		Probabilities: make(map[models.Condition]float64, len(p.Schema.Classes)),
	}
	for _, c := range p.Schema.Classes {
		out.Probabilities[c] = 0
	}
	for i, c := range p.Classifier.Classes {
		out.Probabilities[c] = proba[i]
	}
	return out, nil
}

func (p *Pipeline) PredictAll(examples []models.TrainingExample) ([]models.Condition, error) {
	out := make([]models.Condition, len(examples))
	for i, ex := range examples {
		pred, err := p.Predict(ex)
		if err != nil {
			return nil, err
		}
		out[i] = pred.Condition
	}
	return out, nil
}

// Save writes the pipeline to path, creating parent directories.
func (p *Pipeline) Save(path string) error {
	if !p.fitted() {
		return ErrNotFitted
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pipeline: %w", err)
	}
	return nil
}

func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}

	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	if p.Format != artifactFormat {
		return nil, fmt.Errorf("unsupported artifact format %d", p.Format)
	}
	if !p.fitted() {
		return nil, ErrNotFitted
	}
	return &p, nil
}
