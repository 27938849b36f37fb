package main

import (
	"errors"
	"fmt"

	"github.com/bobby-s-dev/weather-predictor/internal/config"
	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/training"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting weather model training")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	opts := training.OptionsFromConfig(cfg)
	trainer := training.NewTrainer(opts, logger)

	result, err := trainer.Run()
	if err != nil {
		var missing *features.MissingColumnError
		if errors.As(err, &missing) {
			logger.Fatal("Source CSV is missing a required column",
				zap.String("path", opts.DataPath),
				zap.String("column", missing.Column))
		}
		logger.Fatal("Training failed", zap.Error(err))
	}

	fmt.Println(result.Evaluation.String())

	logger.Info("Training completed",
		zap.String("artifact", opts.ArtifactPath),
		zap.Int("examples", result.Examples),
		zap.Float64("accuracy", result.Evaluation.Accuracy),
		zap.Float64("f1_weighted", result.Evaluation.WeightedF1),
		zap.Float64("f1_macro", result.Evaluation.MacroF1),
		zap.Duration("duration", result.Duration))
}
