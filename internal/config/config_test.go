package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VISUALCROSSING_API_KEYS", "")
	t.Setenv("MODEL_PATH", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "model_output/gradient_boosting_weather_model.json", cfg.Model.ArtifactPath)
	assert.Equal(t, "datetime_completo", cfg.Data.TimestampColumn)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 100, cfg.Training.NEstimators)
	assert.Equal(t, 5, cfg.Training.MaxDepth)
	assert.Equal(t, 30*time.Minute, cfg.Cache.Duration)
	assert.Equal(t, "@every 5m", cfg.Scheduler.ModelReloadSchedule)
	assert.Empty(t, cfg.WeatherAPI.APIKeys)
}

func TestLoadConfigAPIKeys(t *testing.T) {
	t.Setenv("VISUALCROSSING_API_KEYS", "first, second,,third ")
	t.Setenv("MAX_DEPTH", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, cfg.WeatherAPI.APIKeys)
	assert.Equal(t, 7, cfg.Training.MaxDepth)
}

func TestParseHelpersFallBackToZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseDuration("soon"))
	assert.Equal(t, 0, parseInt("many"))
	assert.Equal(t, 0.0, parseFloat("lots"))
}
