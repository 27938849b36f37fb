package model

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = features.Schema{
	Continuous:  []string{"humidity_mean", "cloudcover_mean", "temp_mean"},
	Categorical: []string{features.RainYesterday},
	Classes:     models.Conditions,
}

// synthetic produces examples whose label is a function of humidity and cloud cover.
func synthetic(n int, seed int64) []models.TrainingExample {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TrainingExample, n)
	for i := range out {
		humidity := rng.Float64() * 100
		cloud := rng.Float64() * 100
		target := models.ConditionClear
		switch {
		case humidity > 70:
			target = models.ConditionRain
		case cloud > 50:
			target = models.ConditionCloudy
		}
		out[i] = models.TrainingExample{
			Date: start.AddDate(0, 0, i),
			Features: map[string]float64{
				"humidity_mean":   humidity,
				"cloudcover_mean": cloud,
				"temp_mean":       rng.NormFloat64()*5 + 15,
			},
			RainYesterday: rng.Intn(2),
			Target:        target,
		}
	}
	return out
}

func labelsOf(examples []models.TrainingExample) []models.Condition {
	out := make([]models.Condition, len(examples))
	for i, ex := range examples {
		out[i] = ex.Target
	}
	return out
}

func subset(examples []models.TrainingExample, idx []int) []models.TrainingExample {
	out := make([]models.TrainingExample, len(idx))
	for i, j := range idx {
		out[i] = examples[j]
	}
	return out
}

func testConfig() BoostingConfig {
	cfg := DefaultBoostingConfig()
	cfg.NEstimators = 30
	cfg.MaxDepth = 3
	return cfg
}

func TestStratifiedSplit(t *testing.T) {
	var labels []models.Condition
	for i := 0; i < 50; i++ {
		labels = append(labels, models.ConditionClear)
	}
	for i := 0; i < 30; i++ {
		labels = append(labels, models.ConditionCloudy)
	}
	for i := 0; i < 20; i++ {
		labels = append(labels, models.ConditionRain)
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(labels))

	testLabels := make([]models.Condition, len(test))
	for i, j := range test {
		testLabels[i] = labels[j]
	}
	dist := ClassDistribution(testLabels)
	assert.InDelta(t, 0.5, dist[models.ConditionClear], 1e-9)
	assert.InDelta(t, 0.3, dist[models.ConditionCloudy], 1e-9)
	assert.InDelta(t, 0.2, dist[models.ConditionRain], 1e-9)

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplitRejectsSingletonClass(t *testing.T) {
	labels := []models.Condition{models.ConditionClear, models.ConditionClear, models.ConditionRain}
	_, _, err := StratifiedSplit(labels, 0.2, 42)
	assert.ErrorIs(t, err, ErrClassTooSmall)
}

func TestPreprocessorImputesAndScales(t *testing.T) {
	schema := features.Schema{Continuous: []string{"a", "b"}, Categorical: []string{features.RainYesterday}}
	train := []models.TrainingExample{
		{Features: map[string]float64{"a": 1, "b": math.NaN()}, RainYesterday: 0},
		{Features: map[string]float64{"a": 3, "b": math.NaN()}, RainYesterday: 0},
		{Features: map[string]float64{"a": math.NaN(), "b": math.NaN()}, RainYesterday: 1},
	}

	p := FitPreprocessor(schema, train)
	assert.InDelta(t, 2.0, p.Means[0], 1e-12)
	// Imputed column is 1, 3, 2: population std sqrt(2/3).
	assert.InDelta(t, math.Sqrt(2.0/3.0), p.Scales[0], 1e-12)
	assert.Equal(t, 0.0, p.Means[1])
	assert.Equal(t, 1.0, p.Scales[1])
	assert.Equal(t, []int{0, 1}, p.Categories[0])
	assert.Equal(t, 4, p.Width())

	row := p.Transform(models.TrainingExample{Features: map[string]float64{"a": math.NaN()}, RainYesterday: 1})
	assert.Equal(t, []float64{0, 0, 0, 1}, row)

	unseen := p.Transform(models.TrainingExample{Features: map[string]float64{"a": 2}, RainYesterday: 7})
	assert.Equal(t, []float64{0, 0, 0, 0}, unseen)
}

func TestPreprocessorUsesTrainingStatisticsOnly(t *testing.T) {
	schema := features.Schema{Continuous: []string{"a"}}
	train := []models.TrainingExample{
		{Features: map[string]float64{"a": 0}},
		{Features: map[string]float64{"a": 2}},
	}
	p := FitPreprocessor(schema, train)

	row := p.Transform(models.TrainingExample{Features: map[string]float64{"a": 100}})
	assert.InDelta(t, 99.0, row[0], 1e-12)
	assert.InDelta(t, 1.0, p.Means[0], 1e-12)
}

func TestTreeFitsStep(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	y := []float64{0, 0, 0, 5, 5, 5}
	mean := func(idx []int) float64 {
		var s float64
		for _, i := range idx {
			s += y[i]
		}
		return s / float64(len(idx))
	}

	tree := growTree(x, y, treeParams{maxDepth: 3, minSamplesSplit: 2, minSamplesLeaf: 1}, rand.New(rand.NewSource(1)), mean)
	assert.Len(t, tree.Nodes, 3)
	assert.Equal(t, 6.5, tree.Nodes[0].Threshold)
	assert.Equal(t, 0.0, tree.Predict([]float64{2.5}))
	assert.Equal(t, 5.0, tree.Predict([]float64{50}))
}

func TestTreeRespectsMaxDepth(t *testing.T) {
	x := make([][]float64, 64)
	y := make([]float64, 64)
	for i := range x {
		x[i] = []float64{float64(i)}
		y[i] = float64(i * i % 17)
	}
	tree := growTree(x, y, treeParams{maxDepth: 2, minSamplesSplit: 2, minSamplesLeaf: 1}, rand.New(rand.NewSource(1)), func([]int) float64 { return 0 })
	assert.LessOrEqual(t, len(tree.Nodes), 7)
}

func TestGradientBoostingLearnsSeparableData(t *testing.T) {
	examples := synthetic(300, 7)
	p := NewPipeline(testSchema, testConfig())
	require.NoError(t, p.Fit(examples))

	pred, err := p.PredictAll(examples)
	require.NoError(t, err)
	ev := Evaluate(models.Conditions, labelsOf(examples), pred)
	assert.Greater(t, ev.Accuracy, 0.95)
	assert.Equal(t, models.Conditions, p.Classifier.Classes)
}

func TestGradientBoostingSingleClass(t *testing.T) {
	examples := synthetic(10, 1)
	for i := range examples {
		examples[i].Target = models.ConditionClear
	}
	err := NewPipeline(testSchema, testConfig()).Fit(examples)
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestPipelineHeldOutAccuracy(t *testing.T) {
	examples := synthetic(400, 11)
	train, test, err := StratifiedSplit(labelsOf(examples), 0.2, 42)
	require.NoError(t, err)

	p := NewPipeline(testSchema, testConfig())
	require.NoError(t, p.Fit(subset(examples, train)))

	held := subset(examples, test)
	pred, err := p.PredictAll(held)
	require.NoError(t, err)
	ev := Evaluate(p.Schema.Classes, labelsOf(held), pred)
	assert.Greater(t, ev.Accuracy, 0.85)
	assert.Greater(t, ev.MacroF1, 0.8)
}

func TestPipelinePredictProbabilities(t *testing.T) {
	p := NewPipeline(testSchema, testConfig())
	_, err := p.Predict(models.TrainingExample{})
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, p.Fit(synthetic(200, 3)))
	pred, err := p.Predict(models.TrainingExample{
		Features:      map[string]float64{"humidity_mean": 95, "cloudcover_mean": 80},
		RainYesterday: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConditionRain, pred.Condition)

	var sum float64
	for _, c := range models.Conditions {
		sum += pred.Probabilities[c]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPipelineSaveLoadRoundTrip(t *testing.T) {
	examples := synthetic(200, 5)
	p := NewPipeline(testSchema, testConfig())
	require.NoError(t, p.Fit(examples))

	path := filepath.Join(t.TempDir(), "model_output", "model.json")
	require.NoError(t, p.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.Schema, loaded.Schema)

	sample := models.TrainingExample{
		Features:      map[string]float64{"humidity_mean": 40, "cloudcover_mean": 65, "temp_mean": math.NaN()},
		RainYesterday: 0,
	}
	want, err := p.Predict(sample)
	require.NoError(t, err)
	got, err := loaded.Predict(sample)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveUnfitted(t *testing.T) {
	err := NewPipeline(testSchema, testConfig()).Save(filepath.Join(t.TempDir(), "m.json"))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestEvaluate(t *testing.T) {
	truth := []models.Condition{"Clear", "Clear", "Cloudy", "Rain", "Rain", "Rain"}
	pred := []models.Condition{"Clear", "Cloudy", "Cloudy", "Rain", "Rain", "Clear"}

	ev := Evaluate(models.Conditions, truth, pred)
	assert.InDelta(t, 4.0/6.0, ev.Accuracy, 1e-12)

	clear := ev.PerClass[0]
	assert.Equal(t, models.ConditionClear, clear.Class)
	assert.InDelta(t, 0.5, clear.Precision, 1e-12)
	assert.InDelta(t, 0.5, clear.Recall, 1e-12)
	assert.Equal(t, 2, clear.Support)

	cloudy := ev.PerClass[1]
	assert.InDelta(t, 0.5, cloudy.Precision, 1e-12)
	assert.InDelta(t, 1.0, cloudy.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, cloudy.F1, 1e-12)

	rain := ev.PerClass[2]
	assert.InDelta(t, 1.0, rain.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, rain.Recall, 1e-12)
	assert.InDelta(t, 0.8, rain.F1, 1e-12)

	assert.InDelta(t, (0.5+2.0/3.0+0.8)/3, ev.MacroF1, 1e-12)
	assert.InDelta(t, (0.5*2+2.0/3.0*1+0.8*3)/6, ev.WeightedF1, 1e-12)
	assert.Equal(t, []int{1, 1, 0}, ev.Confusion[0])
	assert.Contains(t, ev.String(), "weighted f1")
}

func TestEvaluateZeroDivision(t *testing.T) {
	truth := []models.Condition{"Clear", "Clear"}
	pred := []models.Condition{"Rain", "Rain"}
	ev := Evaluate(models.Conditions, truth, pred)
	require.Len(t, ev.PerClass, 2)
	assert.Equal(t, 0.0, ev.PerClass[1].Precision)
	assert.Equal(t, 0.0, ev.Accuracy)
}
