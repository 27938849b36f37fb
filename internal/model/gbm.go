package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
)

type BoostingConfig struct {
	NEstimators     int     `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Seed            int64   `json:"seed" yaml:"seed"`
}

func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{
		NEstimators:     100,
		MaxDepth:        5,
		LearningRate:    0.1,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// GradientBoosting is a multiclass gradient-boosted tree ensemble trained on
// the multinomial deviance. Each stage holds one regression tree per class.
type GradientBoosting struct {
	Config  BoostingConfig     `json:"config"`
	Classes []models.Condition `json:"classes"`
	Init    []float64          `json:"init"`
	Stages  [][]*Tree          `json:"stages"`
}

func NewGradientBoosting(cfg BoostingConfig) *GradientBoosting {
	return &GradientBoosting{Config: cfg}
}

// Fit trains on rows x with labels y. Classes keep the order of classes,
// restricted to those present in y.
func (g *GradientBoosting) Fit(x [][]float64, y []models.Condition, classes []models.Condition) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrTooFewExamples, len(x), len(y))
	}

	counts := make(map[models.Condition]int)
	for _, label := range y {
		counts[label]++
	}
	g.Classes = g.Classes[:0]
	for _, c := range classes {
		if counts[c] > 0 {
			g.Classes = append(g.Classes, c)
		}
	}
	if len(g.Classes) != len(counts) {
		return fmt.Errorf("training labels contain classes outside %v", classes)
	}
	if len(g.Classes) < 2 {
		return ErrSingleClass
	}

	n, k := len(x), len(g.Classes)
	classIndex := make(map[models.Condition]int, k)
	g.Init = make([]float64, k)
	for i, c := range g.Classes {
		classIndex[c] = i
		g.Init[i] = math.Log(float64(counts[c]) / float64(n))
	}

	onehot := make([][]float64, k)
	raw := make([][]float64, k)
	for c := 0; c < k; c++ {
		onehot[c] = make([]float64, n)
		raw[c] = make([]float64, n)
		for i := range raw[c] {
			raw[c][i] = g.Init[c]
		}
	}
	for i, label := range y {
		onehot[classIndex[label]][i] = 1
	}

	params := treeParams{
		maxDepth:        g.Config.MaxDepth,
		minSamplesSplit: max(2, g.Config.MinSamplesSplit),
		minSamplesLeaf:  max(1, g.Config.MinSamplesLeaf),
	}
	rng := rand.New(rand.NewSource(g.Config.Seed))
	scale := float64(k-1) / float64(k)

	g.Stages = make([][]*Tree, 0, g.Config.NEstimators)
	prob := make([][]float64, n)
	for i := range prob {
		prob[i] = make([]float64, k)
	}
	residual := make([]float64, n)

	for stage := 0; stage < g.Config.NEstimators; stage++ {
		for i := 0; i < n; i++ {
			scores := make([]float64, k)
			for c := 0; c < k; c++ {
				scores[c] = raw[c][i]
			}
			softmax(scores, prob[i])
		}

		trees := make([]*Tree, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				residual[i] = onehot[c][i] - prob[i][c]
			}

			cls := c
			leaf := func(idx []int) float64 {
				var num, den float64
				for _, i := range idx {
					num += residual[i]
					p := prob[i][cls]
					den += p * (1 - p)
				}
				if math.Abs(den) < 1e-150 {
					return 0
				}
				return scale * num / den
			}

			tree := growTree(x, residual, params, rng, leaf)
			for i := 0; i < n; i++ {
				raw[c][i] += g.Config.LearningRate * tree.Predict(x[i])
			}
			trees[c] = tree
		}
		g.Stages = append(g.Stages, trees)
	}

	return nil
}

func (g *GradientBoosting) decision(x []float64) []float64 {
	scores := append([]float64(nil), g.Init...)
	for _, trees := range g.Stages {
		for c, tree := range trees {
			scores[c] += g.Config.LearningRate * tree.Predict(x)
		}
	}
	return scores
}

// PredictProba returns one probability per entry of Classes.
func (g *GradientBoosting) PredictProba(x []float64) []float64 {
	out := make([]float64, len(g.Classes))
	softmax(g.decision(x), out)
	return out
}

func (g *GradientBoosting) Predict(x []float64) models.Condition {
	return g.Classes[argmax(g.PredictProba(x))]
}

func softmax(scores, out []float64) {
	hi := math.Inf(-1)
	for _, s := range scores {
		hi = math.Max(hi, s)
	}
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// argmax returns the first index holding the maximum.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
