package model

import (
	"math"
	"sort"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"gonum.org/v1/gonum/stat"
)

// Preprocessor imputes and standardizes continuous features and one-hot
// encodes categorical ones. All statistics come from the rows it was fitted on.
type Preprocessor struct {
	Continuous  []string  `json:"continuous"`
	Categorical []string  `json:"categorical"`
	Means       []float64 `json:"means"`
	Scales      []float64 `json:"scales"`
	// Categories holds the sorted values seen per categorical feature.
	Categories [][]int `json:"categories"`
}

func FitPreprocessor(schema features.Schema, examples []models.TrainingExample) *Preprocessor {
	p := &Preprocessor{
		Continuous:  append([]string(nil), schema.Continuous...),
		Categorical: append([]string(nil), schema.Categorical...),
		Means:       make([]float64, len(schema.Continuous)),
		Scales:      make([]float64, len(schema.Continuous)),
		Categories:  make([][]int, len(schema.Categorical)),
	}

	for j, name := range p.Continuous {
		observed := make([]float64, 0, len(examples))
		for _, ex := range examples {
			if v := featureValue(ex, name); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			p.Means[j], p.Scales[j] = 0, 1
			continue
		}
		p.Means[j] = stat.Mean(observed, nil)

		// Imputed rows sit exactly on the mean, so they only widen the denominator.
		imputed := make([]float64, len(examples))
		for i, ex := range examples {
			v := featureValue(ex, name)
			if math.IsNaN(v) {
				v = p.Means[j]
			}
			imputed[i] = v
		}
		_, std := stat.PopMeanStdDev(imputed, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		p.Scales[j] = std
	}

	for j, name := range p.Categorical {
		seen := make(map[int]bool)
		for _, ex := range examples {
			seen[categoryValue(ex, name)] = true
		}
		cats := make([]int, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Ints(cats)
		p.Categories[j] = cats
	}

	return p
}

// Width is the length of a transformed row.
func (p *Preprocessor) Width() int {
	w := len(p.Continuous)
	for _, cats := range p.Categories {
		w += len(cats)
	}
	return w
}

// Transform maps one example onto the model's input space. Missing
// continuous values take the fitted mean; unseen categories encode as zeros.
func (p *Preprocessor) Transform(ex models.TrainingExample) []float64 {
	row := make([]float64, 0, p.Width())
	for j, name := range p.Continuous {
		v := featureValue(ex, name)
		if math.IsNaN(v) {
			v = p.Means[j]
		}
		row = append(row, (v-p.Means[j])/p.Scales[j])
	}
	for j, name := range p.Categorical {
		v := categoryValue(ex, name)
		for _, c := range p.Categories[j] {
			if c == v {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		}
	}
	return row
}

func (p *Preprocessor) TransformAll(examples []models.TrainingExample) [][]float64 {
	out := make([][]float64, len(examples))
	for i, ex := range examples {
		out[i] = p.Transform(ex)
	}
	return out
}

func featureValue(ex models.TrainingExample, name string) float64 {
	if v, ok := ex.Features[name]; ok {
		return v
	}
	return math.NaN()
}

func categoryValue(ex models.TrainingExample, name string) int {
	if name == features.RainYesterday {
		return ex.RainYesterday
	}
	return -1
}
