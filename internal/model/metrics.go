package model

import (
	"fmt"
	"strings"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
)

type ClassMetrics struct {
	Class     models.Condition `json:"class" yaml:"class"`
	Precision float64          `json:"precision" yaml:"precision"`
	Recall    float64          `json:"recall" yaml:"recall"`
	F1        float64          `json:"f1" yaml:"f1"`
	Support   int              `json:"support" yaml:"support"`
}

type Evaluation struct {
	Accuracy   float64        `json:"accuracy" yaml:"accuracy"`
	MacroF1    float64        `json:"macro_f1" yaml:"macro_f1"`
	WeightedF1 float64        `json:"weighted_f1" yaml:"weighted_f1"`
	PerClass   []ClassMetrics `json:"per_class" yaml:"per_class"`
	// Confusion[i][j] counts examples of PerClass[i] predicted as PerClass[j].
	Confusion [][]int `json:"confusion" yaml:"confusion"`
	Support   int     `json:"support" yaml:"support"`
}

// Evaluate scores predictions against the truth. Classes are taken from
// order, restricted to those appearing in either slice. Undefined ratios are 0.
func Evaluate(order []models.Condition, truth, pred []models.Condition) Evaluation {
	present := make(map[models.Condition]bool)
	for i := range truth {
		present[truth[i]] = true
		present[pred[i]] = true
	}
	var classes []models.Condition
	index := make(map[models.Condition]int)
	for _, c := range order {
		if present[c] {
			index[c] = len(classes)
			classes = append(classes, c)
		}
	}

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}
	correct := 0
	for i := range truth {
		t, okT := index[truth[i]]
		p, okP := index[pred[i]]
		if !okT || !okP {
			continue
		}
		confusion[t][p]++
		if t == p {
			correct++
		}
	}

	ev := Evaluation{
		Confusion: confusion,
		Support:   len(truth),
		PerClass:  make([]ClassMetrics, len(classes)),
	}
	if len(truth) > 0 {
		ev.Accuracy = float64(correct) / float64(len(truth))
	}

	var f1Sum, weighted float64
	for c, class := range classes {
		tp := confusion[c][c]
		var predicted, support int
		for k := range classes {
			predicted += confusion[k][c]
			support += confusion[c][k]
		}

		m := ClassMetrics{
			Class:     class,
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.PerClass[c] = m

		f1Sum += m.F1
		weighted += m.F1 * float64(support)
	}
	if len(classes) > 0 {
		ev.MacroF1 = f1Sum / float64(len(classes))
	}
	if len(truth) > 0 {
		ev.WeightedF1 = weighted / float64(len(truth))
	}
	return ev
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders a per-class report table.
func (e Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range e.PerClass {
		fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", m.Class, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", e.Accuracy, e.Support)
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "macro f1", "", "", e.MacroF1, e.Support)
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "weighted f1", "", "", e.WeightedF1, e.Support)
	return b.String()
}
