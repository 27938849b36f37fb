package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
)

// StratifiedSplit partitions example indices into train and test sets so
// that each class keeps its proportion in both. The result depends only on
// labels, testSize and seed.
func StratifiedSplit(labels []models.Condition, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	byClass := make(map[models.Condition][]int)
	var order []models.Condition
	for i, label := range labels {
		if _, ok := byClass[label]; !ok {
			order = append(order, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	rng := rand.New(rand.NewSource(seed))
	for _, class := range order {
		idx := byClass[class]
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("%w: class %s has %d member", ErrClassTooSmall, class, len(idx))
		}

		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testSize))
		nTest = max(1, min(nTest, len(idx)-1))

		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// ClassDistribution returns the share of each class in labels.
func ClassDistribution(labels []models.Condition) map[models.Condition]float64 {
	dist := make(map[models.Condition]float64)
	if len(labels) == 0 {
		return dist
	}
	for _, label := range labels {
		dist[label]++
	}
	for k := range dist {
		dist[k] /= float64(len(labels))
	}
	return dist
}
