package features

import (
	"strings"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
)

var countedConditions = map[string]bool{
	models.RawPartiallyCloudy: true,
	models.RawOvercast:        true,
	models.RawClear:           true,
}

// ReduceConditions collapses a day's hourly condition strings into one raw
// condition: Rain if any string mentions rain, otherwise the most frequent of
// "Partially cloudy", "Overcast" and "Clear" (ties go to the first seen),
// defaulting to Clear.
func ReduceConditions(hourly []string) string {
	cleaned := make([]string, 0, len(hourly))
	for _, c := range hourly {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.Contains(c, models.RawRain) {
			return models.RawRain
		}
		cleaned = append(cleaned, c)
	}

	counts := make(map[string]int, len(countedConditions))
	var order []string
	for _, c := range cleaned {
		if !countedConditions[c] {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	best, bestCount := models.RawClear, 0
	for _, c := range order {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// MergeCondition maps a reduced raw condition onto the three-class set.
func MergeCondition(raw string) models.Condition {
	switch raw {
	case models.RawPartiallyCloudy, models.RawOvercast:
		return models.ConditionCloudy
	case models.RawRain:
		return models.ConditionRain
	default:
		return models.ConditionClear
	}
}
