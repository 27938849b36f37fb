package models

import (
	"math"
	"time"
)

type Condition string

const (
	ConditionClear  Condition = "Clear"
	ConditionCloudy Condition = "Cloudy"
	ConditionRain   Condition = "Rain"
)

// Raw condition strings reported by the weather provider.
const (
	RawPartiallyCloudy = "Partially cloudy"
	RawOvercast        = "Overcast"
	RawClear           = "Clear"
	RawRain            = "Rain"
)

// Conditions is the ordered class set of the classifier.
var Conditions = []Condition{ConditionClear, ConditionCloudy, ConditionRain}

func (c Condition) Valid() bool {
	switch c {
	case ConditionClear, ConditionCloudy, ConditionRain:
		return true
	}
	return false
}

// HourlyRecord is one hourly observation. Numeric fields missing from the
// row are NaN; fields missing from the source are not in Values at all.
type HourlyRecord struct {
	Timestamp  time.Time          `json:"timestamp"`
	Day        time.Time          `json:"day,omitempty"`
	Values     map[string]float64 `json:"values"`
	Conditions string             `json:"conditions"`
}

// Value returns the named field, or NaN when it is absent.
func (r HourlyRecord) Value(field string) float64 {
	if v, ok := r.Values[field]; ok {
		return v
	}
	return math.NaN()
}

// HourlyDataset holds the hourly records and the source columns that were present.
type HourlyDataset struct {
	Columns map[string]bool
	Records []HourlyRecord
}

func (d *HourlyDataset) Has(column string) bool {
	return d.Columns[column]
}

type DailyRecord struct {
	Date          time.Time          `json:"date"`
	Values        map[string]float64 `json:"values"`
	HourlyCount   int                `json:"hourly_count"`
	RawConditions []string           `json:"-"`
	// RawCondition is the reduced condition before the cloudy merge.
	RawCondition string    `json:"raw_condition"`
	Condition    Condition `json:"condition"`
}

// Value returns the named aggregate, or NaN when it is absent.
func (d DailyRecord) Value(name string) float64 {
	if v, ok := d.Values[name]; ok {
		return v
	}
	return math.NaN()
}

func (d DailyRecord) RainedToday() int {
	if d.RawCondition == RawRain {
		return 1
	}
	return 0
}

type TrainingExample struct {
	Date          time.Time          `json:"date"`
	Features      map[string]float64 `json:"features"`
	RainYesterday int                `json:"rain_yesterday"`
	Target        Condition          `json:"target"`
}

// FeatureTable is the in-memory table passed from the feature builder to the trainer.
type FeatureTable struct {
	Continuous []string
	Examples   []TrainingExample
}

func (t *FeatureTable) Labels() []Condition {
	labels := make([]Condition, len(t.Examples))
	for i, ex := range t.Examples {
		labels[i] = ex.Target
	}
	return labels
}

type Prediction struct {
	Condition     Condition             `json:"condition"`
	Probabilities map[Condition]float64 `json:"probabilities"`
}

type PredictionRecord struct {
	ID            string                `json:"id"`
	Date          time.Time             `json:"date"`
	TargetDate    time.Time             `json:"target_date"`
	Condition     Condition             `json:"condition"`
	Probabilities map[Condition]float64 `json:"probabilities"`
	RainYesterday int                   `json:"rain_yesterday"`
	Features      map[string]float64    `json:"features,omitempty"`
	Source        string                `json:"source"`
	CreatedAt     time.Time             `json:"created_at"`
}

// CurrentWeather is the latest observation for a location. Values the
// provider did not report are nil.
type CurrentWeather struct {
	Location        string    `json:"location"`
	ResolvedAddress string    `json:"resolved_address"`
	ObservedAt      string    `json:"observed_at"`
	Temp            *float64  `json:"temp"`
	FeelsLike       *float64  `json:"feelslike"`
	Humidity        *float64  `json:"humidity"`
	Conditions      string    `json:"conditions"`
	Icon            string    `json:"icon,omitempty"`
	Source          string    `json:"source"`
	FetchedAt       time.Time `json:"fetched_at"`
}
