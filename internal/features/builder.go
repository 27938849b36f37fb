package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"go.uber.org/zap"
)

// Builder turns hourly observations into daily records and labeled
// training examples.
type Builder struct {
	schema Schema
	logger *zap.Logger
}

func NewBuilder(schema Schema, logger *zap.Logger) *Builder {
	return &Builder{
		schema: schema,
		logger: logger,
	}
}

func (b *Builder) Schema() Schema {
	return b.schema
}

// Aggregate groups the dataset by calendar day and returns one record per
// day in chronological order.
func (b *Builder) Aggregate(dataset *models.HourlyDataset) []models.DailyRecord {
	groups := make(map[time.Time][]models.HourlyRecord)
	for _, rec := range dataset.Records {
		day := rec.Day
		if day.IsZero() {
			day = rec.Timestamp
		}
		key := truncateDay(day)
		groups[key] = append(groups[key], rec)
	}

	keys := make([]time.Time, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	hasDewDiff := dataset.Has(FieldTemp) && dataset.Has(FieldDew)

	days := make([]models.DailyRecord, 0, len(keys))
	for _, key := range keys {
		hours := groups[key]
		values := make(map[string]float64)

		for _, agg := range Aggregations {
			var series []float64
			switch {
			case agg.Field == FieldHourlyDewDiff:
				series = dewDiffSeries(hours, hasDewDiff)
			case dataset.Has(agg.Field):
				series = fieldSeries(hours, agg.Field)
			default:
				continue
			}

			for _, fn := range agg.Funcs {
				name := ColumnName(agg.Field, fn)
				if agg.Field == FieldHourlyDewDiff {
					values[name] = strictMean(series)
					continue
				}
				values[name] = aggregate(series, fn)
			}
		}

		var raw []string
		if dataset.Has(FieldConditions) {
			raw = make([]string, 0, len(hours))
			for _, h := range hours {
				raw = append(raw, h.Conditions)
			}
		}
		reduced := ReduceConditions(raw)

		deriveDaily(values, key)

		days = append(days, models.DailyRecord{
			Date:          key,
			Values:        values,
			HourlyCount:   len(hours),
			RawConditions: raw,
			RawCondition:  reduced,
			Condition:     MergeCondition(reduced),
		})
	}

	return days
}

// Build aggregates the dataset and labels every day with the next day's
// condition. The last day has no successor and is dropped.
func (b *Builder) Build(dataset *models.HourlyDataset) *models.FeatureTable {
	days := b.Aggregate(dataset)
	return b.Label(days)
}

// Label converts chronologically ordered daily records into training examples.
func (b *Builder) Label(days []models.DailyRecord) *models.FeatureTable {
	table := &models.FeatureTable{
		Continuous: b.available(days),
	}
	if len(days) < 2 {
		b.logger.Warn("Not enough days to build labeled examples", zap.Int("days", len(days)))
		return table
	}

	table.Examples = make([]models.TrainingExample, 0, len(days)-1)
	for i := 0; i < len(days)-1; i++ {
		ex := b.example(days, i, table.Continuous)
		ex.Target = days[i+1].Condition
		table.Examples = append(table.Examples, ex)
	}

	b.logger.Info("Feature table built",
		zap.Int("days", len(days)),
		zap.Int("examples", len(table.Examples)),
		zap.Int("continuous_features", len(table.Continuous)))

	return table
}

// Row builds the unlabeled feature row for date. The previous record, when
// present, supplies rain_yesterday.
func (b *Builder) Row(days []models.DailyRecord, date time.Time) (models.TrainingExample, error) {
	key := truncateDay(date)
	for i := range days {
		if days[i].Date.Equal(key) {
			return b.example(days, i, b.schema.Continuous), nil
		}
	}
	return models.TrainingExample{}, fmt.Errorf("%w: %s", ErrDayNotFound, key.Format("2006-01-02"))
}

func (b *Builder) example(days []models.DailyRecord, i int, continuous []string) models.TrainingExample {
	feats := make(map[string]float64, len(continuous))
	for _, name := range continuous {
		feats[name] = days[i].Value(name)
	}

	rainYesterday := 0
	if i > 0 {
		rainYesterday = days[i-1].RainedToday()
	}

	return models.TrainingExample{
		Date:          days[i].Date,
		Features:      feats,
		RainYesterday: rainYesterday,
	}
}

func (b *Builder) available(days []models.DailyRecord) []string {
	if len(days) == 0 {
		return nil
	}
	present := make([]string, 0, len(days[0].Values))
	for name := range days[0].Values {
		present = append(present, name)
	}
	restricted := b.schema.Restrict(present)

	if dropped := len(b.schema.Continuous) - len(restricted.Continuous); dropped > 0 {
		b.logger.Warn("Continuous features unavailable in source, omitting",
			zap.Int("omitted", dropped))
	}
	return restricted.Continuous
}

func deriveDaily(values map[string]float64, day time.Time) {
	tMax, okMax := values[ColumnName(FieldTemp, AggMax)]
	tMin, okMin := values[ColumnName(FieldTemp, AggMin)]
	if okMax && okMin {
		values[TempRange] = tMax - tMin
	}

	tMean, okTemp := values[ColumnName(FieldTemp, AggMean)]
	dMean, okDew := values[ColumnName(FieldDew, AggMean)]
	if okTemp && okDew {
		values[DewPointDiff] = tMean - dMean
	}

	for k, v := range Cyclical(day) {
		values[k] = v
	}
}

// Cyclical returns the sine/cosine encodings of the month (period 12) and
// day of year over a fixed 365-day period.
func Cyclical(day time.Time) map[string]float64 {
	m := float64(day.Month())
	j := float64(day.YearDay())
	return map[string]float64{
		MonthSin:     math.Sin(2 * math.Pi * m / 12),
		MonthCos:     math.Cos(2 * math.Pi * m / 12),
		DayOfYearSin: math.Sin(2 * math.Pi * j / 365),
		DayOfYearCos: math.Cos(2 * math.Pi * j / 365),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fieldSeries(hours []models.HourlyRecord, field string) []float64 {
	series := make([]float64, len(hours))
	for i, h := range hours {
		series[i] = h.Value(field)
	}
	return series
}

func dewDiffSeries(hours []models.HourlyRecord, available bool) []float64 {
	series := make([]float64, len(hours))
	for i, h := range hours {
		if !available {
			series[i] = math.NaN()
			continue
		}
		series[i] = h.Value(FieldTemp) - h.Value(FieldDew)
	}
	return series
}

// aggregate skips missing values. Mean, max and min of an all-missing
// series are NaN; the sum is zero.
func aggregate(series []float64, fn AggFunc) float64 {
	var sum float64
	n := 0
	best := math.NaN()
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		n++
		sum += v
		switch {
		case n == 1:
			best = v
		case fn == AggMax && v > best:
			best = v
		case fn == AggMin && v < best:
			best = v
		}
	}

	switch fn {
	case AggSum:
		return sum
	case AggMean:
		if n == 0 {
			return math.NaN()
		}
		return sum / float64(n)
	default:
		return best
	}
}

// strictMean propagates a missing value instead of skipping it.
func strictMean(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range series {
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum / float64(len(series))
}
