package features

import (
	"math"
	"testing"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func hour(day string, h int, temp, dew float64, cond string) models.HourlyRecord {
	d, _ := time.Parse("2006-01-02", day)
	return models.HourlyRecord{
		Timestamp:  d.Add(time.Duration(h) * time.Hour),
		Values:     map[string]float64{FieldTemp: temp, FieldDew: dew, FieldPrecip: 0.5},
		Conditions: cond,
	}
}

func dataset(records ...models.HourlyRecord) *models.HourlyDataset {
	return &models.HourlyDataset{
		Columns: map[string]bool{
			"datetime_completo": true,
			FieldTemp:           true,
			FieldDew:            true,
			FieldPrecip:         true,
			FieldConditions:     true,
		},
		Records: records,
	}
}

func newTestBuilder() *Builder {
	return NewBuilder(DefaultSchema(), zap.NewNop())
}

func TestAggregateOneRecordPerDay(t *testing.T) {
	ds := dataset(
		hour("2024-03-02", 10, 12, 5, "Clear"),
		hour("2024-03-01", 0, 10, 4, "Clear"),
		hour("2024-03-01", 12, 20, 6, "Overcast"),
		hour("2024-03-01", 23, 15, 5, "Overcast"),
	)

	days := newTestBuilder().Aggregate(ds)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, "2024-03-01", first.Date.Format("2006-01-02"))
	assert.Equal(t, 3, first.HourlyCount)
	assert.InDelta(t, 15.0, first.Value("temp_mean"), 1e-9)
	assert.InDelta(t, 20.0, first.Value("temp_max"), 1e-9)
	assert.InDelta(t, 10.0, first.Value("temp_min"), 1e-9)
	assert.InDelta(t, 1.5, first.Value("precip_sum"), 1e-9)
	assert.InDelta(t, 10.0, first.Value(TempRange), 1e-9)
	assert.InDelta(t, 10.0, first.Value(DewPointDiff), 1e-9)
	assert.InDelta(t, 10.0, first.Value("hourly_dew_diff_mean"), 1e-9)
	assert.Equal(t, models.RawOvercast, first.RawCondition)
	assert.Equal(t, models.ConditionCloudy, first.Condition)

	_, hasHumidity := first.Values["humidity_mean"]
	assert.False(t, hasHumidity, "absent source fields are skipped")
}

func TestAggregateSkipsMissingValues(t *testing.T) {
	a := hour("2024-03-01", 0, 10, 4, "Clear")
	b := hour("2024-03-01", 1, math.NaN(), 4, "Clear")

	days := newTestBuilder().Aggregate(dataset(a, b))
	require.Len(t, days, 1)
	assert.InDelta(t, 10.0, days[0].Value("temp_mean"), 1e-9)
	assert.True(t, math.IsNaN(days[0].Value("hourly_dew_diff_mean")), "dew diff propagates missing hours")
}

func TestAggregateDewDiffWithoutDewColumn(t *testing.T) {
	ds := dataset(hour("2024-03-01", 0, 10, 4, "Clear"))
	delete(ds.Columns, FieldDew)

	days := newTestBuilder().Aggregate(ds)
	require.Len(t, days, 1)
	assert.True(t, math.IsNaN(days[0].Value("hourly_dew_diff_mean")))
	_, ok := days[0].Values[DewPointDiff]
	assert.False(t, ok)
}

func TestBuildDropsLastDay(t *testing.T) {
	ds := dataset(
		hour("2024-01-01", 6, 5, 1, "Clear"),
		hour("2024-01-02", 6, 5, 1, "Clear"),
		hour("2024-01-03", 6, 5, 1, "Clear"),
		hour("2024-01-04", 6, 5, 1, "Clear"),
	)

	table := newTestBuilder().Build(ds)
	assert.Len(t, table.Examples, 3)
	assert.Equal(t, "2024-01-03", table.Examples[2].Date.Format("2006-01-02"))
}

func TestBuildLabelsNextDay(t *testing.T) {
	ds := dataset(
		hour("2024-05-01", 9, 18, 10, "Clear"),
		hour("2024-05-02", 9, 14, 12, "Rain"),
		hour("2024-05-03", 9, 16, 11, "Overcast"),
	)

	table := newTestBuilder().Build(ds)
	require.Len(t, table.Examples, 2)

	assert.Equal(t, models.ConditionRain, table.Examples[0].Target)
	assert.Equal(t, 0, table.Examples[0].RainYesterday)
	assert.Equal(t, models.ConditionCloudy, table.Examples[1].Target)
	assert.Equal(t, 1, table.Examples[1].RainYesterday)
}

func TestBuildRestrictsContinuousFeatures(t *testing.T) {
	ds := dataset(
		hour("2024-05-01", 9, 18, 10, "Clear"),
		hour("2024-05-02", 9, 14, 12, "Rain"),
	)

	table := newTestBuilder().Build(ds)
	assert.Equal(t, []string{
		"temp_mean", "dew_mean", "precip_sum", TempRange, DewPointDiff,
		MonthSin, MonthCos, DayOfYearSin, DayOfYearCos,
	}, table.Continuous)
	for _, ex := range table.Examples {
		assert.Len(t, ex.Features, len(table.Continuous))
	}
}

func TestBuildTempRangeNonNegative(t *testing.T) {
	var records []models.HourlyRecord
	start, _ := time.Parse("2006-01-02", "2023-12-20")
	for d := 0; d < 20; d++ {
		day := start.AddDate(0, 0, d).Format("2006-01-02")
		for h := 0; h < 24; h += 6 {
			records = append(records, hour(day, h, float64((d*7+h)%13)-4, -5, "Clear"))
		}
	}

	table := newTestBuilder().Build(dataset(records...))
	require.Len(t, table.Examples, 19)
	for _, ex := range table.Examples {
		assert.GreaterOrEqual(t, ex.Features[TempRange], 0.0)
	}
}

func TestBuildSingleDay(t *testing.T) {
	table := newTestBuilder().Build(dataset(hour("2024-05-01", 9, 18, 10, "Clear")))
	assert.Empty(t, table.Examples)
}

func TestRowUsesPreviousDay(t *testing.T) {
	b := newTestBuilder()
	days := b.Aggregate(dataset(
		hour("2024-05-01", 9, 18, 10, "Rain, Overcast"),
		hour("2024-05-02", 9, 14, 12, "Clear"),
	))

	date, _ := time.Parse("2006-01-02", "2024-05-02")
	row, err := b.Row(days, date)
	require.NoError(t, err)
	assert.Equal(t, 1, row.RainYesterday)
	assert.Len(t, row.Features, len(DefaultSchema().Continuous))
	assert.True(t, math.IsNaN(row.Features["humidity_mean"]))

	_, err = b.Row(days, date.AddDate(0, 0, 5))
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestCyclical(t *testing.T) {
	dec := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	enc := Cyclical(dec)
	assert.InDelta(t, 0.0, enc[MonthSin], 1e-9)
	assert.InDelta(t, 1.0, enc[MonthCos], 1e-9)
	assert.InDelta(t, math.Sin(2*math.Pi*366/365), enc[DayOfYearSin], 1e-12)

	jan := Cyclical(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, enc[DayOfYearCos], jan[DayOfYearCos], 0.01)
}
