package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sample = `datetime_completo,temp,dew,humidity,conditions
2024-01-01T00:00:00,10.5,4,80,Clear
2024-01-01 13:00:00,,5,,"Rain, Overcast"
not-a-date,1,1,1,Clear
2024-01-02T08:00:00,8,x,70,Partially cloudy
`

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sample), DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)

	assert.True(t, ds.Has("temp"))
	assert.True(t, ds.Has("conditions"))
	assert.False(t, ds.Has("pressure"))

	first := ds.Records[0]
	assert.Equal(t, 10.5, first.Value("temp"))
	assert.Equal(t, "Clear", first.Conditions)
	assert.True(t, math.IsNaN(first.Value("pressure")))

	second := ds.Records[1]
	assert.Equal(t, 13, second.Timestamp.Hour())
	assert.True(t, math.IsNaN(second.Value("temp")))
	assert.Equal(t, "Rain, Overcast", second.Conditions)

	assert.True(t, math.IsNaN(ds.Records[2].Value("dew")))
}

func TestReadCSVMissingTimestampColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("time,temp\n2024-01-01,1\n"), DefaultOptions(), zap.NewNop())
	require.Error(t, err)

	var missing *features.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "datetime_completo", missing.Column)
}

func TestReadCSVDayColumn(t *testing.T) {
	src := "datetime_completo,dia,temp,conditions\n2024-01-01T23:30:00,2024-01-02,5,Clear\n"
	ds, err := ReadCSV(strings.NewReader(src), DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, 2, ds.Records[0].Day.Day())
}

func TestReadCSVFallsBackToDayColumn(t *testing.T) {
	src := "datetime_completo,dia,temp,conditions\n" +
		"garbled,2024-01-02,5,Clear\n" +
		"2024-01-02T10:00:00,2024-01-02,7,Rain\n" +
		"garbled,also garbled,9,Clear\n" +
		",,9,Clear\n"
	ds, err := ReadCSV(strings.NewReader(src), DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, ds.Records, 2, "rows without any parseable date are skipped")

	first := ds.Records[0]
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.Day)
	assert.Equal(t, first.Day, first.Timestamp)
	assert.Equal(t, 5.0, first.Value("temp"))

	days := features.NewBuilder(features.DefaultSchema(), zap.NewNop()).Aggregate(ds)
	require.Len(t, days, 1)
	assert.Equal(t, 2, days[0].HourlyCount)
}

func TestLoadCSVEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.csv")
	src := "datetime_completo,temp,dew,conditions\n" +
		"2024-05-01T09:00:00,18,10,Clear\n" +
		"2024-05-02T09:00:00,14,12,Rain\n" +
		"2024-05-03T09:00:00,16,11,Overcast\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	ds, err := LoadCSV(path, DefaultOptions(), zap.NewNop())
	require.NoError(t, err)

	table := features.NewBuilder(features.DefaultSchema(), zap.NewNop()).Build(ds)
	require.Len(t, table.Examples, 2)
	assert.Equal(t, "Rain", string(table.Examples[0].Target))
	assert.Equal(t, 0, table.Examples[0].RainYesterday)
	assert.Equal(t, "Cloudy", string(table.Examples[1].Target))
	assert.Equal(t, 1, table.Examples[1].RainYesterday)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions(), zap.NewNop())
	assert.Error(t, err)
}
