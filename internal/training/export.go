package training

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// FeatureRow is the Parquet layout of one labeled day. Features missing from
// the source are written as NaN.
type FeatureRow struct {
	Date               string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	TempMean           float64 `parquet:"name=temp_mean, type=DOUBLE"`
	FeelsLikeMean      float64 `parquet:"name=feelslike_mean, type=DOUBLE"`
	HumidityMean       float64 `parquet:"name=humidity_mean, type=DOUBLE"`
	DewMean            float64 `parquet:"name=dew_mean, type=DOUBLE"`
	PressureMean       float64 `parquet:"name=pressure_mean, type=DOUBLE"`
	WindSpeedMean      float64 `parquet:"name=windspeed_mean, type=DOUBLE"`
	WindGustMean       float64 `parquet:"name=windgust_mean, type=DOUBLE"`
	WindDirMean        float64 `parquet:"name=winddir_mean, type=DOUBLE"`
	VisibilityMean     float64 `parquet:"name=visibility_mean, type=DOUBLE"`
	SolarRadiationMean float64 `parquet:"name=solarradiation_mean, type=DOUBLE"`
	UVIndexMean        float64 `parquet:"name=uvindex_mean, type=DOUBLE"`
	CloudCoverMean     float64 `parquet:"name=cloudcover_mean, type=DOUBLE"`
	PrecipSum          float64 `parquet:"name=precip_sum, type=DOUBLE"`
	SnowSum            float64 `parquet:"name=snow_sum, type=DOUBLE"`
	TempRange          float64 `parquet:"name=temp_range, type=DOUBLE"`
	DewPointDiff       float64 `parquet:"name=dew_point_diff, type=DOUBLE"`
	MonthSin           float64 `parquet:"name=month_sin, type=DOUBLE"`
	MonthCos           float64 `parquet:"name=month_cos, type=DOUBLE"`
	DayOfYearSin       float64 `parquet:"name=dayofyear_sin, type=DOUBLE"`
	DayOfYearCos       float64 `parquet:"name=dayofyear_cos, type=DOUBLE"`
	RainYesterday      int32   `parquet:"name=rain_yesterday, type=INT32"`
	Target             string  `parquet:"name=target, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func NewFeatureRow(ex models.TrainingExample) FeatureRow {
	v := func(name string) float64 {
		if f, ok := ex.Features[name]; ok {
			return f
		}
		return math.NaN()
	}
	return FeatureRow{
		Date:               ex.Date.Format("2006-01-02"),
		TempMean:           v("temp_mean"),
		FeelsLikeMean:      v("feelslike_mean"),
		HumidityMean:       v("humidity_mean"),
		DewMean:            v("dew_mean"),
		PressureMean:       v("pressure_mean"),
		WindSpeedMean:      v("windspeed_mean"),
		WindGustMean:       v("windgust_mean"),
		WindDirMean:        v("winddir_mean"),
		VisibilityMean:     v("visibility_mean"),
		SolarRadiationMean: v("solarradiation_mean"),
		UVIndexMean:        v("uvindex_mean"),
		CloudCoverMean:     v("cloudcover_mean"),
		PrecipSum:          v("precip_sum"),
		SnowSum:            v("snow_sum"),
		TempRange:          v(features.TempRange),
		DewPointDiff:       v(features.DewPointDiff),
		MonthSin:           v(features.MonthSin),
		MonthCos:           v(features.MonthCos),
		DayOfYearSin:       v(features.DayOfYearSin),
		DayOfYearCos:       v(features.DayOfYearCos),
		RainYesterday:      int32(ex.RainYesterday),
		Target:             string(ex.Target),
	}
}

// ExportParquet writes the feature table as a Snappy-compressed Parquet file.
func ExportParquet(path string, table *models.FeatureTable) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	pw, err := writer.NewParquetWriterFromWriter(f, new(FeatureRow), 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, ex := range table.Examples {
		if err := pw.Write(NewFeatureRow(ex)); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", ex.Date.Format("2006-01-02"), err)
		}
	}

	// WriteStop can panic inside the parquet writer on malformed input.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
