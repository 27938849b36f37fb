package features

import "github.com/bobby-s-dev/weather-predictor/internal/models"

// Hourly source fields.
const (
	FieldTemp           = "temp"
	FieldFeelsLike      = "feelslike"
	FieldHumidity       = "humidity"
	FieldDew            = "dew"
	FieldPrecip         = "precip"
	FieldPrecipProb     = "precipprob"
	FieldSnow           = "snow"
	FieldSnowDepth      = "snowdepth"
	FieldWindGust       = "windgust"
	FieldWindSpeed      = "windspeed"
	FieldWindDir        = "winddir"
	FieldPressure       = "pressure"
	FieldVisibility     = "visibility"
	FieldCloudCover     = "cloudcover"
	FieldSolarRadiation = "solarradiation"
	FieldSolarEnergy    = "solarenergy"
	FieldUVIndex        = "uvindex"
	FieldConditions     = "conditions"

	// Derived per hour before aggregation.
	FieldHourlyDewDiff = "hourly_dew_diff"
)

// NumericFields lists every numeric hourly column the loader understands.
var NumericFields = []string{
	FieldTemp, FieldFeelsLike, FieldHumidity, FieldDew, FieldPrecip,
	FieldPrecipProb, FieldSnow, FieldSnowDepth, FieldWindGust, FieldWindSpeed,
	FieldWindDir, FieldPressure, FieldVisibility, FieldCloudCover,
	FieldSolarRadiation, FieldSolarEnergy, FieldUVIndex,
}

type AggFunc string

const (
	AggMean AggFunc = "mean"
	AggMax  AggFunc = "max"
	AggMin  AggFunc = "min"
	AggSum  AggFunc = "sum"
)

type Aggregation struct {
	Field string
	Funcs []AggFunc
}

// Aggregations is the daily aggregation table. Output columns are named
// "<field>_<func>".
var Aggregations = []Aggregation{
	{FieldTemp, []AggFunc{AggMean, AggMax, AggMin}},
	{FieldFeelsLike, []AggFunc{AggMean}},
	{FieldHumidity, []AggFunc{AggMean}},
	{FieldDew, []AggFunc{AggMean}},
	{FieldHourlyDewDiff, []AggFunc{AggMean}},
	{FieldPrecip, []AggFunc{AggSum}},
	{FieldPrecipProb, []AggFunc{AggMean}},
	{FieldSnow, []AggFunc{AggSum}},
	{FieldSnowDepth, []AggFunc{AggMax}},
	{FieldWindGust, []AggFunc{AggMean}},
	{FieldWindSpeed, []AggFunc{AggMean}},
	{FieldWindDir, []AggFunc{AggMean}},
	{FieldPressure, []AggFunc{AggMean}},
	{FieldVisibility, []AggFunc{AggMean}},
	{FieldCloudCover, []AggFunc{AggMean}},
	{FieldSolarRadiation, []AggFunc{AggMean}},
	{FieldSolarEnergy, []AggFunc{AggMean}},
	{FieldUVIndex, []AggFunc{AggMean}},
}

func ColumnName(field string, fn AggFunc) string {
	return field + "_" + string(fn)
}

// Derived daily columns.
const (
	TempRange     = "temp_range"
	DewPointDiff  = "dew_point_diff"
	MonthSin      = "month_sin"
	MonthCos      = "month_cos"
	DayOfYearSin  = "dayofyear_sin"
	DayOfYearCos  = "dayofyear_cos"
	RainYesterday = "rain_yesterday"
)

// Schema is the feature contract shared by training and inference.
type Schema struct {
	Continuous  []string           `json:"continuous"`
	Categorical []string           `json:"categorical"`
	Classes     []models.Condition `json:"classes"`
}

func DefaultSchema() Schema {
	return Schema{
		Continuous: []string{
			"temp_mean", "feelslike_mean", "humidity_mean", "dew_mean", "pressure_mean",
			"windspeed_mean", "windgust_mean", "winddir_mean", "visibility_mean",
			"solarradiation_mean", "uvindex_mean", "cloudcover_mean", "precip_sum", "snow_sum",
			TempRange, DewPointDiff, MonthSin, MonthCos, DayOfYearSin, DayOfYearCos,
		},
		Categorical: []string{RainYesterday},
		Classes:     append([]models.Condition(nil), models.Conditions...),
	}
}

// Restrict returns a copy keeping only the continuous features that are
// available, preserving schema order.
func (s Schema) Restrict(available []string) Schema {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}

	out := Schema{
		Categorical: append([]string(nil), s.Categorical...),
		Classes:     append([]models.Condition(nil), s.Classes...),
	}
	for _, name := range s.Continuous {
		if have[name] {
			out.Continuous = append(out.Continuous, name)
		}
	}
	return out
}
