package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const SourceVisualCrossing = "visualcrossing"

var (
	ErrNoAPIKeys           = errors.New("no weather API keys configured")
	ErrNoCurrentConditions = errors.New("response has no current conditions")
)

// VisualCrossingClient reads hourly observations and current conditions
// from the Visual Crossing timeline API. Keys are tried in order until one succeeds.
type VisualCrossingClient struct {
	baseURL string
	keys    []apiKey
	logger  *zap.Logger
}

type apiKey struct {
	value string
	*BaseClient
}

type timelineResponse struct {
	ResolvedAddress   string             `json:"resolvedAddress"`
	Timezone          string             `json:"timezone"`
	Days              []timelineDay      `json:"days"`
	CurrentConditions *currentConditions `json:"currentConditions"`
}

type currentConditions struct {
	Datetime   string   `json:"datetime"`
	Temp       *float64 `json:"temp"`
	FeelsLike  *float64 `json:"feelslike"`
	Humidity   *float64 `json:"humidity"`
	Conditions string   `json:"conditions"`
	Icon       string   `json:"icon"`
}

type timelineDay struct {
	Datetime string         `json:"datetime"`
	Hours    []timelineHour `json:"hours"`
}

type timelineHour struct {
	Datetime       string   `json:"datetime"`
	Temp           *float64 `json:"temp"`
	FeelsLike      *float64 `json:"feelslike"`
	Humidity       *float64 `json:"humidity"`
	Dew            *float64 `json:"dew"`
	Precip         *float64 `json:"precip"`
	PrecipProb     *float64 `json:"precipprob"`
	Snow           *float64 `json:"snow"`
	SnowDepth      *float64 `json:"snowdepth"`
	WindGust       *float64 `json:"windgust"`
	WindSpeed      *float64 `json:"windspeed"`
	WindDir        *float64 `json:"winddir"`
	Pressure       *float64 `json:"pressure"`
	Visibility     *float64 `json:"visibility"`
	CloudCover     *float64 `json:"cloudcover"`
	SolarRadiation *float64 `json:"solarradiation"`
	SolarEnergy    *float64 `json:"solarenergy"`
	UVIndex        *float64 `json:"uvindex"`
	Conditions     string   `json:"conditions"`
}

func NewVisualCrossingClient(baseURL string, keys []string, config ClientConfig, logger *zap.Logger) *VisualCrossingClient {
	c := &VisualCrossingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
	for i, key := range keys {
		c.keys = append(c.keys, apiKey{
			value:      key,
			BaseClient: NewBaseClient(fmt.Sprintf("%s-%d", SourceVisualCrossing, i), config, logger),
		})
	}
	return c
}

// GetHourly returns the hourly observations for location between from and
// to, inclusive, with every field the feature builder understands.
func (c *VisualCrossingClient) GetHourly(ctx context.Context, location string, from, to time.Time) (*models.HourlyDataset, error) {
	path := fmt.Sprintf("%s/%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	data, err := c.fetch(ctx, location, path, "hours")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hourly weather: %w", err)
	}

	ds, err := parseTimeline(data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Hourly weather fetched",
		zap.String("location", location),
		zap.Int("hours", len(ds.Records)))
	return ds, nil
}

// GetCurrent returns the latest conditions reported for location.
func (c *VisualCrossingClient) GetCurrent(ctx context.Context, location string) (*models.CurrentWeather, error) {
	data, err := c.fetch(ctx, location, "today", "current")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current weather: %w", err)
	}

	var response timelineResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.CurrentConditions == nil {
		return nil, ErrNoCurrentConditions
	}

	cc := response.CurrentConditions
	return &models.CurrentWeather{
		Location:        location,
		ResolvedAddress: response.ResolvedAddress,
		ObservedAt:      cc.Datetime,
		Temp:            cc.Temp,
		FeelsLike:       cc.FeelsLike,
		Humidity:        cc.Humidity,
		Conditions:      cc.Conditions,
		Icon:            cc.Icon,
		Source:          SourceVisualCrossing,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// fetch requests a timeline path, trying each key in order. When every key
// fails the errors are combined.
func (c *VisualCrossingClient) fetch(ctx context.Context, location, path, include string) ([]byte, error) {
	if len(c.keys) == 0 {
		return nil, ErrNoAPIKeys
	}

	var errs *multierror.Error
	for i, key := range c.keys {
		data, err := key.GetWithRetry(ctx, c.timelineURL(location, path, include, key.value))
		if err == nil {
			return data, nil
		}

		c.logger.Warn("Weather API key failed, rotating",
			zap.Int("key_index", i),
			zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("key %d: %w", i, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs.ErrorOrNil()
}

func (c *VisualCrossingClient) timelineURL(location, path, include, key string) string {
	q := url.Values{}
	q.Set("unitGroup", "metric")
	q.Set("include", include)
	q.Set("contentType", "json")
	q.Set("key", key)
	return fmt.Sprintf("%s/timeline/%s/%s?%s", c.baseURL, url.PathEscape(location), path, q.Encode())
}

func parseTimeline(data []byte) (*models.HourlyDataset, error) {
	var response timelineResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	ds := &models.HourlyDataset{Columns: map[string]bool{features.FieldConditions: true}}
	for _, field := range features.NumericFields {
		ds.Columns[field] = true
	}

	for _, day := range response.Days {
		date, err := time.Parse("2006-01-02", day.Datetime)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", day.Datetime, err)
		}
		for _, h := range day.Hours {
			ts := date
			if clock, err := time.Parse("15:04:05", h.Datetime); err == nil {
				ts = date.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
			}
			ds.Records = append(ds.Records, models.HourlyRecord{
				Timestamp:  ts,
				Day:        date,
				Values:     h.values(),
				Conditions: h.Conditions,
			})
		}
	}
	return ds, nil
}

func (h timelineHour) values() map[string]float64 {
	fields := map[string]*float64{
		features.FieldTemp:           h.Temp,
		features.FieldFeelsLike:      h.FeelsLike,
		features.FieldHumidity:       h.Humidity,
		features.FieldDew:            h.Dew,
		features.FieldPrecip:         h.Precip,
		features.FieldPrecipProb:     h.PrecipProb,
		features.FieldSnow:           h.Snow,
		features.FieldSnowDepth:      h.SnowDepth,
		features.FieldWindGust:       h.WindGust,
		features.FieldWindSpeed:      h.WindSpeed,
		features.FieldWindDir:        h.WindDir,
		features.FieldPressure:       h.Pressure,
		features.FieldVisibility:     h.Visibility,
		features.FieldCloudCover:     h.CloudCover,
		features.FieldSolarRadiation: h.SolarRadiation,
		features.FieldSolarEnergy:    h.SolarEnergy,
		features.FieldUVIndex:        h.UVIndex,
	}

	values := make(map[string]float64, len(fields))
	for name, v := range fields {
		if v == nil {
			values[name] = math.NaN()
			continue
		}
		values[name] = *v
	}
	return values
}
