package client

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const timelineBody = `{
  "resolvedAddress": "Madrid, Spain",
  "days": [
    {"datetime": "2024-05-01", "hours": [
      {"datetime": "00:00:00", "temp": 12.5, "dew": 7.1, "humidity": 70, "windgust": null, "conditions": "Clear"},
      {"datetime": "13:00:00", "temp": 21.0, "dew": 8.0, "humidity": 40, "conditions": "Partially cloudy"}
    ]},
    {"datetime": "2024-05-02", "hours": [
      {"datetime": "06:00:00", "temp": 10.0, "dew": 9.5, "conditions": "Rain, Overcast"}
    ]}
  ]
}`

func testClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		Multiplier:     1,
		Threshold:      3,
		BreakerTimeout: time.Second,
	}
}

func TestGetHourlyParsesTimeline(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "good", r.URL.Query().Get("key"))
		assert.Equal(t, "hours", r.URL.Query().Get("include"))
		w.Write([]byte(timelineBody))
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"good"}, testClientConfig(), zap.NewNop())
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ds, err := c.GetHourly(context.Background(), "Madrid,Spain", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "/timeline/Madrid,Spain/2024-05-01/2024-05-02", path)
	require.Len(t, ds.Records, 3)
	assert.True(t, ds.Has("temp"))
	assert.True(t, ds.Has("conditions"))

	first := ds.Records[0]
	assert.Equal(t, 12.5, first.Value("temp"))
	assert.True(t, math.IsNaN(first.Value("windgust")))
	assert.True(t, math.IsNaN(first.Value("pressure")))
	assert.Equal(t, 13, ds.Records[1].Timestamp.Hour())
	assert.Equal(t, 2, ds.Records[2].Day.Day())
	assert.Equal(t, "Rain, Overcast", ds.Records[2].Conditions)
}

func TestGetHourlyRotatesKeys(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("key") {
		case "exhausted":
			w.WriteHeader(http.StatusTooManyRequests)
		case "revoked":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.Write([]byte(timelineBody))
		}
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"exhausted", "revoked", "good"}, testClientConfig(), zap.NewNop())
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ds, err := c.GetHourly(context.Background(), "Madrid", day, day)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetHourlyAllKeysFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"a", "b"}, testClientConfig(), zap.NewNop())
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.GetHourly(context.Background(), "Madrid", day, day)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "key 0") && strings.Contains(err.Error(), "key 1"))

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusUnauthorized, status.StatusCode)
}

func TestGetHourlyNoKeys(t *testing.T) {
	c := NewVisualCrossingClient("http://localhost", nil, testClientConfig(), zap.NewNop())
	_, err := c.GetHourly(context.Background(), "Madrid", time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestGetHourlyMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"k"}, testClientConfig(), zap.NewNop())
	_, err := c.GetHourly(context.Background(), "Madrid", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestGetHourlyKeepsKeysOutOfLogsAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	core, logs := observer.New(zap.DebugLevel)
	cfg := testClientConfig()
	cfg.MaxRetries = 1
	c := NewVisualCrossingClient(baseURL, []string{"SECRETKEY123", "OTHERSECRET456"}, cfg, zap.New(core))

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.GetHourly(context.Background(), "Madrid", day, day)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY123")
	assert.NotContains(t, err.Error(), "OTHERSECRET456")

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			rendered := field.String
			if field.Interface != nil {
				if e, ok := field.Interface.(error); ok {
					rendered = e.Error()
				}
			}
			assert.NotContains(t, rendered, "SECRET", "log %q field %q", entry.Message, field.Key)
		}
		assert.NotContains(t, entry.Message, "SECRET")
	}
}

const currentBody = `{
  "resolvedAddress": "Sevilla, Andalucía, España",
  "currentConditions": {"datetime": "14:00:00", "temp": 31.2, "feelslike": 30.1, "humidity": null, "conditions": "Clear", "icon": "clear-day"}
}`

func TestGetCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timeline/Sevilla/today", r.URL.Path)
		assert.Equal(t, "current", r.URL.Query().Get("include"))
		if r.URL.Query().Get("key") == "spent" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(currentBody))
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"spent", "good"}, testClientConfig(), zap.NewNop())
	current, err := c.GetCurrent(context.Background(), "Sevilla")
	require.NoError(t, err)

	assert.Equal(t, "Sevilla", current.Location)
	assert.Equal(t, "Sevilla, Andalucía, España", current.ResolvedAddress)
	require.NotNil(t, current.Temp)
	assert.Equal(t, 31.2, *current.Temp)
	assert.Equal(t, 30.1, *current.FeelsLike)
	assert.Nil(t, current.Humidity)
	assert.Equal(t, "Clear", current.Conditions)
	assert.Equal(t, SourceVisualCrossing, current.Source)
}

func TestGetCurrentMissingConditions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resolvedAddress": "Nowhere", "days": []}`))
	}))
	defer server.Close()

	c := NewVisualCrossingClient(server.URL, []string{"k"}, testClientConfig(), zap.NewNop())
	_, err := c.GetCurrent(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNoCurrentConditions)
}
