package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service's Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	weatherRequests    *prometheus.CounterVec
	modelReloads       *prometheus.CounterVec
	modelLoaded        prometheus.Gauge
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_predictions_total",
			Help: "Predictions served by predicted condition.",
		}, []string{"condition"}),
		predictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weather_prediction_duration_seconds",
			Help:    "Time to fetch observations and score one prediction.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_prediction_cache_lookups_total",
			Help: "Prediction cache lookups by result.",
		}, []string{"result"}),
		weatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_api_requests_total",
			Help: "Weather API fetches by outcome.",
		}, []string{"status"}),
		modelReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_model_reloads_total",
			Help: "Model artifact reloads by outcome.",
		}, []string{"status"}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weather_model_loaded",
			Help: "1 when a fitted model is loaded.",
		}),
	}

	registry.MustRegister(r.predictions)
	registry.MustRegister(r.predictionDuration)
	registry.MustRegister(r.cacheLookups)
	registry.MustRegister(r.weatherRequests)
	registry.MustRegister(r.modelReloads)
	registry.MustRegister(r.modelLoaded)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RecordPrediction(condition string, duration time.Duration) {
	r.predictions.WithLabelValues(condition).Inc()
	r.predictionDuration.Observe(duration.Seconds())
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	r.cacheLookups.WithLabelValues(outcome(hit, "hit", "miss")).Inc()
}

func (r *Recorder) RecordWeatherRequest(err error) {
	r.weatherRequests.WithLabelValues(outcome(err == nil, "success", "error")).Inc()
}

func (r *Recorder) RecordModelReload(err error) {
	r.modelReloads.WithLabelValues(outcome(err == nil, "success", "error")).Inc()
	if err == nil {
		r.modelLoaded.Set(1)
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
