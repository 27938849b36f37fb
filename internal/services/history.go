package services

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/dataset"
	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

var ErrHistoryUnavailable = errors.New("historical data unavailable")

// MonthlyVariability summarizes one calendar month of the history.
type MonthlyVariability struct {
	Month        int     `json:"month"`
	Days         int     `json:"days"`
	TempMean     float64 `json:"temp_mean"`
	TempMeanStd  float64 `json:"temp_mean_std"`
	TempRange    float64 `json:"temp_range"`
	TempRangeStd float64 `json:"temp_range_std"`
}

// History serves statistics over the historical CSV. Daily records come
// from the same aggregation the trainer uses and are reloaded when the
// file changes.
type History struct {
	path    string
	opts    dataset.Options
	builder *features.Builder
	logger  *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	days    []models.DailyRecord
}

func NewHistory(path string, opts dataset.Options, logger *zap.Logger) *History {
	return &History{
		path:    path,
		opts:    opts,
		builder: features.NewBuilder(features.DefaultSchema(), logger),
		logger:  logger,
	}
}

// Daily returns one aggregated record per day of the history.
func (h *History) Daily() ([]models.DailyRecord, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.days != nil && info.ModTime().Equal(h.modTime) {
		return h.days, nil
	}

	ds, err := dataset.LoadCSV(h.path, h.opts, h.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	h.days = h.builder.Aggregate(ds)
	h.modTime = info.ModTime()

	h.logger.Info("Historical data loaded",
		zap.String("path", h.path),
		zap.Int("days", len(h.days)))
	return h.days, nil
}

// ConditionCounts counts days per reduced condition, before the cloudy merge.
func (h *History) ConditionCounts() (map[string]int, error) {
	days, err := h.Daily()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, d := range days {
		counts[d.RawCondition]++
	}
	return counts, nil
}

// Variability returns, for every month present, the mean and sample
// standard deviation of the daily mean temperature and temperature range.
// Missing values are skipped; a month with one valid day has a NaN std.
func (h *History) Variability() ([]MonthlyVariability, error) {
	days, err := h.Daily()
	if err != nil {
		return nil, err
	}

	type series struct {
		days      int
		mean, rng []float64
	}
	byMonth := make(map[int]*series)
	for _, d := range days {
		m := int(d.Date.Month())
		s, ok := byMonth[m]
		if !ok {
			s = &series{}
			byMonth[m] = s
		}
		s.days++
		if v := d.Value(features.ColumnName(features.FieldTemp, features.AggMean)); !math.IsNaN(v) {
			s.mean = append(s.mean, v)
		}
		if v := d.Value(features.TempRange); !math.IsNaN(v) {
			s.rng = append(s.rng, v)
		}
	}

	out := make([]MonthlyVariability, 0, len(byMonth))
	for m, s := range byMonth {
		mv := MonthlyVariability{Month: m, Days: s.days}
		mv.TempMean, mv.TempMeanStd = meanStd(s.mean)
		mv.TempRange, mv.TempRangeStd = meanStd(s.rng)
		out = append(out, mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return x[0], math.NaN()
	}
	return stat.MeanStdDev(x, nil)
}
