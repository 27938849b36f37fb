package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/features"
	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"go.uber.org/zap"
)

type Options struct {
	TimestampColumn string
	// DayColumn, when present in the source, overrides the day derived from the timestamp.
	DayColumn string
}

func DefaultOptions() Options {
	return Options{
		TimestampColumn: "datetime_completo",
		DayColumn:       "dia",
	}
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

func LoadCSV(path string, opts Options, logger *zap.Logger) (*models.HourlyDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Dataset loaded",
		zap.String("path", path),
		zap.Int("rows", len(ds.Records)),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// ReadCSV parses hourly observations by header name. A missing timestamp
// column fails with *features.MissingColumnError before any row is read.
func ReadCSV(r io.Reader, opts Options, logger *zap.Logger) (*models.HourlyDataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &features.MissingColumnError{Column: opts.TimestampColumn}
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[name] = i
		columns[name] = true
	}

	tsIdx, ok := index[opts.TimestampColumn]
	if !ok {
		return nil, &features.MissingColumnError{Column: opts.TimestampColumn}
	}
	dayIdx, hasDay := index[opts.DayColumn]
	condIdx, hasCond := index[features.FieldConditions]
	if !hasCond {
		logger.Warn("Conditions column missing, every day will reduce to Clear")
	}

	numeric := make(map[string]int)
	for _, field := range features.NumericFields {
		if i, ok := index[field]; ok {
			numeric[field] = i
		}
	}

	ds := &models.HourlyDataset{Columns: columns}
	skipped := 0
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		var day time.Time
		hasRowDay := false
		if hasDay {
			day, hasRowDay = parseTime(cell(row, dayIdx))
		}
		ts, ok := parseTime(cell(row, tsIdx))
		if !ok {
			// The row still counts toward its day column.
			if !hasRowDay {
				skipped++
				continue
			}
			ts = day
		}

		rec := models.HourlyRecord{
			Timestamp: ts,
			Values:    make(map[string]float64, len(numeric)),
		}
		if hasRowDay {
			rec.Day = day
		}
		if hasCond {
			rec.Conditions = cell(row, condIdx)
		}
		for field, i := range numeric {
			rec.Values[field] = parseFloat(cell(row, i))
		}

		ds.Records = append(ds.Records, rec)
	}

	if skipped > 0 {
		logger.Warn("Skipped rows with unparseable timestamps",
			zap.String("column", opts.TimestampColumn),
			zap.String("day_column", opts.DayColumn),
			zap.Int("skipped", skipped))
	}

	return ds, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseFloat(value string) float64 {
	if value == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
