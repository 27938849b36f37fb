package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	target_date TEXT NOT NULL,
	condition TEXT NOT NULL,
	probabilities TEXT NOT NULL,
	rain_yesterday INTEGER NOT NULL,
	source TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

const dateLayout = "2006-01-02"

// PredictionStore is the SQLite-backed prediction log.
type PredictionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPredictionStore opens or creates the database at path.
func OpenPredictionStore(path string, logger *zap.Logger) (*PredictionStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA journal_mode=WAL")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create predictions table: %w", err)
	}

	logger.Info("Prediction store opened", zap.String("path", path))
	return &PredictionStore{db: db, logger: logger}, nil
}

// Save assigns an ID and creation time when absent and stores the record.
func (s *PredictionStore) Save(ctx context.Context, rec *models.PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	probabilities, err := json.Marshal(rec.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode probabilities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, date, target_date, condition, probabilities, rain_yesterday, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Date.Format(dateLayout),
		rec.TargetDate.Format(dateLayout),
		string(rec.Condition),
		string(probabilities),
		rec.RainYesterday,
		rec.Source,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *PredictionStore) Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, target_date, condition, probabilities, rain_yesterday, source, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var (
			rec                     models.PredictionRecord
			date, target, condition string
			probabilities           string
		)
		if err := rows.Scan(&rec.ID, &date, &target, &condition, &probabilities,
			&rec.RainYesterday, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		rec.Condition = models.Condition(condition)
		if rec.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
		}
		if rec.TargetDate, err = time.Parse(dateLayout, target); err != nil {
			return nil, fmt.Errorf("invalid stored target date %q: %w", target, err)
		}
		if err := json.Unmarshal([]byte(probabilities), &rec.Probabilities); err != nil {
			return nil, fmt.Errorf("failed to decode probabilities: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PredictionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

func (s *PredictionStore) Close() error {
	return s.db.Close()
}
