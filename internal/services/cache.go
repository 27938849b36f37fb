package services

import (
	"sync"
	"time"

	"github.com/bobby-s-dev/weather-predictor/internal/models"
	"go.uber.org/zap"
)

type CacheItem struct {
	Record    models.PredictionRecord
	ExpiresAt time.Time
}

// PredictionCache holds recent predictions keyed by observation date.
type PredictionCache struct {
	mu              sync.RWMutex
	items           map[string]CacheItem
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

func NewPredictionCache(defaultDuration time.Duration, maxSize int, logger *zap.Logger) *PredictionCache {
	cache := &PredictionCache{
		items:           make(map[string]CacheItem),
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         max(1, maxSize),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

func (c *PredictionCache) Set(date string, rec models.PredictionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if cache is too large
	if _, exists := c.items[date]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	expiresAt := time.Now().Add(c.defaultDuration)
	c.items[date] = CacheItem{
		Record:    rec,
		ExpiresAt: expiresAt,
	}

	c.logger.Debug("Prediction cached",
		zap.String("date", date),
		zap.Time("expires_at", expiresAt))
}

func (c *PredictionCache) Get(date string) (models.PredictionRecord, bool) {
	c.mu.RLock()
	item, exists := c.items[date]
	c.mu.RUnlock()

	if !exists {
		return models.PredictionRecord{}, false
	}

	if time.Now().After(item.ExpiresAt) {
		c.mu.Lock()
		delete(c.items, date)
		c.mu.Unlock()
		return models.PredictionRecord{}, false
	}

	return item.Record, true
}

// Clear drops every entry. Called after a model reload.
func (c *PredictionCache) Clear() {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]CacheItem)
	c.mu.Unlock()

	c.logger.Debug("Prediction cache cleared", zap.Int("count", n))
}

func (c *PredictionCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.logger.Debug("Evicted oldest prediction from cache",
			zap.String("date", oldestKey))
	}
}

func (c *PredictionCache) startCleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *PredictionCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for date, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, date)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned expired cache items",
			zap.Int("count", expiredCount))
	}
}

func (c *PredictionCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func (c *PredictionCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"items":            len(c.items),
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}
