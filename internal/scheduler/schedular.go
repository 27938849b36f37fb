package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reloader reloads the model artifact when it has changed.
type Reloader interface {
	Reload() (bool, error)
}

// Scheduler runs model reloads on a cron schedule.
type Scheduler struct {
	reloader  Reloader
	logger    *zap.Logger
	schedule  string
	cron      *cron.Cron
	entryID   cron.EntryID
	running   bool
	mu        sync.Mutex
	lastRun   time.Time
	lastError string
	reloads   int
}

func NewScheduler(reloader Reloader, schedule string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		reloader: reloader,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	id, err := s.cron.AddFunc(schedule, s.runReload)
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.cron.Entry(s.entryID).Next))
}

func (s *Scheduler) runReload() {
	startTime := time.Now()

	loaded, err := s.reloader.Reload()

	s.mu.Lock()
	s.lastRun = startTime
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	if loaded {
		s.reloads++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled model reload failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	if loaded {
		s.logger.Info("Scheduled model reload completed",
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	s.logger.Debug("Model artifact unchanged")
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering model reload")
	s.runReload()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":  s.running,
		"schedule": s.schedule,
		"last_run": s.lastRun,
		"reloads":  s.reloads,
	}
	if s.running {
		status["next_run"] = s.cron.Entry(s.entryID).Next
	}
	if s.lastError != "" {
		status["last_error"] = s.lastError
	}
	return status
}
