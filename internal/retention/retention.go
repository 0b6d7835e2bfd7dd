// Package retention deletes old activities on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser accepts 5-field expressions and descriptors such as @daily.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Cleaner removes activities older than the given number of days and
// returns how many were deleted.
type Cleaner interface {
	CleanupOldData(ctx context.Context, retentionDays int) (int64, error)
}

type Config struct {
	Store    Cleaner
	Logger   *slog.Logger
	Schedule string // cron expression; defaults to "0 3 * * *"
	Days     int    // 0 disables cleanup
	Timeout  time.Duration
}

type Scheduler struct {
	store    Cleaner
	logger   *slog.Logger
	schedule string
	days     int
	timeout  time.Duration

	mu   sync.Mutex
	cron *cronlib.Cron
}

func NewScheduler(cfg Config) *Scheduler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		store:    cfg.Store,
		logger:   logger,
		schedule: schedule,
		days:     cfg.Days,
		timeout:  timeout,
	}
}

// Start registers the cleanup job and starts the cron runner. It is a no-op
// when retention is disabled. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.days <= 0 {
		s.logger.Info("retention disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cronlib.New(cronlib.WithParser(cronParser))
	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		s.cron = nil
		return fmt.Errorf("retention schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("retention scheduler started", "schedule", s.schedule, "days", s.days)
	return nil
}

// Stop halts the runner and waits for a running cleanup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("retention scheduler stopped")
}

// RunOnce performs one cleanup pass.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	if s.days <= 0 {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.CleanupOldData(ctx, s.days)
	if err != nil {
		s.logger.Error("retention: cleanup failed", "days", s.days, "error", err)
		return 0, err
	}
	s.logger.Info("retention: cleanup finished", "days", s.days, "deleted", n)
	return n, nil
}

// NextRunTime returns the next time expr fires after the given time.
func NextRunTime(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
