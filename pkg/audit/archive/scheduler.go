package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the archiver on a cron schedule.
type Scheduler struct {
	archiver *Archiver
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	onRun    func(*Result, error)
}

// NewScheduler creates a new archive scheduler.
func NewScheduler(archiver *Archiver) *Scheduler {
	return &Scheduler{
		archiver: archiver,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "audit.archive.scheduler"),
	}
}

// OnRun registers fn to be called after every scheduled run with its
// result or error. Set it before Start.
func (s *Scheduler) OnRun(fn func(*Result, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRun = fn
}

// Start schedules archiving according to the archiver's Schedule. An empty
// schedule leaves the scheduler stopped. The scheduler stops when ctx is
// cancelled.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "@every 1h"    - Hourly from start
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.archiver.config.Schedule
	if schedule == "" {
		s.logger.Info("archive schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule archiving: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("archive scheduler started",
		"schedule", schedule,
		"path", s.archiver.config.Path,
		"format", s.archiver.config.Format,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	res, err := s.archiver.Archive(ctx)
	s.mu.Lock()
	onRun := s.onRun
	s.mu.Unlock()
	if onRun != nil {
		onRun(res, err)
	}
	if err != nil {
		s.logger.Error("scheduled archiving failed", "error", err)
		return
	}
	if res.Entries == 0 {
		s.logger.Debug("scheduled archiving completed, nothing new")
	}
}

// Stop stops the scheduler and waits for a running archive to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("archive scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled archive time, or nil when unscheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
