// Package scheduler triggers periodic pipeline runs when the service is
// deployed as a long-running daemon rather than a one-shot job.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context)

// Scheduler runs the pipeline on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	run       RunFunc
	logger    *slog.Logger
}

// New creates a Scheduler firing run every interval.
func New(interval time.Duration, run RunFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		run:       run,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler
// asynchronously. Overlapping runs are prevented: a tick that fires while a
// run is still in progress is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.scheduler.SingletonModeAll()

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.logger.Info("scheduled run starting", "interval", s.interval)
		s.run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
