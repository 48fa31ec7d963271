// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs registered jobs on fixed intervals.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	opts = append([]gocron.SchedulerOption{gocron.WithLogger(logger)}, opts...)
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler, logger: logger}, nil
}

// RegisterIntervalJob runs job every interval, starting immediately.
func (s *Scheduler) RegisterIntervalJob(interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.name)
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runFunc(job)),
		gocron.WithName(job.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	return err
}

func (s *Scheduler) runFunc(job Job) func(ctx context.Context) {
	return func(ctx context.Context) {
		log := s.logger.With("job", job.name)
		startedAt := time.Now()

		if err := job.Run(ctx); err != nil {
			log.Warn("job_failed", "elapsed", time.Since(startedAt), "error", err)
			return
		}
		log.Debug("job_finished", "elapsed", time.Since(startedAt))
	}
}

// Start begins executing jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("job scheduler starting", "jobs", len(s.scheduler.Jobs()))
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	s.logger.Info("job scheduler shutting down")
	return s.scheduler.Shutdown()
}
