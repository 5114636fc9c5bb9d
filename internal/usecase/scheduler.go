package usecase

import (
	"context"
	"log/slog"
	"time"

	"MailTracker/internal/ports"
)

// Scheduler wires the interval driver with the batch and sweep use cases.
// Both run on the driver's single goroutine so they never overlap.
type Scheduler struct {
	driver     ports.Scheduler
	pipeline   *Pipeline
	sweeper    *Sweeper
	settings   ports.Settings
	threshold  time.Duration
	sweepEvery time.Duration
	logger     *slog.Logger
}

// SchedulerDeps groups the collaborators of Scheduler.
type SchedulerDeps struct {
	Driver     ports.Scheduler
	Pipeline   *Pipeline
	Sweeper    *Sweeper
	Settings   ports.Settings
	Threshold  time.Duration
	SweepEvery time.Duration
	Logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		driver:     deps.Driver,
		pipeline:   deps.Pipeline,
		sweeper:    deps.Sweeper,
		settings:   deps.Settings,
		threshold:  deps.Threshold,
		sweepEvery: deps.SweepEvery,
		logger:     deps.Logger,
	}
}

// Start registers the jobs with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Tick(ctx, trigger)
	})
}

// Tick runs one batch and, when due, the stale sweep.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	if _, err := s.pipeline.Run(ctx); err != nil {
		s.logger.Error("scheduled batch failed", "error", err)
	}

	if s.sweeper == nil || !s.sweepDue(ctx, trigger) {
		return
	}
	if _, err := s.sweeper.Sweep(ctx, s.threshold); err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
	}
}

func (s *Scheduler) sweepDue(ctx context.Context, now time.Time) bool {
	if s.settings == nil || s.sweepEvery <= 0 {
		return true
	}
	raw, ok, err := s.settings.Get(ctx, SettingLastSweep)
	if err != nil {
		s.logger.Warn("read last sweep", "error", err)
		return false
	}
	if !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return now.Sub(last) >= s.sweepEvery
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
