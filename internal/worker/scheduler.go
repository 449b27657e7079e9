package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context, now time.Time) error

// Scheduler runs jobs on cron specs. Runs of the same job never overlap.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	now  func() time.Time
}

// NewScheduler builds a scheduler whose jobs see ctx.
func NewScheduler(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		ctx: ctx,
		now: time.Now,
	}
}

// Add registers job under name. spec uses the standard five-field syntax or
// descriptors such as "@every 1h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	slog.Info("Job scheduled", "job", name, "spec", spec)
	return nil
}

// RunNow runs job once outside the schedule.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	if s.ctx.Err() != nil {
		return
	}
	start := s.now()
	if err := job(s.ctx, start); err != nil {
		slog.ErrorContext(s.ctx, "Scheduled job failed", "job", name, "error", err)
		return
	}
	slog.InfoContext(s.ctx, "Scheduled job complete", "job", name, "duration", time.Since(start))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("Scheduler stop timed out")
	}
}
