// Package sched runs named jobs on fixed intervals with a non-overlap
// guarantee: a trigger that arrives while the previous run is still in
// flight is skipped, not queued.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one periodic unit of work. Run errors are logged and do not stop
// the schedule; only context cancellation does.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart fires the job once immediately instead of waiting a full
	// interval for the first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler drives jobs. One Scheduler can run any number of jobs, each on
// its own goroutine via Run.
type Scheduler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With(slog.String("component", "scheduler"))}
}

// Run blocks until ctx is cancelled, triggering job every job.Interval.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	return s.RunWithTicks(ctx, job, ticker.C)
}

// RunWithTicks is Run with an injected trigger channel, so the skip-if-
// running policy can be exercised without real timers. It returns once ctx
// is cancelled and any in-flight run has finished.
func (s *Scheduler) RunWithTicks(ctx context.Context, job Job, ticks <-chan time.Time) error {
	var running atomic.Bool
	var wg sync.WaitGroup

	trigger := func() {
		if !running.CompareAndSwap(false, true) {
			s.logger.Warn("cycle still running, skipping trigger", slog.String("job", job.Name))
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer running.Store(false)
			s.execute(ctx, job)
		}()
	}

	if job.RunOnStart {
		trigger()
	}
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticks:
			trigger()
		}
	}
}

// execute runs one cycle, converting a panic into a logged event so a bad
// cycle never takes the schedule down.
func (s *Scheduler) execute(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked",
				slog.String("job", job.Name),
				slog.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cycle failed",
			slog.String("job", job.Name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("cycle completed",
		slog.String("job", job.Name),
		slog.Duration("elapsed", time.Since(start)))
}
