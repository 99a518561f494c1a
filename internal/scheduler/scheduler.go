// Package scheduler runs periodic jobs at a fixed rate.
//
// Each job owns one goroutine and one ticker. A run that outlasts its
// interval delays the next run instead of overlapping it; ticks missed in
// the meantime are dropped by the ticker. A job error is logged and counted,
// never fatal.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// Job is one periodic task.
type Job struct {
	Name       string
	Interval   time.Duration
	Run        func(ctx context.Context) error
	RunAtStart bool
}

// Runner owns a set of jobs.
type Runner struct {
	mu      sync.Mutex
	jobs    []Job
	started bool
	wg      sync.WaitGroup
}

// New returns an empty Runner.
func New() *Runner { return &Runner{} }

// Add registers j. Jobs must be added before Start.
func (r *Runner) Add(j Job) error {
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if j.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", j.Name)
	}
	if j.Run == nil {
		return fmt.Errorf("job %s: run func is required", j.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("job %s: runner already started", j.Name)
	}
	r.jobs = append(r.jobs, j)
	return nil
}

// Start launches every job. The jobs stop when ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	for _, j := range r.jobs {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx, j)
		}()
	}
	log.Info().Int("jobs", len(r.jobs)).Msg("scheduler started")
}

// Wait blocks until every job goroutine has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context, j Job) {
	if j.RunAtStart {
		runOnce(ctx, j)
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, j)
		}
	}
}

func runOnce(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	l := log.With().Str("job", j.Name).Logger()
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.JobRuns.WithLabelValues(j.Name, "panic").Inc()
			l.Error().Interface("panic", rec).Msg("job panicked")
		}
	}()
	if err := j.Run(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(j.Name, "error").Inc()
		l.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	metrics.JobRuns.WithLabelValues(j.Name, "ok").Inc()
	l.Debug().Dur("took", time.Since(start)).Msg("job done")
}
