// Package scheduler runs the periodic background tasks. Each task runs
// under its own name and never overlaps with itself; distinct tasks run
// independently.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler with a process-local running set.
type Scheduler struct {
	cron     gocron.Scheduler
	recorder metrics.Recorder

	mu      sync.Mutex
	running map[string]struct{}
	baseCtx context.Context
}

func New(rec metrics.Recorder) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Scheduler{
		cron:     s,
		recorder: rec,
		running:  map[string]struct{}{},
		baseCtx:  context.Background(),
	}, nil
}

// RunExclusive runs fn unless a task with the same name is already running,
// in which case it returns false at once. Errors and panics from fn are
// logged and never propagate; a run that failed still reports true.
func (s *Scheduler) RunExclusive(ctx context.Context, name string, fn Task) (ran bool) {
	s.mu.Lock()
	if _, busy := s.running[name]; busy {
		s.mu.Unlock()
		slog.Debug("Task already running, skipping", logfields.Task(name))
		s.recorder.ObserveTask(name, 0, metrics.TaskSkipped)
		return false
	}
	s.running[name] = struct{}{}
	s.mu.Unlock()

	start := time.Now()
	outcome := metrics.TaskSuccess
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.TaskFailed
			slog.Error("Task panicked", logfields.Task(name), slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.recorder.ObserveTask(name, time.Since(start), outcome)
	}()

	ran = true
	if err := fn(ctx); err != nil {
		outcome = metrics.TaskFailed
		slog.Warn("Task failed", logfields.Task(name), logfields.Duration(time.Since(start)), logfields.Error(err))
	}
	return true
}

// Running reports whether a task with name is in progress.
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[name]
	return ok
}

// Every registers fn to run every interval under RunExclusive. The first run
// happens as soon as the scheduler starts.
func (s *Scheduler) Every(interval time.Duration, name string, fn Task) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.RunExclusive(s.context(), name, fn)
		}),
		gocron.WithName(name),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	slog.Debug("Task scheduled", logfields.Task(name), slog.Duration("interval", interval))
	return nil
}

// Start begins running the registered jobs. Tasks receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	slog.Info("Starting scheduler", logfields.Count(len(s.cron.Jobs())))
	s.cron.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}
