// Package scheduler runs periodic maintenance jobs such as expiring
// abandoned fuel reservations.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Task is a named job run every Interval.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(context.Context) error
}

// Scheduler runs tasks on their own tickers until stopped.
type Scheduler struct {
	logger  *slog.Logger
	tasks   []Task
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{logger: logger}
}

// AddTask registers a task; tasks added after Start are not run.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Fn: fn})
}

// Start launches every task. Each runs once immediately and then on its interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.logger.Warn("scheduler task skipped", slog.String("task", task.Name), slog.Duration("interval", task.Interval))
			continue
		}
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
	s.logger.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
}

// Stop cancels all tasks and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.execute(ctx, task)
	for {
		select {
		case <-ticker.C:
			s.execute(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	start := time.Now()
	if err := task.Fn(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled task failed", slog.String("task", task.Name), slog.Any("error", err))
		return
	}
	s.logger.Debug("scheduled task finished", slog.String("task", task.Name), slog.Duration("duration", time.Since(start)))
}
