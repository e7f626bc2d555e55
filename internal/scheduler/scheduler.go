package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task interface for scheduled tasks
type Task interface {
	Run(ctx context.Context) error
	Interval() time.Duration
	Name() string
}

// Scheduler runs tasks periodically, each on its own goroutine.
// Runs of one task never overlap; different tasks are independent.
type Scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     []Task
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a new task scheduler
func New(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make([]Task, 0),
	}
}

// AddTask adds a task to the scheduler. Tasks added after Start are not run.
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start begins running all scheduled tasks. Calling Start more than once,
// or after Stop, has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		if s.ctx.Err() != nil {
			return
		}
		for _, task := range s.tasks {
			s.wg.Add(1)
			go s.runTask(task)
		}
		slog.Debug("Task scheduler started", "task_count", len(s.tasks))
	})
}

// Stop cancels all tasks and waits for any run in flight to return.
// No task run starts after Stop returns. Stop is idempotent and may be
// called before Start. It must not be called from inside a task's Run;
// use Cancel there.
func (s *Scheduler) Stop() {
	s.Cancel()
	s.Wait()
}

// Cancel prevents any further run without waiting for the current one
func (s *Scheduler) Cancel() {
	s.stopOnce.Do(func() {
		s.cancel()
	})
}

// Wait blocks until every task goroutine has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Done is closed once the scheduler has been stopped
func (s *Scheduler) Done() <-chan struct{} {
	return s.ctx.Done()
}

// runTask runs a single task on its schedule
func (s *Scheduler) runTask(task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.run(task)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly between ready cases
			if s.ctx.Err() != nil {
				return
			}
			s.run(task)
		}
	}
}

func (s *Scheduler) run(task Task) {
	if err := task.Run(s.ctx); err != nil {
		slog.Error("Error running task", "task", task.Name(), "error", err)
	}
}
