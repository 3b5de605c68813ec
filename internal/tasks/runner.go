package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// TaskFunc executes the work behind a task and returns a result payload.
type TaskFunc func(ctx context.Context, task *Task) (string, error)

// RunnerConfig configures the task runner.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	Store     *Store
	Run       TaskFunc
	Logger    *slog.Logger
}

// Runner executes queued tasks on a fixed pool of workers. Tasks are
// referenced by document ID; each worker loads the task, marks it running,
// invokes the task function, and records the outcome.
type Runner struct {
	workers  int
	queue    chan string
	store    *Store
	run      TaskFunc
	logger   *slog.Logger
	inFlight atomic.Int64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner. Workers defaults to 2 and queue size to 64.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Run == nil {
		return nil, fmt.Errorf("task function is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		workers: cfg.Workers,
		queue:   make(chan string, cfg.QueueSize),
		store:   cfg.Store,
		run:     cfg.Run,
		logger:  logger.With("component", "task_runner"),
	}, nil
}

// Start launches the worker goroutines. It returns immediately.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.logger.Info("task runner started", "workers", r.workers, "queue_size", cap(r.queue))
}

// Stop signals workers to finish and waits for in-flight tasks.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Enqueue schedules a task for execution without blocking.
func (r *Runner) Enqueue(taskID string) error {
	select {
	case r.queue <- taskID:
		return nil
	default:
		return fmt.Errorf("task queue full (%d pending)", len(r.queue))
	}
}

// InFlight reports the number of tasks currently executing.
func (r *Runner) InFlight() int {
	return int(r.inFlight.Load())
}

// Pending reports the number of queued tasks not yet picked up.
func (r *Runner) Pending() int {
	return len(r.queue)
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case taskID := <-r.queue:
			r.inFlight.Add(1)
			r.execute(ctx, id, taskID)
			r.inFlight.Add(-1)
		}
	}
}

func (r *Runner) execute(ctx context.Context, workerID int, taskID string) {
	task, err := r.store.Get(ctx, taskID)
	if err != nil {
		r.logger.Error("failed to load task", "worker", workerID, "task_id", taskID, "error", err)
		return
	}

	r.store.MarkRunning(task)
	r.logger.Info("running task", "worker", workerID, "task_id", taskID, "name", task.Name)

	result, err := r.run(ctx, task)
	if err != nil {
		r.store.MarkFailed(task, err)
		r.logger.Error("task failed", "worker", workerID, "task_id", taskID, "error", err)
		return
	}

	r.store.MarkCompleted(task, result)
	r.logger.Info("task completed", "worker", workerID, "task_id", taskID)
}
