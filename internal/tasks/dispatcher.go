// File path: internal/tasks/dispatcher.go
package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/sethvargo/go-retry"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/config"
)

// Task is a unit of deferred work. Tasks must honour ctx cancellation.
type Task func(ctx context.Context) error

var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)

type job struct {
	name string
	task Task
}

// Dispatcher runs submitted tasks on a bounded worker pool with retries.
// Classification after upload and retry-sweep work both go through it so the
// API never blocks on AI calls.
type Dispatcher struct {
	cfg    config.Provider
	queue  chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewDispatcher starts workers immediately. queueSize bounds how much work
// may be pending before Submit rejects.
func NewDispatcher(workers, queueSize int, cfg config.Provider) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		queue:  make(chan job, queueSize),
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	common.Logger().Info("tasks: dispatcher started", "workers", workers, "queue_size", queueSize)
	return d
}

// Submit queues a task. It never blocks: a full queue returns ErrQueueFull.
func (d *Dispatcher) Submit(name string, task Task) error {
	if d == nil || task == nil {
		return ErrStopped
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- job{name: name, task: task}:
		return nil
	default:
		common.Logger().Warn("tasks: queue full, rejecting task", "task", name)
		return ErrQueueFull
	}
}

// Shutdown stops accepting work, waits for queued tasks to drain, then
// cancels the worker context. Waiting is bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	defer d.cancel()
	select {
	case <-done:
		common.Logger().Info("tasks: dispatcher drained")
		return nil
	case <-ctx.Done():
		common.Logger().Warn("tasks: dispatcher shutdown timed out")
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(ctx, j)
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	logger := common.Logger()
	settings := d.cfg.Current()
	backoff := retry.NewFibonacci(settings.TaskBackoff)
	attempts := 0
	err := retry.Do(ctx, retry.WithMaxRetries(settings.TaskRetries, backoff), func(ctx context.Context) error {
		attempts++
		if err := j.task(ctx); err != nil {
			logger.Warn("tasks: task attempt failed", "task", j.name, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		logger.Error("tasks: task failed after retries", "task", j.name, "attempts", attempts, "error", err)
		return
	}
	logger.Debug("tasks: task completed", "task", j.name, "attempts", attempts)
}
