// Package worker runs background jobs on a bounded goroutine pool and keeps
// every submission observable as a Task.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/rocketscienceinc/botarena/internal/apperror"
)

const defaultReleaseTimeout = 5 * time.Second

var ErrPoolClosed = errors.New("worker pool is closed")

// Job is the body of a task. It must return promptly once ctx is done.
type Job func(ctx context.Context) error

type queued struct {
	task *Task
	job  Job
}

// Pool keeps pending tasks in its own FIFO queue. At most size drainers run on the
// ants pool at once; each one takes tasks off the queue until it is empty.
type Pool struct {
	logger *slog.Logger
	pool   *ants.Pool
	size   int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	tasks   map[string]*Task
	order   []*Task
	pending []queued
	active  int
	closed  bool
}

type antsLogger struct {
	logger *slog.Logger
}

func (that antsLogger) Printf(format string, args ...any) {
	that.logger.Warn(fmt.Sprintf(format, args...))
}

func NewPool(logger *slog.Logger, size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: pool size must be positive", apperror.ErrInvalidConfiguration)
	}

	log := logger.With("component", "worker")

	pool, err := ants.NewPool(size, ants.WithLogger(antsLogger{logger: log}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		logger: log,
		pool:   pool,
		size:   size,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*Task),
	}, nil
}

// Submit - registers a pending task and queues it. It never waits for a job to finish.
func (that *Pool) Submit(name string, job Job) (*Task, error) {
	that.mu.Lock()

	if that.closed {
		that.mu.Unlock()
		return nil, ErrPoolClosed
	}

	ctx, cancel := context.WithCancel(that.ctx)
	task := &Task{
		ID:        uuid.New().String(),
		Name:      name,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusPending,
		createdAt: time.Now(),
	}

	that.tasks[task.ID] = task
	that.order = append(that.order, task)
	that.pending = append(that.pending, queued{task: task, job: job})

	spawn := that.active < that.size
	if spawn {
		that.active++
	}

	that.mu.Unlock()

	if spawn {
		that.spawn()
	}

	return task, nil
}

func (that *Pool) Get(id string) (*Task, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	task, ok := that.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", apperror.ErrNotFound, id)
	}

	return task, nil
}

// List - returns every task in submission order.
func (that *Pool) List() []*Task {
	that.mu.RLock()
	defer that.mu.RUnlock()

	tasks := make([]*Task, len(that.order))
	copy(tasks, that.order)

	return tasks
}

// Pending - returns the number of tasks waiting for a worker.
func (that *Pool) Pending() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.pending)
}

// Shutdown - cancels every task and waits for running ones until ctx expires.
func (that *Pool) Shutdown(ctx context.Context) error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	dropped := that.pending
	that.pending = nil
	that.mu.Unlock()

	that.cancel()

	for _, item := range dropped {
		item.task.finish(StatusCanceled, ErrPoolClosed)
	}

	timeout := defaultReleaseTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if err := that.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("failed to release worker pool: %w", err)
	}

	return nil
}

// spawn - starts one drainer. active already counts it, so the ants pool always has
// a worker for it, at worst one that is just being returned by an exiting drainer.
func (that *Pool) spawn() {
	if err := that.pool.Submit(that.drain); err != nil {
		that.logger.Warn("drainer was not scheduled", "error", err)

		that.mu.Lock()
		that.active--
		dropped := that.pending
		if that.active == 0 {
			that.pending = nil
		} else {
			dropped = nil
		}
		that.mu.Unlock()

		for _, item := range dropped {
			item.task.finish(StatusCanceled, fmt.Errorf("failed to schedule task: %w", err))
		}
	}
}

// drain - runs queued tasks until the queue is empty. The empty check and the
// active decrement share one lock with Submit, so no task is left without a drainer.
func (that *Pool) drain() {
	for {
		that.mu.Lock()
		if len(that.pending) == 0 {
			that.active--
			that.mu.Unlock()
			return
		}

		item := that.pending[0]
		that.pending[0] = queued{}
		that.pending = that.pending[1:]
		that.mu.Unlock()

		that.run(item.task, item.job)
	}
}

func (that *Pool) run(task *Task, job Job) {
	log := that.logger.With("task", task.ID, "name", task.Name)

	if task.ctx.Err() != nil {
		task.finish(StatusCanceled, task.ctx.Err())
		return
	}

	if !task.start() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r)
			task.finish(StatusFailed, fmt.Errorf("task panicked: %v", r))
		}
	}()

	log.Debug("task started")

	err := job(task.ctx)

	switch {
	case err == nil:
		log.Debug("task done")
		task.finish(StatusDone, nil)
	case task.ctx.Err() != nil:
		log.Info("task canceled", "error", err)
		task.finish(StatusCanceled, err)
	default:
		log.Error("task failed", "error", err)
		task.finish(StatusFailed, err)
	}
}
