package worker

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsFinal - reports whether a task in this status will never change again.
func (that Status) IsFinal() bool {
	return that == StatusDone || that == StatusFailed || that == StatusCanceled
}

// Task is one unit of background work. It is safe for concurrent use.
type Task struct {
	ID   string
	Name string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	status     Status
	err        error
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// TaskInfo is a point-in-time copy of a task, ready for JSON.
type TaskInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (that *Task) Status() Status {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.status
}

func (that *Task) Err() error {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.err
}

// Cancel - asks the task to stop. A pending task never starts.
func (that *Task) Cancel() {
	that.cancel()

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status == StatusPending {
		that.finishLocked(StatusCanceled, context.Canceled)
	}
}

// Wait - blocks until the task is final or ctx is done.
func (that *Task) Wait(ctx context.Context) error {
	select {
	case <-that.done:
		return that.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done - is closed once the task reaches a final status.
func (that *Task) Done() <-chan struct{} {
	return that.done
}

func (that *Task) Info() TaskInfo {
	that.mu.RLock()
	defer that.mu.RUnlock()

	info := TaskInfo{
		ID:        that.ID,
		Name:      that.Name,
		Status:    that.status,
		CreatedAt: that.createdAt,
	}

	if that.err != nil {
		info.Error = that.err.Error()
	}

	if !that.startedAt.IsZero() {
		startedAt := that.startedAt
		info.StartedAt = &startedAt
	}

	if !that.finishedAt.IsZero() {
		finishedAt := that.finishedAt
		info.FinishedAt = &finishedAt
	}

	return info
}

func (that *Task) start() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != StatusPending {
		return false
	}

	that.status = StatusRunning
	that.startedAt = time.Now()

	return true
}

func (that *Task) finish(status Status, err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.finishLocked(status, err)
}

func (that *Task) finishLocked(status Status, err error) {
	if that.status.IsFinal() {
		return
	}

	that.status = status
	that.err = err
	that.finishedAt = time.Now()
	that.cancel()
	close(that.done)
}
