// Package mt provides the task manager nodes use to run work off the main
// driver loop. Work is submitted as discrete tasks; long loops are split into
// scopes and dispatched as parallel ranges. Nodes poll IsWorkComplete once per
// tick and treat it as the barrier between phases.
package mt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sanonone/pcgcluster/pkg/metrics"
	"golang.org/x/sync/semaphore"
)

// ErrCancelled is returned by Start and Wait once the manager was cancelled.
var ErrCancelled = errors.New("task manager cancelled")

// TaskStatus defines the possible states of a task.
type TaskStatus string

const (
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// Task is one unit of submitted work.
type Task struct {
	ID    string
	Name  string
	mu    sync.RWMutex
	state TaskStatus
	err   error
}

// Status returns the current state of the task.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err returns the error the task failed with, if any.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Task) setStatus(s TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *Task) setError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TaskStatusFailed
	t.err = err
}

// Scope is a half-open range [Start, Start+Count) of a chunked loop.
type Scope struct {
	Start int
	Count int
	// Loop is the index of this scope among its siblings.
	Loop int
}

// End returns the exclusive end of the scope.
func (s Scope) End() int { return s.Start + s.Count }

// Manager tracks all tasks started for one node execution.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	logger *slog.Logger

	wg      sync.WaitGroup
	pending atomic.Int64

	mu    sync.RWMutex
	tasks map[string]*Task
	errs  []error
}

// NewManager creates a manager running at most workers tasks at once.
// workers <= 0 uses GOMAXPROCS.
func NewManager(parent context.Context, workers int, logger *slog.Logger) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger,
		tasks:  make(map[string]*Task),
	}
}

// Context returns the manager's context; it is done after Cancel.
func (m *Manager) Context() context.Context { return m.ctx }

// Start submits fn. It returns ErrCancelled without scheduling anything once
// the manager has been cancelled.
func (m *Manager) Start(name string, fn func(ctx context.Context) error) (*Task, error) {
	if m.Cancelled() {
		return nil, ErrCancelled
	}

	task := &Task{ID: uuid.New().String(), Name: name, state: TaskStatusStarted}
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	m.pending.Add(1)
	m.wg.Add(1)
	metrics.TasksInFlight.Inc()

	go func() {
		defer func() {
			metrics.TasksInFlight.Dec()
			m.pending.Add(-1)
			m.wg.Done()
		}()

		if err := m.sem.Acquire(m.ctx, 1); err != nil {
			// Cancelled before the task got a worker.
			task.setStatus(TaskStatusSkipped)
			return
		}
		defer m.sem.Release(1)

		task.setStatus(TaskStatusRunning)
		if err := m.run(fn); err != nil {
			task.setError(err)
			m.mu.Lock()
			m.errs = append(m.errs, fmt.Errorf("task %s (%s): %w", task.Name, task.ID, err))
			m.mu.Unlock()
			m.logger.Warn("[MT] Task failed", "task", task.Name, "id", task.ID, "error", err)
			return
		}
		task.setStatus(TaskStatusCompleted)
	}()

	return task, nil
}

func (m *Manager) run(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(m.ctx)
}

// StartRanges splits [0, total) into scopes of chunkSize and starts one task
// per scope.
func (m *Manager) StartRanges(name string, total, chunkSize int, fn func(scope Scope) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 256
	}
	loop := 0
	for start := 0; start < total; start += chunkSize {
		scope := Scope{Start: start, Count: min(chunkSize, total-start), Loop: loop}
		loop++
		if _, err := m.Start(name, func(context.Context) error { return fn(scope) }); err != nil {
			return err
		}
	}
	return nil
}

// ParallelFor runs fn for each index in [0, total), chunked.
func (m *Manager) ParallelFor(name string, total, chunkSize int, fn func(i int)) error {
	return m.StartRanges(name, total, chunkSize, func(scope Scope) error {
		for i := scope.Start; i < scope.End(); i++ {
			fn(i)
		}
		return nil
	})
}

// IsWorkComplete reports whether every submitted task has returned.
func (m *Manager) IsWorkComplete() bool {
	return m.pending.Load() == 0
}

// Wait blocks until every submitted task has returned and reports the task
// failures collected so far.
func (m *Manager) Wait() error {
	m.wg.Wait()
	if m.Cancelled() {
		return ErrCancelled
	}
	return m.Err()
}

// Err joins the errors of failed tasks.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return errors.Join(m.errs...)
}

// Cancel stops the manager from accepting new tasks. Running tasks are
// allowed to finish their current unit.
func (m *Manager) Cancel() {
	m.cancel()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (m *Manager) Cancelled() bool {
	return m.ctx.Err() != nil
}

// GetTask safely retrieves a task by its ID.
func (m *Manager) GetTask(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Reset forgets finished tasks and their errors. Call only between phases.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make(map[string]*Task)
	m.errs = nil
}
