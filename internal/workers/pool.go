// Package workers runs CPU-bound work (model loading, inference) on a bounded set of
// goroutines so request handlers only wait for a result.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned when work is submitted after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task is a named unit of work.
type Task struct {
	Name string
	Run  func()
}

// Pool is a fixed-size worker pool fed by a buffered queue.
type Pool struct {
	name        string
	workers     []*Worker
	tasks       chan Task
	activeCount atomic.Int32

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Worker is one pool goroutine.
type Worker struct {
	id          int
	state       string // "idle", "busy", "stopped"
	currentTask string
	startedAt   *time.Time
	mu          sync.RWMutex
}

// WorkerStatus is a snapshot of a worker for diagnostics.
type WorkerStatus struct {
	ID          int        `json:"id"`
	State       string     `json:"state"`
	CurrentTask string     `json:"current_task,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// NewPool starts numWorkers goroutines draining a queue of queueSize tasks.
func NewPool(name string, numWorkers, queueSize int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &Pool{
		name:    name,
		workers: make([]*Worker, numWorkers),
		tasks:   make(chan Task, queueSize),
	}

	for i := 0; i < numWorkers; i++ {
		worker := &Worker{id: i, state: "idle"}
		pool.workers[i] = worker

		pool.wg.Add(1)
		go pool.runWorker(worker)
	}

	log.Debug().Str("pool", name).Int("workers", numWorkers).Int("queue", queueSize).Msg("worker pool started")
	return pool
}

// Go enqueues a task, blocking until there is room in the queue or ctx is done.
// Once enqueued, a task runs to completion even if ctx is cancelled afterwards.
func (p *Pool) Go(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryGo enqueues a task without blocking. It reports false when the queue is full
// or the pool is shut down.
func (p *Pool) TryGo(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Submit runs fn on the pool and waits for its result. If ctx ends first Submit
// returns ctx.Err(); fn still runs and its result is dropped.
func Submit[T any](ctx context.Context, p *Pool, name string, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	var zero T
	done := make(chan outcome, 1)

	err := p.Go(ctx, Task{Name: name, Run: func() {
		v, err := fn()
		done <- outcome{value: v, err: err}
	}})
	if err != nil {
		return zero, err
	}

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (p *Pool) runWorker(worker *Worker) {
	defer p.wg.Done()

	for task := range p.tasks {
		worker.startTask(task.Name)
		p.activeCount.Add(1)

		p.execute(task)

		worker.finishTask()
		p.activeCount.Add(-1)
	}

	worker.setState("stopped")
}

func (p *Pool) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("pool", p.name).
				Str("task", task.Name).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("Task panicked")
		}
	}()
	task.Run()
}

// ActiveCount returns the number of workers currently running a task.
func (p *Pool) ActiveCount() int {
	return int(p.activeCount.Load())
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.tasks)
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// WorkerStatus returns a snapshot of every worker.
func (p *Pool) WorkerStatus() []WorkerStatus {
	status := make([]WorkerStatus, len(p.workers))
	for i, worker := range p.workers {
		worker.mu.RLock()
		status[i] = WorkerStatus{
			ID:          worker.id,
			State:       worker.state,
			CurrentTask: worker.currentTask,
			StartedAt:   worker.startedAt,
		}
		worker.mu.RUnlock()
	}
	return status
}

// Shutdown stops accepting tasks, drains the queue and waits for the workers.
// It returns ctx.Err() if the drain does not finish in time.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Str("pool", p.name).Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) startTask(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.state = "busy"
	w.currentTask = name
	w.startedAt = &now
}

func (w *Worker) finishTask() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = "idle"
	w.currentTask = ""
	w.startedAt = nil
}

func (w *Worker) setState(state string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}
