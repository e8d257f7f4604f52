// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches short tasks across worker goroutines using per-worker
// lock-free queues, an unbounded overflow backlog and work stealing. Idle
// workers park on a wake channel instead of spinning.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

const localQueueSize = 1024

// Executor manages a fixed pool of worker goroutines.
type Executor struct {
	locals []*LockFreeQueue[TaskFunc]
	wake   []chan struct{}

	backlogMu sync.Mutex
	backlog   *queue.Queue // TaskFunc overflow when a local queue is full

	next    atomic.Uint64
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	onPanic func(any)

	submitted atomic.Int64
	completed atomic.Int64
}

// NewExecutor starts numWorkers workers; numWorkers <= 0 defaults to runtime.NumCPU().
// onPanic, if non-nil, receives values recovered from panicking tasks.
func NewExecutor(numWorkers int, onPanic func(any)) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		locals:  make([]*LockFreeQueue[TaskFunc], numWorkers),
		wake:    make([]chan struct{}, numWorkers),
		backlog: queue.New(),
		closeCh: make(chan struct{}),
		onPanic: onPanic,
	}
	for i := range e.locals {
		e.locals[i] = NewLockFreeQueue[TaskFunc](localQueueSize)
		e.wake[i] = make(chan struct{}, 1)
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.run(i)
	}
	return e
}

// Submit enqueues a task. It never blocks; it fails only after Close.
func (e *Executor) Submit(task TaskFunc) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	e.submitted.Add(1)
	idx := int(e.next.Add(1) % uint64(len(e.locals)))
	if !e.locals[idx].Enqueue(task) {
		e.backlogMu.Lock()
		e.backlog.Add(task)
		e.backlogMu.Unlock()
	}
	// The neighbour steals if the owner is busy.
	e.signal(idx)
	e.signal((idx + 1) % len(e.locals))
	return nil
}

func (e *Executor) signal(idx int) {
	select {
	case e.wake[idx] <- struct{}{}:
	default:
	}
}

// NumWorkers returns the worker count.
func (e *Executor) NumWorkers() int {
	return len(e.locals)
}

// Stats returns basic executor counters.
func (e *Executor) Stats() map[string]int64 {
	submitted, completed := e.submitted.Load(), e.completed.Load()
	return map[string]int64{
		"submitted_tasks": submitted,
		"completed_tasks": completed,
		"pending_tasks":   submitted - completed,
		"num_workers":     int64(e.NumWorkers()),
	}
}

// Close stops all workers and waits for them to exit. Tasks still queued are dropped.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
	}
}

func (e *Executor) run(id int) {
	defer e.wg.Done()
	for {
		select {
		case <-e.closeCh:
			return
		default:
		}
		if task, ok := e.take(id); ok {
			e.safeExecute(task)
			continue
		}
		select {
		case <-e.wake[id]:
		case <-e.closeCh:
			return
		}
	}
}

// take looks at the own queue, then the backlog, then steals from siblings.
func (e *Executor) take(id int) (TaskFunc, bool) {
	if task, ok := e.locals[id].Dequeue(); ok {
		return task, true
	}
	e.backlogMu.Lock()
	if e.backlog.Length() > 0 {
		task := e.backlog.Remove().(TaskFunc)
		e.backlogMu.Unlock()
		return task, true
	}
	e.backlogMu.Unlock()
	for i := 1; i < len(e.locals); i++ {
		if task, ok := e.locals[(id+i)%len(e.locals)].Dequeue(); ok {
			return task, true
		}
	}
	return nil, false
}

func (e *Executor) safeExecute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
		e.completed.Add(1)
	}()
	task()
}
