// File: scheduler/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TaskHandle tracks one scheduled task from submission to result.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-ipc/internal/log"
)

const (
	statePending int32 = iota
	stateRunning
	stateFinished
)

// TaskHandle is the caller's side of a scheduled task.
type TaskHandle[R any] struct {
	s      *Scheduler
	id     uint64
	kind   string
	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	detached atomic.Bool

	mu   sync.Mutex
	stop func() // disarms a pending timer

	once sync.Once
	done chan struct{}
	val  R
	err  error
}

func newHandle[R any](s *Scheduler, kind string) *TaskHandle[R] {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &TaskHandle[R]{
		s:      s,
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		id:     s.nextTask.Add(1),
	}
	if !s.track(h.id, h.Cancel) {
		var zero R
		h.finish(zero, ErrClosed)
	}
	return h
}

// Result blocks until the task finishes or is cancelled. A cancelled task
// reports ErrTaskCancelled whatever its body returned.
func (h *TaskHandle[R]) Result() (R, error) {
	<-h.done
	return h.val, h.err
}

// Done is closed once Result stops blocking.
func (h *TaskHandle[R]) Done() <-chan struct{} {
	return h.done
}

// Cancel requests cancellation. A task that has not started never runs; a
// running task sees its context cancelled and its result is discarded.
func (h *TaskHandle[R]) Cancel() {
	h.cancel()
	h.mu.Lock()
	stop := h.stop
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
	var zero R
	h.finish(zero, ErrTaskCancelled)
}

// Detach gives up interest in the result. The task keeps running; a failure
// is logged instead of being held for Result. Close still cancels it.
func (h *TaskHandle[R]) Detach() {
	h.detached.Store(true)
}

func (h *TaskHandle[R]) setStop(fn func()) {
	h.mu.Lock()
	h.stop = fn
	h.mu.Unlock()
}

// begin moves a pending task to running. It fails once the handle is settled.
func (h *TaskHandle[R]) begin() bool {
	return h.state.CompareAndSwap(statePending, stateRunning)
}

func (h *TaskHandle[R]) settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *TaskHandle[R]) finish(v R, err error) {
	h.once.Do(func() {
		h.state.Store(stateFinished)
		h.val, h.err = v, err
		close(h.done)
		h.cancel()
		h.s.untrack(h.id)
		h.s.metrics.ObserveTask(h.kind, outcome(err))
		if err != nil && h.detached.Load() && !errors.Is(err, ErrTaskCancelled) {
			h.s.log.Warn().Err(err).Str(log.FieldTask, h.kind).Msg("detached task failed")
		}
	})
}

// run executes f once unless the handle was settled first.
func (h *TaskHandle[R]) run(f func(context.Context) (R, error)) {
	if !h.begin() {
		return
	}
	v, err := invoke(h.ctx, f)
	h.finish(v, err)
}

func invoke[R any](ctx context.Context, f func(context.Context) (R, error)) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return f(ctx)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTaskCancelled):
		return "cancelled"
	case errors.Is(err, ErrTaskPanicked):
		return "panic"
	default:
		return "error"
	}
}
