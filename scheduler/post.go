// File: scheduler/post.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task submission surface.

package scheduler

import (
	"context"
	"sync"
	"time"
)

// PostSyncTask runs f on the calling goroutine and returns its result.
func PostSyncTask[R any](s *Scheduler, f func(context.Context) (R, error)) (R, error) {
	if !s.running.Load() {
		var zero R
		return zero, ErrClosed
	}
	v, err := invoke(s.ctx, f)
	s.metrics.ObserveTask("sync", outcome(err))
	return v, err
}

// PostAsyncTask schedules f on the lightweight worker pool immediately.
func PostAsyncTask[R any](s *Scheduler, f func(context.Context) (R, error)) *TaskHandle[R] {
	h := newHandle[R](s, "async")
	if h.settled() {
		return h
	}
	if err := s.exec.Submit(func() { h.run(f) }); err != nil {
		var zero R
		h.finish(zero, ErrClosed)
	}
	return h
}

// PostDelayedTask schedules f to run on the worker pool once delay has elapsed.
func PostDelayedTask[R any](s *Scheduler, f func(context.Context) (R, error), delay time.Duration) *TaskHandle[R] {
	h := newHandle[R](s, "delayed")
	if h.settled() {
		return h
	}
	t := time.AfterFunc(delay, func() {
		if err := s.exec.Submit(func() { h.run(f) }); err != nil {
			var zero R
			h.finish(zero, ErrClosed)
		}
	})
	h.setStop(func() { t.Stop() })
	return h
}

// PostBlockingTask runs f on the blocking pool, apart from the lightweight workers.
func PostBlockingTask[R any](s *Scheduler, f func(context.Context) (R, error)) *TaskHandle[R] {
	h := newHandle[R](s, "blocking")
	if h.settled() {
		return h
	}
	if err := s.blocking.Submit(func() { h.run(f) }); err != nil {
		var zero R
		h.finish(zero, ErrClosed)
	}
	return h
}

// PostPeriodicTask runs f after delay and then every interval. With repeat
// > 0 the task finishes after that many runs; with repeat == 0 it runs until
// cancelled. An error from f stops the task and becomes its result.
// Runs never overlap; the interval is measured from the end of a run.
func PostPeriodicTask(s *Scheduler, f func(context.Context) error, delay, interval time.Duration, repeat int) *TaskHandle[struct{}] {
	h := newHandle[struct{}](s, "periodic")
	if h.settled() {
		return h
	}
	p := &periodic{s: s, h: h, f: f, interval: interval, repeat: repeat}
	h.setStop(p.disarm)
	p.arm(delay)
	return h
}

type periodic struct {
	s        *Scheduler
	h        *TaskHandle[struct{}]
	f        func(context.Context) error
	interval time.Duration
	repeat   int
	runs     int // touched only by the current run

	mu    sync.Mutex
	timer *time.Timer
}

func (p *periodic) arm(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.h.settled() {
		return
	}
	p.timer = time.AfterFunc(d, p.fire)
}

func (p *periodic) disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (p *periodic) fire() {
	if err := p.s.exec.Submit(p.iterate); err != nil {
		p.h.finish(struct{}{}, ErrClosed)
	}
}

func (p *periodic) iterate() {
	if p.h.settled() {
		return
	}
	p.h.state.CompareAndSwap(statePending, stateRunning)
	_, err := invoke(p.h.ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.f(ctx)
	})
	if err != nil {
		p.h.finish(struct{}{}, err)
		return
	}
	p.runs++
	if p.repeat > 0 && p.runs >= p.repeat {
		p.h.finish(struct{}{}, nil)
		return
	}
	p.arm(p.interval)
}
