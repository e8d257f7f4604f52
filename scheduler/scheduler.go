// File: scheduler/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler construction, the driver loop and shutdown.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/concurrency"
	"github.com/momentics/hioload-ipc/internal/log"
	"github.com/momentics/hioload-ipc/reactor"
)

// Options configures a Scheduler. Zero values select defaults; the
// default driver thread is locked to its goroutine but not bound to a CPU.
type Options struct {
	MaxEvents         int
	Workers           int
	BlockingWorkers   int
	BlockingKeepAlive time.Duration
	DriverCPU         *int // CPU the driver thread is bound to, nil for none
	Logger            *zerolog.Logger
	Metrics           *control.Metrics
}

// OptionsFromConfig maps the service configuration onto Options. A negative
// driver_cpu leaves the driver unpinned.
func OptionsFromConfig(cfg *control.Config) Options {
	opts := Options{
		MaxEvents:         cfg.MaxEvents,
		Workers:           cfg.Workers,
		BlockingWorkers:   cfg.BlockingWorkers,
		BlockingKeepAlive: cfg.BlockingKeepAlive,
	}
	if cfg.DriverCPU >= 0 {
		cpu := cfg.DriverCPU
		opts.DriverCPU = &cpu
	}
	return opts
}

// Scheduler owns one epoll instance, its driver thread and the task pools.
type Scheduler struct {
	poller reactor.Poller
	waker  *reactor.Waker

	mu       sync.Mutex
	handlers map[int]*handlerEntry

	running    atomic.Bool
	driverDone chan struct{}
	closeOnce  sync.Once

	ctx       context.Context
	cancelAll context.CancelFunc

	exec     *concurrency.Executor
	blocking *concurrency.BlockingPool

	tasksMu     sync.Mutex
	tasks       map[uint64]func()
	tasksClosed bool
	nextTask    atomic.Uint64

	driverCPU int // -1 when unpinned

	log     zerolog.Logger
	metrics *control.Metrics
}

var _ api.EpollRegistry = (*Scheduler)(nil)

// New creates the epoll instance, registers the waker and starts the driver.
func New(opts Options) (*Scheduler, error) {
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = 128
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	lg := log.WithComponent("scheduler")
	if opts.Logger != nil {
		lg = *opts.Logger
	}

	poller, err := reactor.NewPoller()
	if err != nil {
		return nil, err
	}
	waker, err := reactor.NewWaker()
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	if err := poller.Add(waker.Fd()); err != nil {
		_ = waker.Close()
		_ = poller.Close()
		return nil, fmt.Errorf("register waker: %w", err)
	}

	onPanic := func(r any) {
		lg.Error().Interface("panic", r).Msg("worker recovered from panic")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		poller:     poller,
		waker:      waker,
		handlers:   make(map[int]*handlerEntry),
		driverDone: make(chan struct{}),
		ctx:        ctx,
		cancelAll:  cancel,
		exec:       concurrency.NewExecutor(opts.Workers, onPanic),
		blocking:   concurrency.NewBlockingPool(opts.BlockingWorkers, opts.BlockingKeepAlive, onPanic),
		tasks:      make(map[uint64]func()),
		driverCPU:  -1,
		log:        lg,
		metrics:    opts.Metrics,
	}
	if opts.DriverCPU != nil && *opts.DriverCPU >= 0 {
		s.driverCPU = *opts.DriverCPU
	}
	s.running.Store(true)
	go s.drive(s.driverCPU, opts.MaxEvents)
	return s, nil
}

// drive is the only caller of Wait.
func (s *Scheduler) drive(cpu, maxEvents int) {
	defer close(s.driverDone)
	if err := concurrency.PinCurrentThread(cpu); err != nil {
		s.log.Warn().Err(err).Int("cpu", cpu).Msg("driver thread not pinned")
	}
	defer runtime.UnlockOSThread()

	events := make([]reactor.Event, maxEvents)
	wakeFd := s.waker.Fd()
	for s.running.Load() {
		n, err := s.poller.Wait(events, -1)
		if err != nil {
			s.log.Error().Err(err).Msg("epoll wait failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Fd == wakeFd {
				s.waker.Drain()
				if err := s.poller.Rearm(wakeFd); err != nil {
					s.log.Error().Err(err).Msg("waker rearm failed")
				}
				continue
			}
			if !s.running.Load() {
				return
			}
			s.notify(ev)
		}
	}
}

// notify hands the fired bits to the handler's parked goroutine.
func (s *Scheduler) notify(ev reactor.Event) {
	s.mu.Lock()
	e := s.handlers[ev.Fd]
	s.mu.Unlock()
	if e == nil {
		return
	}
	select {
	case e.notify <- ev.Events:
	default:
		// one-shot arming means at most one undelivered event per fd
		s.log.Debug().Int(log.FieldFd, ev.Fd).Msg("event dropped, previous one still pending")
	}
}

// Running reports whether Close has not yet been called.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Close stops the driver, cancels every handler and outstanding task, then
// releases the pools and descriptors. It must not be called from a handler's
// Dispatch or from a task body.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.running.Store(false)
		if werr := s.waker.Wake(); werr != nil {
			s.log.Error().Err(werr).Msg("wake driver for shutdown")
		}
		<-s.driverDone

		s.mu.Lock()
		entries := s.handlers
		s.handlers = make(map[int]*handlerEntry)
		s.mu.Unlock()
		for fd, e := range entries {
			_ = s.poller.Remove(fd)
			e.cancel()
		}
		for _, e := range entries {
			<-e.done
		}
		s.metrics.SetHandlers(0)

		s.cancelTasks()
		s.cancelAll()
		s.exec.Close()
		s.blocking.Close()

		err = errors.Join(s.poller.Close(), s.waker.Close())
		s.log.Debug().Int("handlers", len(entries)).Msg("scheduler closed")
	})
	return err
}

// Stats reports table and pool sizes for debug probes.
func (s *Scheduler) Stats() map[string]int64 {
	s.mu.Lock()
	handlers := len(s.handlers)
	s.mu.Unlock()
	s.tasksMu.Lock()
	tasks := len(s.tasks)
	s.tasksMu.Unlock()

	out := s.exec.Stats()
	out["handlers"] = int64(handlers)
	out["tracked_tasks"] = int64(tasks)
	out["blocking_workers"] = int64(s.blocking.Workers())
	out["driver_cpu"] = int64(s.driverCPU)
	return out
}

func (s *Scheduler) track(id uint64, cancel func()) bool {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if s.tasksClosed {
		return false
	}
	s.tasks[id] = cancel
	return true
}

func (s *Scheduler) untrack(id uint64) {
	s.tasksMu.Lock()
	delete(s.tasks, id)
	s.tasksMu.Unlock()
}

func (s *Scheduler) cancelTasks() {
	s.tasksMu.Lock()
	s.tasksClosed = true
	cancels := make([]func(), 0, len(s.tasks))
	for _, c := range s.tasks {
		cancels = append(cancels, c)
	}
	s.tasksMu.Unlock()
	for _, c := range cancels {
		c()
	}
}
