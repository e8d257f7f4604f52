// File: scheduler/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handler table and the per-handler parking goroutine.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/internal/log"
)

type handlerEntry struct {
	h      api.EpollHandler
	notify chan api.EventMask
	cancel context.CancelFunc
	done   chan struct{}
}

// AddEpollHandler registers h for one-shot edge-triggered read readiness and
// parks a goroutine that dispatches it. A second registration of the same fd
// fails and leaves the first one active.
func (s *Scheduler) AddEpollHandler(h api.EpollHandler) error {
	fd := h.Fd()
	if fd < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFd, fd)
	}
	if fd == s.waker.Fd() {
		return fmt.Errorf("%w: fd=%d", ErrAlreadyRegistered, fd)
	}

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.handlers[fd]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: fd=%d", ErrAlreadyRegistered, fd)
	}
	if err := s.poller.Add(fd); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(s.ctx)
	e := &handlerEntry{
		h:      h,
		notify: make(chan api.EventMask, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.handlers[fd] = e
	n := len(s.handlers)
	s.mu.Unlock()

	s.metrics.SetHandlers(n)
	go s.park(ctx, fd, e)
	s.log.Debug().Int(log.FieldFd, fd).Msg("handler added")
	return nil
}

// RemoveEpollHandler deregisters h's fd and cancels its parked goroutine.
// It may be called from h's own Dispatch.
func (s *Scheduler) RemoveEpollHandler(h api.EpollHandler) error {
	fd := h.Fd()
	s.mu.Lock()
	e, ok := s.handlers[fd]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: fd=%d", ErrNotRegistered, fd)
	}
	delete(s.handlers, fd)
	n := len(s.handlers)
	err := s.poller.Remove(fd)
	s.mu.Unlock()

	e.cancel()
	s.metrics.SetHandlers(n)
	// a descriptor closed before removal has already left the epoll set
	if err != nil && !errors.Is(err, syscall.EBADF) && !errors.Is(err, syscall.ENOENT) {
		return err
	}
	s.log.Debug().Int(log.FieldFd, fd).Msg("handler removed")
	return nil
}

// HandlerCount returns the number of registered handlers.
func (s *Scheduler) HandlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *Scheduler) park(ctx context.Context, fd int, e *handlerEntry) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case bits := <-e.notify:
			s.dispatch(fd, e.h, bits)
			if ctx.Err() != nil {
				return
			}
			if err := s.poller.Rearm(fd); err != nil {
				s.log.Warn().Err(err).Int(log.FieldFd, fd).Msg("rearm failed")
			}
		}
	}
}

func (s *Scheduler) dispatch(fd int, h api.EpollHandler, bits api.EventMask) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Int(log.FieldFd, fd).Msg("handler dispatch panicked")
		}
	}()
	h.Dispatch(bits)
}
