//go:build linux

// File: fake/handler_linux.go
// Author: momentics <momentics@gmail.com>
//
// PipeHandler is an EpollHandler over a non-blocking pipe, used to drive
// the scheduler and reactor from tests.

package fake

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
)

// PipeHandler reports the read end of a pipe and records every dispatch.
type PipeHandler struct {
	r, w int

	// Drain controls whether Dispatch consumes the readable bytes.
	Drain bool
	// OnDispatch, when set, runs inside Dispatch after recording.
	OnDispatch func(api.EventMask)

	mu     sync.Mutex
	events []api.EventMask
	read   []byte
	calls  chan api.EventMask
}

// NewPipeHandler creates the pipe pair.
func NewPipeHandler() (*PipeHandler, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &PipeHandler{r: p[0], w: p[1], Drain: true, calls: make(chan api.EventMask, 64)}, nil
}

func (h *PipeHandler) Fd() int { return h.r }

func (h *PipeHandler) Dispatch(events api.EventMask) {
	h.mu.Lock()
	h.events = append(h.events, events)
	if h.Drain {
		var buf [256]byte
		for {
			n, err := unix.Read(h.r, buf[:])
			if n <= 0 || err != nil {
				break
			}
			h.read = append(h.read, buf[:n]...)
		}
	}
	fn := h.OnDispatch
	h.mu.Unlock()
	if fn != nil {
		fn(events)
	}
	select {
	case h.calls <- events:
	default:
	}
}

// Calls delivers the mask of every Dispatch, best effort.
func (h *PipeHandler) Calls() <-chan api.EventMask { return h.calls }

// Write puts p into the pipe.
func (h *PipeHandler) Write(p []byte) error {
	_, err := unix.Write(h.w, p)
	return err
}

// CloseWriter closes the write end so the read end reports hangup.
func (h *PipeHandler) CloseWriter() error {
	if h.w < 0 {
		return nil
	}
	err := unix.Close(h.w)
	h.w = -1
	return err
}

// Dispatches returns the number of Dispatch calls so far.
func (h *PipeHandler) Dispatches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// Events returns a copy of the recorded masks.
func (h *PipeHandler) Events() []api.EventMask {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]api.EventMask(nil), h.events...)
}

// Read returns everything drained so far.
func (h *PipeHandler) Read() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.read...)
}

// Close closes both ends.
func (h *PipeHandler) Close() error {
	_ = h.CloseWriter()
	return unix.Close(h.r)
}
