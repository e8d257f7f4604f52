//go:build linux

// File: reactor/waker_linux.go
// Author: momentics <momentics@gmail.com>
//
// Self-pipe used to interrupt a blocked Wait.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Waker is a non-blocking pipe whose read end is registered with a Poller.
type Waker struct {
	r, w int
}

// NewWaker creates the pipe pair.
func NewWaker() (*Waker, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("waker pipe: %w", err)
	}
	return &Waker{r: p[0], w: p[1]}, nil
}

// Fd returns the read end.
func (w *Waker) Fd() int { return w.r }

// Wake makes the read end readable. A full pipe already guarantees a wakeup.
func (w *Waker) Wake() error {
	_, err := unix.Write(w.w, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("waker write: %w", err)
	}
	return nil
}

// Drain consumes all pending wake bytes.
func (w *Waker) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close closes both ends.
func (w *Waker) Close() error {
	errR := unix.Close(w.r)
	errW := unix.Close(w.w)
	if errR != nil {
		return errR
	}
	return errW
}
