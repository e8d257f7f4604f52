//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

// NewPoller returns an error for unsupported platforms.
func NewPoller() (Poller, error) {
	return nil, ErrUnsupportedPlatform
}

// Waker is unavailable off Linux.
type Waker struct{}

// NewWaker returns an error for unsupported platforms.
func NewWaker() (*Waker, error) {
	return nil, ErrUnsupportedPlatform
}

func (w *Waker) Fd() int      { return -1 }
func (w *Waker) Wake() error  { return ErrUnsupportedPlatform }
func (w *Waker) Drain()       {}
func (w *Waker) Close() error { return nil }
