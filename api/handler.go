// File: api/handler.go
// Package api defines the fd-bearing event source contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventMask is the set of readiness bits delivered to an EpollHandler.
type EventMask uint32

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Has reports whether all bits of other are set.
func (m EventMask) Has(other EventMask) bool {
	return m&other == other
}

// EpollHandler is an event source driven by the scheduler. Registration is
// one-shot: after Dispatch returns the scheduler re-arms the fd, so Dispatch
// must drain whatever made the fd ready.
type EpollHandler interface {
	Fd() int
	Dispatch(events EventMask)
}

// EpollRegistry is the registration surface the scheduler exposes to
// collaborators.
type EpollRegistry interface {
	AddEpollHandler(h EpollHandler) error
	RemoveEpollHandler(h EpollHandler) error
}
