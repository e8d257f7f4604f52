// File: scheduler/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import "errors"

var (
	// ErrAlreadyRegistered is returned when the handler's fd is already in the table.
	ErrAlreadyRegistered = errors.New("scheduler: fd already registered")

	// ErrNotRegistered is returned when removing an fd that is not in the table.
	ErrNotRegistered = errors.New("scheduler: fd not registered")

	// ErrInvalidFd is returned for negative descriptors.
	ErrInvalidFd = errors.New("scheduler: invalid fd")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("scheduler: closed")

	// ErrTaskCancelled is the result of a task cancelled before it produced one.
	ErrTaskCancelled = errors.New("scheduler: task cancelled")

	// ErrTaskPanicked wraps a panic recovered from a task body.
	ErrTaskPanicked = errors.New("scheduler: task panicked")
)
