// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral poller interface.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-ipc/api"
)

// ErrUnsupportedPlatform is returned by constructors on platforms without epoll.
var ErrUnsupportedPlatform = errors.New("reactor: this platform is not supported")

// Event is one readiness record returned by Wait.
type Event struct {
	Fd     int
	Events api.EventMask
}

// Poller is a one-shot readiness demultiplexer. After an fd is reported it
// stays silent until Rearm is called for it.
type Poller interface {
	// Add registers fd for one-shot read readiness.
	Add(fd int) error

	// Rearm re-enables a one-shot registration after it fired.
	Rearm(fd int) error

	// Remove drops fd from the interest set.
	Remove(fd int) error

	// Wait blocks up to timeoutMs (negative = forever) and fills events.
	// An interrupted wait returns 0 events and no error.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases the poller descriptor.
	Close() error
}
