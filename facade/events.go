// File: facade/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/internal/log"
	"github.com/momentics/hioload-ipc/plugins/drag"
	"github.com/momentics/hioload-ipc/transport/socket"
)

// dragEvents pushes drag notifications to the caller's socket sessions.
// Events for callers without a session, or while no server runs, are dropped.
type dragEvents struct {
	server atomic.Pointer[socket.Server]
	log    zerolog.Logger
}

var _ drag.Notifier = (*dragEvents)(nil)

func (d *dragEvents) NotifyState(pid int32, handle uint32, state drag.State) {
	d.push(pid, protocol.MsgDragStateListener, drag.StateEvent{Handle: handle, State: state})
}

func (d *dragEvents) NotifyResult(pid int32, result drag.Result) {
	d.push(pid, protocol.MsgDragNotifyResult, drag.ResultEvent{Result: result})
}

func (d *dragEvents) push(pid int32, id protocol.MessageID, body buffer.Marshaler) {
	srv := d.server.Load()
	if srv == nil {
		return
	}
	if _, err := srv.Push(pid, id, body); err != nil {
		d.log.Debug().Err(err).Int32(log.FieldPID, pid).Str("message", id.String()).Msg("push not delivered")
	}
}

// notifierSink is implemented by plugins that report drag events.
type notifierSink interface {
	SetNotifier(drag.Notifier)
}

// configurePlugin attaches service collaborators to every new plugin instance.
func (s *Service) configurePlugin(in api.Intention, p api.Plugin) {
	if ns, ok := p.(notifierSink); ok {
		ns.SetNotifier(s.events)
		s.log.Debug().Str(log.FieldIntention, in.String()).Msg("drag events attached")
	}
}
