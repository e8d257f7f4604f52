// File: plugins/drag/drag.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package drag implements the drag intention: one drag at a time, driven by
// Start and Stop, with per-caller state listeners.
package drag

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/internal/log"
)

// State is the drag state machine.
type State int32

const (
	StateStop State = iota
	StateStart
	StateCancel
)

func (s State) String() string {
	switch s {
	case StateStop:
		return "stop"
	case StateStart:
		return "start"
	case StateCancel:
		return "cancel"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Parameter ids for GetParam and SetParam.
const (
	ParamState         uint32 = 0 // GetParam: int32 State
	ParamShadowVisible uint32 = 1 // Get/SetParam: bool
	ParamResult        uint32 = 2 // GetParam: int32 Result of the last drag
)

// WatchState is the only watch kind: drag state transitions.
const WatchState uint32 = 0

// Notifier delivers drag events to callers. NotifyState runs once per
// listener on every transition; NotifyResult goes to the process that
// started the drag when it stops.
type Notifier interface {
	NotifyState(pid int32, handle uint32, state State)
	NotifyResult(pid int32, result Result)
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithNotifier routes listener notifications to n.
func WithNotifier(n Notifier) Option {
	return func(p *Plugin) { p.notifier = n }
}

// SetNotifier replaces the notifier after construction. Hosts that load the
// plugin from a shared object use it to attach their transport.
func (p *Plugin) SetNotifier(n Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Plugin) { p.log = l }
}

// Plugin serves api.IntentionDrag.
type Plugin struct {
	api.UnsupportedPlugin

	mu       sync.Mutex
	state    State
	owner    int32
	data     *DragData
	result   Result
	visible  bool
	watchers *arena

	notifier Notifier
	log      zerolog.Logger
}

// New returns an idle drag plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		visible:  true,
		watchers: newArena(),
		log:      log.WithComponent("drag"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins a drag described by a DragData body and replies int32 0.
func (p *Plugin) Start(ctx *api.CallingContext, data, reply *buffer.MessageBuffer) error {
	var dd DragData
	if err := dd.UnmarshalBuffer(data); err != nil {
		return fmt.Errorf("%w: drag data: %v", api.ErrInvalidParam, err)
	}
	if err := dd.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.state == StateStart {
		p.mu.Unlock()
		return api.NewError(api.CodeBusy, "drag already in progress").WithContext("owner", p.owner)
	}
	p.state = StateStart
	p.owner = ctx.PID
	p.data = &dd
	p.visible = true
	p.mu.Unlock()

	p.log.Debug().Int32(log.FieldPID, ctx.PID).Int32("drag_num", dd.DragNum).Msg("drag started")
	p.broadcast(StateStart)
	return reply.WriteInt32(0)
}

// Stop ends the current drag with a StopParam body.
func (p *Plugin) Stop(ctx *api.CallingContext, data, _ *buffer.MessageBuffer) error {
	var sp StopParam
	if err := sp.UnmarshalBuffer(data); err != nil {
		return fmt.Errorf("%w: stop param: %v", api.ErrInvalidParam, err)
	}

	p.mu.Lock()
	if p.state != StateStart {
		p.mu.Unlock()
		return api.NewError(api.CodeFail, "no drag in progress")
	}
	next := StateStop
	if sp.Result == ResultCancel {
		next = StateCancel
	}
	owner := p.owner
	p.state = next
	p.result = sp.Result
	p.data = nil
	n := p.notifier
	p.mu.Unlock()

	p.log.Debug().Int32(log.FieldPID, ctx.PID).Int32("result", int32(sp.Result)).Msg("drag stopped")
	p.broadcast(next)
	if n != nil {
		n.NotifyResult(owner, sp.Result)
	}
	return nil
}

// AddWatch registers the caller as a state listener and replies the
// uint32 handle that RemoveWatch takes.
func (p *Plugin) AddWatch(ctx *api.CallingContext, id uint32, _, reply *buffer.MessageBuffer) error {
	if id != WatchState {
		return fmt.Errorf("%w: watch kind %d", api.ErrInvalidParam, id)
	}
	h := p.watchers.add(ctx.PID)
	if err := reply.WriteUint32(h); err != nil {
		p.watchers.remove(h, ctx.PID)
		return err
	}
	return nil
}

// RemoveWatch drops the listener whose handle is the uint32 request body.
// Callers can only remove their own listeners.
func (p *Plugin) RemoveWatch(ctx *api.CallingContext, id uint32, data, _ *buffer.MessageBuffer) error {
	if id != WatchState {
		return fmt.Errorf("%w: watch kind %d", api.ErrInvalidParam, id)
	}
	h, err := data.ReadUint32()
	if err != nil {
		return fmt.Errorf("%w: watch handle: %v", api.ErrInvalidParam, err)
	}
	if !p.watchers.remove(h, ctx.PID) {
		return fmt.Errorf("%w: watch handle %d", api.ErrNotFound, h)
	}
	return nil
}

func (p *Plugin) SetParam(_ *api.CallingContext, id uint32, data, _ *buffer.MessageBuffer) error {
	if id != ParamShadowVisible {
		return fmt.Errorf("%w: drag param %d is read-only or unknown", api.ErrInvalidParam, id)
	}
	v, err := data.ReadBool()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidParam, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStart {
		return api.NewError(api.CodeFail, "no drag in progress")
	}
	p.visible = v
	return nil
}

func (p *Plugin) GetParam(_ *api.CallingContext, id uint32, _, reply *buffer.MessageBuffer) error {
	p.mu.Lock()
	state, visible, result := p.state, p.visible, p.result
	p.mu.Unlock()
	switch id {
	case ParamState:
		return reply.WriteInt32(int32(state))
	case ParamShadowVisible:
		return reply.WriteBool(visible)
	case ParamResult:
		return reply.WriteInt32(int32(result))
	default:
		return fmt.Errorf("%w: drag param %d", api.ErrInvalidParam, id)
	}
}

// State returns the current state.
func (p *Plugin) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns a copy of the active drag, or nil when idle.
func (p *Plugin) Current() *DragData {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil
	}
	cp := *p.data
	return &cp
}

// Watchers returns the number of registered listeners.
func (p *Plugin) Watchers() int {
	return p.watchers.len()
}

// DropCaller removes every listener owned by pid.
func (p *Plugin) DropCaller(pid int32) int {
	return p.watchers.removeOwner(pid)
}

// Close releases all listeners. The plugin is unusable afterwards.
func (p *Plugin) Close() {
	p.watchers.clear()
	p.mu.Lock()
	p.state = StateStop
	p.data = nil
	p.mu.Unlock()
}

// broadcast runs without p.mu held; notifiers may block on I/O.
func (p *Plugin) broadcast(s State) {
	p.mu.Lock()
	n := p.notifier
	p.mu.Unlock()
	if n == nil {
		return
	}
	for _, w := range p.watchers.snapshot() {
		n.NotifyState(w.pid, w.handle, s)
	}
}
