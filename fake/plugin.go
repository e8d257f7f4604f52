// File: fake/plugin.go
// Author: momentics <momentics@gmail.com>
//
// RecordingPlugin remembers every action it receives.

package fake

import (
	"sync"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
)

// Call is one recorded plugin invocation.
type Call struct {
	Action api.Action
	ID     uint32
	Caller api.CallingContext
	Data   []byte // unread request bytes at entry
}

// RecordingPlugin records calls and answers with Err. When Reply is set it
// is written into the reply buffer of every successful call.
type RecordingPlugin struct {
	Err   error
	Reply []byte

	mu        sync.Mutex
	calls     []Call
	destroyed bool
}

var _ api.Plugin = (*RecordingPlugin)(nil)

func (p *RecordingPlugin) record(a api.Action, ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{
		Action: a,
		ID:     id,
		Caller: *ctx,
		Data:   append([]byte(nil), data.Unread()...),
	})
	p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.Reply != nil {
		return reply.Write(p.Reply)
	}
	return nil
}

func (p *RecordingPlugin) Enable(ctx *api.CallingContext, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionEnable, ctx, 0, data, reply)
}

func (p *RecordingPlugin) Disable(ctx *api.CallingContext, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionDisable, ctx, 0, data, reply)
}

func (p *RecordingPlugin) Start(ctx *api.CallingContext, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionStart, ctx, 0, data, reply)
}

func (p *RecordingPlugin) Stop(ctx *api.CallingContext, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionStop, ctx, 0, data, reply)
}

func (p *RecordingPlugin) AddWatch(ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionAddWatch, ctx, id, data, reply)
}

func (p *RecordingPlugin) RemoveWatch(ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionRemoveWatch, ctx, id, data, reply)
}

func (p *RecordingPlugin) SetParam(ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionSetParam, ctx, id, data, reply)
}

func (p *RecordingPlugin) GetParam(ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionGetParam, ctx, id, data, reply)
}

func (p *RecordingPlugin) Control(ctx *api.CallingContext, id uint32, data, reply *buffer.MessageBuffer) error {
	return p.record(api.ActionControl, ctx, id, data, reply)
}

// Calls returns a copy of the recorded calls.
func (p *RecordingPlugin) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// MarkDestroyed is used as a PluginABI.Destroy target.
func (p *RecordingPlugin) MarkDestroyed() {
	p.mu.Lock()
	p.destroyed = true
	p.mu.Unlock()
}

// Destroyed reports whether MarkDestroyed ran.
func (p *RecordingPlugin) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// ABI wraps ctor in a current-version vtable for intention.
func ABI(intention api.Intention, ctor func() api.Plugin) *api.PluginABI {
	return &api.PluginABI{
		Version:   api.PluginABIVersion,
		Intention: intention,
		Create:    ctor,
		Destroy: func(p api.Plugin) {
			if rp, ok := p.(*RecordingPlugin); ok {
				rp.MarkDestroyed()
			}
		},
	}
}
