// File: fake/transport.go
// Author: momentics <momentics@gmail.com>
//
// Remote is a scriptable api.RemoteObject for client-side tests.

package fake

import (
	"context"
	"sync"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
)

// Request is one call seen by Remote.
type Request struct {
	Code uint32
	Data []byte
}

// Remote records requests. It fails with Err when set, otherwise returns
// Status as a remote status when non-zero, otherwise writes Reply.
type Remote struct {
	Err    error
	Status api.ErrorCode
	Reply  []byte

	mu       sync.Mutex
	requests []Request
}

var _ api.RemoteObject = (*Remote)(nil)

func (r *Remote) SendRequest(_ context.Context, code uint32, data, reply *buffer.MessageBuffer) error {
	r.mu.Lock()
	r.requests = append(r.requests, Request{Code: code, Data: append([]byte(nil), data.Unread()...)})
	r.mu.Unlock()
	switch {
	case r.Err != nil:
		return r.Err
	case r.Status != api.CodeOK:
		return api.ErrorFromCode(r.Status)
	default:
		return reply.Write(r.Reply)
	}
}

// Requests returns a copy of the recorded calls.
func (r *Remote) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// PluginMap is a fixed PluginSource.
type PluginMap map[api.Intention]api.Plugin

func (m PluginMap) Acquire(in api.Intention) (api.Plugin, func(), error) {
	p, ok := m[in]
	if !ok {
		return nil, nil, api.ErrNotFound
	}
	return p, func() {}, nil
}
