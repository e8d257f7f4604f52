// File: ipc/binder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ipc

import (
	"context"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
)

// Binder is an in-process RemoteObject. It copies buffers across the call
// boundary the way a kernel transport would and stamps a fixed caller.
type Binder struct {
	stub     api.Stub
	caller   api.Caller
	capacity int
}

var _ api.RemoteObject = (*Binder)(nil)

// NewBinder returns a remote that calls stub as caller.
func NewBinder(stub api.Stub, caller api.Caller, capacity int) *Binder {
	if capacity <= 0 {
		capacity = buffer.DefaultCapacity
	}
	return &Binder{stub: stub, caller: caller, capacity: capacity}
}

func (b *Binder) SendRequest(ctx context.Context, code uint32, data, reply *buffer.MessageBuffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in := buffer.From(data.Unread(), b.capacity)
	out := buffer.New(b.capacity)
	status := b.stub.OnRemoteRequest(api.WithCaller(ctx, b.caller), code, in, out)
	if status != api.CodeOK {
		return api.ErrorFromCode(status)
	}
	return reply.Write(out.Unread())
}
