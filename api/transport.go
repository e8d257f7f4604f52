// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Binder-like transport contracts shared by the client proxy, the delegator
// and concrete transports.

package api

import (
	"context"

	"github.com/momentics/hioload-ipc/core/buffer"
)

// RemoteObject performs a synchronous remote call. On success the remote
// reply bytes are appended to reply. A non-zero remote status is returned as
// an *Error carrying that code.
type RemoteObject interface {
	SendRequest(ctx context.Context, code uint32, data, reply *buffer.MessageBuffer) error
}

// Stub is the server side of a RemoteObject. The returned value is the wire
// status of the call; ctx carries the Caller installed by the transport.
type Stub interface {
	OnRemoteRequest(ctx context.Context, code uint32, data, reply *buffer.MessageBuffer) ErrorCode
}
