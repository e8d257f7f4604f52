// File: api/context.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Caller identity propagated from the transport to the delegator.

package api

import "context"

// Caller identifies the peer of the IPC call currently being dispatched.
type Caller struct {
	UID     uint32
	PID     int32
	TokenID uint64
}

// CallingContext is the per-request snapshot handed to plugin actions.
type CallingContext struct {
	Caller
	Intention Intention
	RequestID string
}

type callerKey struct{}

// WithCaller returns a child context carrying c. Transports call this before
// entering the server stub.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom extracts the caller identity installed by the transport.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
