// File: ipc/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client proxy: one method per action.

package ipc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/internal/log"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Descriptor     string // defaults to control.DefaultDescriptor
	BufferCapacity int    // defaults to buffer.DefaultCapacity
	Logger         *zerolog.Logger
}

// Client encodes actions and sends them through a RemoteObject.
//
// Local failures (token write, parameter encoding, transport) all come back
// as an *api.Error with CodeFail. A non-zero status returned by the remote
// side is passed through unchanged.
type Client struct {
	remote     api.RemoteObject
	descriptor string
	pool       *buffer.Pool
	log        zerolog.Logger
}

// NewClient creates a proxy over remote.
func NewClient(remote api.RemoteObject, opts ClientOptions) *Client {
	c := &Client{
		remote:     remote,
		descriptor: opts.Descriptor,
		pool:       buffer.NewPool(opts.BufferCapacity),
		log:        log.WithComponent("client"),
	}
	if c.descriptor == "" {
		c.descriptor = control.DefaultDescriptor
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	return c
}

func (c *Client) Enable(ctx context.Context, in api.Intention, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionEnable, in, 0, data, reply)
}

func (c *Client) Disable(ctx context.Context, in api.Intention, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionDisable, in, 0, data, reply)
}

func (c *Client) Start(ctx context.Context, in api.Intention, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionStart, in, 0, data, reply)
}

func (c *Client) Stop(ctx context.Context, in api.Intention, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionStop, in, 0, data, reply)
}

func (c *Client) AddWatch(ctx context.Context, in api.Intention, id uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionAddWatch, in, id, data, reply)
}

func (c *Client) RemoveWatch(ctx context.Context, in api.Intention, id uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionRemoveWatch, in, id, data, reply)
}

func (c *Client) SetParam(ctx context.Context, in api.Intention, id uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionSetParam, in, id, data, reply)
}

func (c *Client) GetParam(ctx context.Context, in api.Intention, id uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionGetParam, in, id, data, reply)
}

func (c *Client) Control(ctx context.Context, in api.Intention, id uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	return c.call(ctx, api.ActionControl, in, id, data, reply)
}

func (c *Client) call(ctx context.Context, a api.Action, in api.Intention, param uint32, data buffer.Marshaler, reply *buffer.MessageBuffer) error {
	code := protocol.Compose(a, in, param)

	req := c.pool.Get()
	defer c.pool.Put(req)
	if err := req.WriteString(c.descriptor); err != nil {
		return c.fail(a, in, "write interface token", err)
	}
	if data != nil {
		if err := data.MarshalBuffer(req); err != nil {
			return c.fail(a, in, "encode parameter", err)
		}
	}

	resp := c.pool.Get()
	defer c.pool.Put(resp)
	if err := c.remote.SendRequest(ctx, code, req, resp); err != nil {
		var status *api.Error
		if errors.As(err, &status) {
			return status
		}
		return c.fail(a, in, "send request", err)
	}
	if reply == nil {
		return nil
	}
	if err := reply.Write(resp.Unread()); err != nil {
		return c.fail(a, in, "copy reply", err)
	}
	return nil
}

func (c *Client) fail(a api.Action, in api.Intention, step string, err error) error {
	c.log.Debug().Err(err).
		Str(log.FieldIntention, in.String()).
		Str(log.FieldAction, a.String()).
		Str("step", step).
		Msg("call failed")
	return api.Wrap(api.CodeFail, err).WithContext("step", step)
}
