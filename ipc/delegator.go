// File: ipc/delegator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Delegator is the server stub: decode, authenticate, resolve, dispatch.

package ipc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/internal/log"
)

// PluginSource resolves an intention to a plugin instance for one call.
// release is called once the call returns.
type PluginSource interface {
	Acquire(intention api.Intention) (p api.Plugin, release func(), err error)
}

// DelegatorOptions configures a Delegator.
type DelegatorOptions struct {
	Descriptor string // defaults to control.DefaultDescriptor
	Plugins    PluginSource
	RateLimit  float64 // requests per second, 0 disables the limiter
	RateBurst  int
	Logger     *zerolog.Logger
	Metrics    *control.Metrics
}

// Delegator implements api.Stub. It keeps no per-request state and is safe
// for concurrent use by any number of transport goroutines.
type Delegator struct {
	descriptor string
	plugins    PluginSource
	limiter    atomic.Pointer[rate.Limiter]
	log        zerolog.Logger
	metrics    *control.Metrics
}

var _ api.Stub = (*Delegator)(nil)

// NewDelegator creates a delegator over plugins.
func NewDelegator(opts DelegatorOptions) *Delegator {
	d := &Delegator{
		descriptor: opts.Descriptor,
		plugins:    opts.Plugins,
		log:        log.WithComponent("delegator"),
		metrics:    opts.Metrics,
	}
	if d.descriptor == "" {
		d.descriptor = control.DefaultDescriptor
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	d.SetRateLimit(opts.RateLimit, opts.RateBurst)
	return d
}

// SetRateLimit replaces the admission limiter. A limit <= 0 disables it.
func (d *Delegator) SetRateLimit(limit float64, burst int) {
	if limit <= 0 {
		d.limiter.Store(nil)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	d.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// OnRemoteRequest handles one call. Every failure before the plugin runs
// collapses to CodeFail; the plugin's own error maps through api.CodeOf.
func (d *Delegator) OnRemoteRequest(ctx context.Context, code uint32, data, reply *buffer.MessageBuffer) api.ErrorCode {
	reqID := uuid.NewString()
	lg := d.log.With().Str(log.FieldRequestID, reqID).Uint32(log.FieldCode, code).Logger()

	id, err := protocol.Decode(code)
	if err != nil {
		lg.Warn().Err(err).Msg("request rejected: undecodable code")
		d.metrics.ObserveRequest("unknown", "unknown", api.CodeFail.String())
		return api.CodeFail
	}
	in, act := id.Intention.String(), id.Action.String()
	lg = lg.With().Str(log.FieldIntention, in).Str(log.FieldAction, act).Uint32(log.FieldParam, id.Param).Logger()

	status := d.handle(ctx, lg, reqID, id, data, reply)
	d.metrics.ObserveRequest(in, act, status.String())
	return status
}

func (d *Delegator) handle(ctx context.Context, lg zerolog.Logger, reqID string, id protocol.Identity, data, reply *buffer.MessageBuffer) api.ErrorCode {
	if err := d.checkToken(data); err != nil {
		lg.Warn().Err(err).Msg("request rejected: authentication")
		return api.CodeFail
	}
	if lim := d.limiter.Load(); lim != nil && !lim.Allow() {
		lg.Debug().Err(ErrRateLimited).Msg("request rejected")
		return api.CodeBusy
	}
	plugin, release, err := d.plugins.Acquire(id.Intention)
	if err != nil {
		lg.Warn().Err(err).Msg("request rejected: plugin unavailable")
		return api.CodeFail
	}
	defer release()

	caller, ok := api.CallerFrom(ctx)
	if !ok {
		lg.Warn().Msg("transport supplied no caller identity")
	}
	cc := &api.CallingContext{Caller: caller, Intention: id.Intention, RequestID: reqID}

	err = invoke(plugin, id.Action, id.Param, cc, data, reply)
	status := api.CodeOf(err)
	if err != nil {
		lg.Debug().Err(err).
			Uint32(log.FieldUID, caller.UID).
			Int32(log.FieldPID, caller.PID).
			Str("status", status.String()).
			Msg("plugin returned error")
	}
	return status
}

func (d *Delegator) checkToken(data *buffer.MessageBuffer) error {
	tok, err := data.ReadString()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMismatch, err)
	}
	if tok != d.descriptor {
		return fmt.Errorf("%w: got %q", ErrTokenMismatch, tok)
	}
	return nil
}

func invoke(p api.Plugin, a api.Action, param uint32, cc *api.CallingContext, data, reply *buffer.MessageBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPluginPanicked, r)
		}
	}()
	switch a {
	case api.ActionEnable:
		return p.Enable(cc, data, reply)
	case api.ActionDisable:
		return p.Disable(cc, data, reply)
	case api.ActionStart:
		return p.Start(cc, data, reply)
	case api.ActionStop:
		return p.Stop(cc, data, reply)
	case api.ActionAddWatch:
		return p.AddWatch(cc, param, data, reply)
	case api.ActionRemoveWatch:
		return p.RemoveWatch(cc, param, data, reply)
	case api.ActionSetParam:
		return p.SetParam(cc, param, data, reply)
	case api.ActionGetParam:
		return p.GetParam(cc, param, data, reply)
	case api.ActionControl:
		return p.Control(cc, param, data, reply)
	default:
		return fmt.Errorf("%w: action %s", api.ErrUnsupported, a)
	}
}
