package ipc_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/fake"
	"github.com/momentics/hioload-ipc/internal/log"
	"github.com/momentics/hioload-ipc/ipc"
	"github.com/momentics/hioload-ipc/pluginmgr"
	"github.com/momentics/hioload-ipc/plugins/basic"
	"github.com/momentics/hioload-ipc/plugins/drag"
)

var caller = api.Caller{UID: 1000, PID: 4242, TokenID: 7}

func newDelegator(plugins ipc.PluginSource, m *control.Metrics) *ipc.Delegator {
	lg := log.Nop()
	return ipc.NewDelegator(ipc.DelegatorOptions{Plugins: plugins, Logger: &lg, Metrics: m})
}

func request(token string, body ...byte) *buffer.MessageBuffer {
	b := buffer.New(0)
	_ = b.WriteString(token)
	_ = b.Write(body)
	return b
}

func TestDelegator_DispatchesWithCaller(t *testing.T) {
	p := &fake.RecordingPlugin{Reply: []byte{9}}
	d := newDelegator(fake.PluginMap{api.IntentionDrag: p}, nil)

	ctx := api.WithCaller(context.Background(), caller)
	code := protocol.Compose(api.ActionSetParam, api.IntentionDrag, 5)
	reply := buffer.New(0)
	status := d.OnRemoteRequest(ctx, code, request(control.DefaultDescriptor, 1, 2), reply)

	require.Equal(t, api.CodeOK, status)
	assert.Equal(t, []byte{9}, reply.Unread())
	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, api.ActionSetParam, calls[0].Action)
	assert.Equal(t, uint32(5), calls[0].ID)
	assert.Equal(t, []byte{1, 2}, calls[0].Data, "token is consumed before dispatch")
	assert.Equal(t, caller, calls[0].Caller.Caller)
	assert.Equal(t, api.IntentionDrag, calls[0].Caller.Intention)
	assert.NotEmpty(t, calls[0].Caller.RequestID)
}

func TestDelegator_EveryActionRoutes(t *testing.T) {
	p := &fake.RecordingPlugin{}
	d := newDelegator(fake.PluginMap{api.IntentionCoordination: p}, nil)
	for a := api.ActionEnable; int(a) < api.NumActions; a++ {
		code := protocol.Compose(a, api.IntentionCoordination, 3)
		status := d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0))
		require.Equal(t, api.CodeOK, status, a.String())
	}
	calls := p.Calls()
	require.Len(t, calls, api.NumActions)
	for i, c := range calls {
		assert.Equal(t, api.Action(i), c.Action)
	}
}

func TestDelegator_TokenGate(t *testing.T) {
	p := &fake.RecordingPlugin{}
	m := control.NewMetrics(false)
	d := newDelegator(fake.PluginMap{api.IntentionDrag: p}, m)
	code := protocol.Compose(api.ActionStart, api.IntentionDrag, 0)

	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), code, request("wrong.IIntention"), buffer.New(0)))
	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), code, buffer.New(0), buffer.New(0)))
	assert.Empty(t, p.Calls(), "no token means no dispatch")

	n, err := testutil.GatherAndCount(m.Registry(), "hioload_ipc_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDelegator_RejectsUndecodableCode(t *testing.T) {
	p := &fake.RecordingPlugin{}
	d := newDelegator(fake.PluginMap{api.IntentionDrag: p}, nil)

	badAction := uint32(0xF) << protocol.ActionShift
	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), badAction, request(control.DefaultDescriptor), buffer.New(0)))

	badIntention := protocol.Compose(api.ActionStart, api.Intention(0xEE), 0)
	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), badIntention, request(control.DefaultDescriptor), buffer.New(0)))
	assert.Empty(t, p.Calls())
}

func TestDelegator_UnknownIntentionFails(t *testing.T) {
	d := newDelegator(fake.PluginMap{}, nil)
	code := protocol.Compose(api.ActionStart, api.IntentionStationary, 0)
	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))
}

func TestDelegator_PluginErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want api.ErrorCode
	}{
		{api.ErrUnsupported, api.CodeUnsupported},
		{api.NewError(api.CodeBusy, "busy"), api.CodeBusy},
		{errors.New("opaque"), api.CodeFail},
	}
	for _, tc := range cases {
		p := &fake.RecordingPlugin{Err: tc.err}
		d := newDelegator(fake.PluginMap{api.IntentionDrag: p}, nil)
		code := protocol.Compose(api.ActionStop, api.IntentionDrag, 0)
		assert.Equal(t, tc.want, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))
	}
}

type panicky struct{ api.UnsupportedPlugin }

func (panicky) Start(*api.CallingContext, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	panic("plugin bug")
}

func TestDelegator_RecoversPluginPanic(t *testing.T) {
	d := newDelegator(fake.PluginMap{api.IntentionDrag: panicky{}}, nil)
	code := protocol.Compose(api.ActionStart, api.IntentionDrag, 0)
	assert.Equal(t, api.CodeFail, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))
}

func TestDelegator_RateLimit(t *testing.T) {
	p := &fake.RecordingPlugin{}
	lg := log.Nop()
	d := ipc.NewDelegator(ipc.DelegatorOptions{
		Plugins:   fake.PluginMap{api.IntentionDrag: p},
		RateLimit: 0.001,
		RateBurst: 1,
		Logger:    &lg,
	})
	code := protocol.Compose(api.ActionStart, api.IntentionDrag, 0)
	assert.Equal(t, api.CodeOK, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))
	assert.Equal(t, api.CodeBusy, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))

	d.SetRateLimit(0, 0)
	assert.Equal(t, api.CodeOK, d.OnRemoteRequest(context.Background(), code, request(control.DefaultDescriptor), buffer.New(0)))
	assert.Len(t, p.Calls(), 2)
}

func TestClient_EncodesRequest(t *testing.T) {
	remote := &fake.Remote{Reply: []byte{0xAB}}
	c := ipc.NewClient(remote, ipc.ClientOptions{})
	reply := buffer.New(0)

	require.NoError(t, c.GetParam(context.Background(), api.IntentionDrag, 2, buffer.Uint32(77), reply))
	assert.Equal(t, []byte{0xAB}, reply.Unread())

	reqs := remote.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, protocol.Compose(api.ActionGetParam, api.IntentionDrag, 2), reqs[0].Code)

	sent := buffer.From(reqs[0].Data, 0)
	tok, err := sent.ReadString()
	require.NoError(t, err)
	assert.Equal(t, control.DefaultDescriptor, tok)
	v, err := sent.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(77), v)
}

func TestClient_CollapsesLocalFailures(t *testing.T) {
	remote := &fake.Remote{Err: errors.New("connection reset")}
	c := ipc.NewClient(remote, ipc.ClientOptions{})
	err := c.Start(context.Background(), api.IntentionDrag, nil, buffer.New(0))
	assert.Equal(t, api.CodeFail, api.CodeOf(err))

	// parameter larger than the request buffer
	c = ipc.NewClient(&fake.Remote{}, ipc.ClientOptions{BufferCapacity: 32})
	err = c.Start(context.Background(), api.IntentionDrag, buffer.String(make([]byte, 64)), buffer.New(0))
	assert.Equal(t, api.CodeFail, api.CodeOf(err))
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "encode parameter", apiErr.Context["step"])
}

func TestClient_PassesRemoteStatus(t *testing.T) {
	c := ipc.NewClient(&fake.Remote{Status: api.CodeUnsupported}, ipc.ClientOptions{})
	err := c.Control(context.Background(), api.IntentionBasic, 1, nil, buffer.New(0))
	assert.Equal(t, api.CodeUnsupported, api.CodeOf(err))
}

func TestEndToEnd_DragStart(t *testing.T) {
	opener := fake.NewOpener()
	opener.Add("/plugins/libintention_drag.so", &fake.Library{Symbols: map[string]any{
		api.PluginABISymbol: &api.PluginABI{
			Version:   api.PluginABIVersion,
			Intention: api.IntentionDrag,
			Create:    func() api.Plugin { return drag.New(drag.WithLogger(log.Nop())) },
		},
	}})
	lg := log.Nop()
	mgr := pluginmgr.New(pluginmgr.Options{
		Dir:      "/plugins",
		Libs:     map[api.Intention]string{api.IntentionDrag: "libintention_drag.so"},
		Opener:   opener,
		Builtins: map[api.Intention]pluginmgr.Constructor{api.IntentionBasic: basic.New},
		Logger:   &lg,
	})
	d := newDelegator(mgr, nil)
	c := ipc.NewClient(ipc.NewBinder(d, caller, 512), ipc.ClientOptions{BufferCapacity: 512})
	ctx := context.Background()

	dd := &drag.DragData{
		Shadow:  drag.ShadowInfo{PixelMap: []byte{0xFF, 0x00, 0xFF, 0x00}},
		UDKey:   "k",
		DragNum: 1,
	}
	reply := buffer.New(0)
	require.NoError(t, c.Start(ctx, api.IntentionDrag, dd, reply))
	v, err := reply.ReadInt32()
	require.NoError(t, err)
	assert.Zero(t, v)

	reply = buffer.New(0)
	require.NoError(t, c.GetParam(ctx, api.IntentionDrag, drag.ParamState, nil, reply))
	state, _ := reply.ReadInt32()
	assert.Equal(t, int32(drag.StateStart), state)

	err = c.Start(ctx, api.IntentionDrag, dd, buffer.New(0))
	assert.Equal(t, api.CodeBusy, api.CodeOf(err))

	reply = buffer.New(0)
	require.NoError(t, c.GetParam(ctx, api.IntentionBasic, basic.ParamVersion, nil, reply))
	ver, _ := reply.ReadString()
	assert.Equal(t, basic.Version, ver)

	err = c.Start(ctx, api.IntentionCoordination, nil, buffer.New(0))
	assert.Equal(t, api.CodeFail, api.CodeOf(err))
}

func TestEndToEnd_ConcurrentCallers(t *testing.T) {
	p := &fake.RecordingPlugin{}
	d := newDelegator(fake.PluginMap{api.IntentionDrag: p}, nil)
	c := ipc.NewClient(ipc.NewBinder(d, caller, 0), ipc.ClientOptions{})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			return c.Enable(context.Background(), api.IntentionDrag, buffer.Int32(int32(i)), buffer.New(0))
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, p.Calls(), 16)
}

type gatedPlugin struct {
	api.UnsupportedPlugin
	entered chan struct{}
	gate    chan struct{}
}

func (p *gatedPlugin) Control(*api.CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	close(p.entered)
	<-p.gate
	return nil
}

func TestDelegator_UnloadWaitsForCall(t *testing.T) {
	plugin := &gatedPlugin{entered: make(chan struct{}), gate: make(chan struct{})}
	var destroyed atomic.Bool
	opener := fake.NewOpener()
	opener.Add("/plugins/libintention_drag.so", &fake.Library{Symbols: map[string]any{
		api.PluginABISymbol: &api.PluginABI{
			Version:   api.PluginABIVersion,
			Intention: api.IntentionDrag,
			Create:    func() api.Plugin { return plugin },
			Destroy:   func(api.Plugin) { destroyed.Store(true) },
		},
	}})
	lg := log.Nop()
	mgr := pluginmgr.New(pluginmgr.Options{
		Dir:    "/plugins",
		Libs:   map[api.Intention]string{api.IntentionDrag: "libintention_drag.so"},
		Opener: opener,
		Logger: &lg,
	})
	c := ipc.NewClient(ipc.NewBinder(newDelegator(mgr, nil), caller, 0), ipc.ClientOptions{})

	called := make(chan error, 1)
	go func() { called <- c.Control(context.Background(), api.IntentionDrag, 0, nil, buffer.New(0)) }()
	<-plugin.entered

	unloaded := make(chan error, 1)
	go func() { unloaded <- mgr.UnloadPlugin(api.IntentionDrag) }()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, destroyed.Load(), "instance destroyed under a running call")

	close(plugin.gate)
	require.NoError(t, <-called)
	require.NoError(t, <-unloaded)
	assert.True(t, destroyed.Load())
}
