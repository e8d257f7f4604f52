package drag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/internal/log"
)

func sampleDrag() *DragData {
	return &DragData{
		Shadow:     ShadowInfo{PixelMap: []byte{1, 2, 3, 4}, X: -8, Y: -8},
		Buffer:     []byte("payload"),
		UDKey:      "ud-key-1",
		SourceType: 1,
		DragNum:    1,
		PointerID:  2,
		DisplayX:   100,
		DisplayY:   200,
	}
}

func encode(t *testing.T, m buffer.Marshaler) *buffer.MessageBuffer {
	t.Helper()
	b := buffer.New(512)
	require.NoError(t, m.MarshalBuffer(b))
	return b
}

type recorder struct {
	mu      sync.Mutex
	events  []State
	pids    []int32
	results map[int32][]Result
}

func (r *recorder) NotifyState(pid int32, _ uint32, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	r.pids = append(r.pids, pid)
}

func (r *recorder) NotifyResult(pid int32, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[int32][]Result)
	}
	r.results[pid] = append(r.results[pid], res)
}

func newPlugin(opts ...Option) *Plugin {
	return New(append([]Option{WithLogger(log.Nop())}, opts...)...)
}

func TestDragData_Codec(t *testing.T) {
	in := sampleDrag()
	in.HasCanceledAnimation = true
	b := encode(t, in)

	var out DragData
	require.NoError(t, out.UnmarshalBuffer(b))
	assert.Equal(t, *in, out)
	assert.Zero(t, b.UnreadSize())
}

func TestDragData_Truncated(t *testing.T) {
	b := encode(t, sampleDrag())
	short := buffer.From(b.Bytes()[:b.Size()-3], 0)
	var out DragData
	assert.Error(t, out.UnmarshalBuffer(short))
}

func TestStart_RepliesZero(t *testing.T) {
	p := newPlugin()
	ctx := &api.CallingContext{Caller: api.Caller{PID: 42}}
	reply := buffer.New(0)

	require.NoError(t, p.Start(ctx, encode(t, sampleDrag()), reply))
	v, err := reply.ReadInt32()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Zero(t, reply.UnreadSize())
	assert.Equal(t, StateStart, p.State())
	assert.Equal(t, "ud-key-1", p.Current().UDKey)
}

func TestStart_Rejects(t *testing.T) {
	p := newPlugin()
	ctx := &api.CallingContext{}

	bad := sampleDrag()
	bad.DragNum = 0
	err := p.Start(ctx, encode(t, bad), buffer.New(0))
	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(err))

	err = p.Start(ctx, buffer.From([]byte{1, 2}, 0), buffer.New(0))
	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(err))

	require.NoError(t, p.Start(ctx, encode(t, sampleDrag()), buffer.New(0)))
	err = p.Start(ctx, encode(t, sampleDrag()), buffer.New(0))
	assert.Equal(t, api.CodeBusy, api.CodeOf(err))
}

func TestStop(t *testing.T) {
	p := newPlugin()
	ctx := &api.CallingContext{}

	err := p.Stop(ctx, encode(t, StopParam{Result: ResultSuccess}), buffer.New(0))
	assert.Equal(t, api.CodeFail, api.CodeOf(err))

	require.NoError(t, p.Start(ctx, encode(t, sampleDrag()), buffer.New(0)))
	require.NoError(t, p.Stop(ctx, encode(t, StopParam{Result: ResultCancel}), buffer.New(0)))
	assert.Equal(t, StateCancel, p.State())
	assert.Nil(t, p.Current())

	reply := buffer.New(0)
	require.NoError(t, p.GetParam(ctx, ParamResult, buffer.New(0), reply))
	r, err := reply.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(ResultCancel), r)

	err = p.Stop(ctx, encode(t, StopParam{Result: 9}), buffer.New(0))
	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(err))
}

func TestParams(t *testing.T) {
	p := newPlugin()
	ctx := &api.CallingContext{}

	reply := buffer.New(0)
	require.NoError(t, p.GetParam(ctx, ParamState, buffer.New(0), reply))
	s, _ := reply.ReadInt32()
	assert.Equal(t, int32(StateStop), s)

	hide := encode(t, buffer.Bool(false))
	assert.Equal(t, api.CodeFail, api.CodeOf(p.SetParam(ctx, ParamShadowVisible, hide, buffer.New(0))))

	require.NoError(t, p.Start(ctx, encode(t, sampleDrag()), buffer.New(0)))
	require.NoError(t, p.SetParam(ctx, ParamShadowVisible, encode(t, buffer.Bool(false)), buffer.New(0)))
	reply = buffer.New(0)
	require.NoError(t, p.GetParam(ctx, ParamShadowVisible, buffer.New(0), reply))
	visible, _ := reply.ReadBool()
	assert.False(t, visible)

	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(p.GetParam(ctx, 77, buffer.New(0), buffer.New(0))))
	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(p.SetParam(ctx, ParamState, buffer.New(0), buffer.New(0))))
	assert.Equal(t, api.CodeUnsupported, api.CodeOf(p.Control(ctx, 0, buffer.New(0), buffer.New(0))))
}

func TestWatchers(t *testing.T) {
	rec := &recorder{}
	p := newPlugin(WithNotifier(rec))
	alice := &api.CallingContext{Caller: api.Caller{PID: 10}}
	bob := &api.CallingContext{Caller: api.Caller{PID: 20}}

	reply := buffer.New(0)
	require.NoError(t, p.AddWatch(alice, WatchState, buffer.New(0), reply))
	ha, err := reply.ReadUint32()
	require.NoError(t, err)

	reply = buffer.New(0)
	require.NoError(t, p.AddWatch(bob, WatchState, buffer.New(0), reply))
	hb, _ := reply.ReadUint32()
	assert.NotEqual(t, ha, hb)
	assert.Equal(t, 2, p.Watchers())

	require.NoError(t, p.Start(alice, encode(t, sampleDrag()), buffer.New(0)))
	rec.mu.Lock()
	assert.Equal(t, []State{StateStart, StateStart}, rec.events)
	assert.Equal(t, []int32{10, 20}, rec.pids)
	rec.mu.Unlock()

	// bob cannot remove alice's listener
	err = p.RemoveWatch(bob, WatchState, encode(t, buffer.Uint32(ha)), buffer.New(0))
	assert.Equal(t, api.CodeNotFound, api.CodeOf(err))
	require.NoError(t, p.RemoveWatch(alice, WatchState, encode(t, buffer.Uint32(ha)), buffer.New(0)))
	assert.Equal(t, 1, p.Watchers())

	assert.Equal(t, api.CodeInvalidParam, api.CodeOf(p.AddWatch(alice, 5, buffer.New(0), buffer.New(0))))

	assert.Equal(t, 1, p.DropCaller(20))
	assert.Zero(t, p.Watchers())

	_, _ = p.watchers.add(1), p.watchers.add(2)
	p.Close()
	assert.Zero(t, p.Watchers())
	assert.Equal(t, StateStop, p.State())
}

func TestStop_NotifiesOwnerAndListeners(t *testing.T) {
	p := newPlugin()
	owner := &api.CallingContext{Caller: api.Caller{PID: 10}}
	watcher := &api.CallingContext{Caller: api.Caller{PID: 20}}
	require.NoError(t, p.AddWatch(watcher, WatchState, buffer.New(0), buffer.New(0)))

	// attached after construction, the way a shared-object host does it
	rec := &recorder{}
	p.SetNotifier(rec)

	require.NoError(t, p.Start(owner, encode(t, sampleDrag()), buffer.New(0)))
	require.NoError(t, p.Stop(watcher, encode(t, StopParam{Result: ResultCancel}), buffer.New(0)))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []State{StateStart, StateCancel}, rec.events)
	assert.Equal(t, []int32{20, 20}, rec.pids)
	assert.Equal(t, map[int32][]Result{10: {ResultCancel}}, rec.results)
}

func TestEvents_Codec(t *testing.T) {
	var se StateEvent
	require.NoError(t, se.UnmarshalBuffer(encode(t, StateEvent{Handle: 9, State: StateStart})))
	assert.Equal(t, StateEvent{Handle: 9, State: StateStart}, se)

	var re ResultEvent
	require.NoError(t, re.UnmarshalBuffer(encode(t, ResultEvent{Result: ResultFail})))
	assert.Equal(t, ResultFail, re.Result)

	assert.Error(t, se.UnmarshalBuffer(buffer.New(0)))
}
