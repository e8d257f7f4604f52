// File: transport/socket/remote.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
)

var (
	// ErrRemoteClosed is returned after Close or once the connection broke.
	ErrRemoteClosed = errors.New("socket: remote closed")

	// ErrNoSession is returned by Server.Push when the process has no session.
	ErrNoSession = errors.New("socket: no session for process")
)

// Remote is the client end of a Server. It implements api.RemoteObject and
// serves one call at a time. Unsolicited packets read while waiting for a
// reply are kept, in arrival order, for Receive.
type Remote struct {
	mu       sync.Mutex
	conn     net.Conn
	reader   *protocol.PacketReader
	pending  *queue.Queue
	capacity int
	rbuf     []byte
	broken   bool
}

var _ api.RemoteObject = (*Remote)(nil)

// Dial connects to the server at path. capacity must match the server's.
func Dial(ctx context.Context, path string, capacity int) (*Remote, error) {
	if capacity <= 0 {
		capacity = buffer.DefaultCapacity
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Remote{
		conn:     conn,
		reader:   protocol.NewPacketReader(capacity),
		pending:  queue.New(),
		capacity: capacity,
		rbuf:     make([]byte, capacity),
	}, nil
}

// SendRequest frames the call, waits for the reply and copies its body into
// reply. A non-zero status comes back as an *api.Error with that code.
func (r *Remote) SendRequest(ctx context.Context, code uint32, data, reply *buffer.MessageBuffer) error {
	pkt := protocol.NewPacket(protocol.MsgRemoteRequest, r.capacity)
	_ = pkt.Payload.WriteUint32(code)
	_ = pkt.Payload.Write(data.Unread())
	frame := buffer.New(r.capacity)
	if err := pkt.MakeData(frame); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return ErrRemoteClosed
	}
	stop, err := r.bind(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if _, err := r.conn.Write(frame.Bytes()); err != nil {
		r.broken = true
		return err
	}
	var resp *protocol.NetPacket
	for {
		resp, err = r.readPacket()
		if err != nil {
			r.broken = true
			return ctxErr(ctx, err)
		}
		if !resp.ID.Unsolicited() {
			break
		}
		r.pending.Add(resp)
	}
	if resp.ID != protocol.MsgRemoteReply {
		r.broken = true
		return fmt.Errorf("unexpected packet %s", resp.ID)
	}
	status, err := resp.Payload.ReadInt32()
	if err != nil {
		return err
	}
	if api.ErrorCode(status) != api.CodeOK {
		return api.ErrorFromCode(api.ErrorCode(status))
	}
	return reply.Write(resp.Payload.Unread())
}

// Receive returns the next unsolicited packet, waiting for one until ctx is
// done. A timed-out Receive leaves the connection usable.
func (r *Remote) Receive(ctx context.Context) (*protocol.NetPacket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending.Length() > 0 {
		return r.pending.Remove().(*protocol.NetPacket), nil
	}
	if r.broken {
		return nil, ErrRemoteClosed
	}
	stop, err := r.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	pkt, err := r.readPacket()
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			r.broken = true
		}
		return nil, ctxErr(ctx, err)
	}
	if !pkt.ID.Unsolicited() {
		r.broken = true
		return nil, fmt.Errorf("unexpected packet %s", pkt.ID)
	}
	return pkt, nil
}

// Pending returns the number of queued unsolicited packets.
func (r *Remote) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Length()
}

// bind applies ctx's deadline to the connection and interrupts blocked I/O
// when ctx is cancelled. The returned func must be called when I/O is done.
func (r *Remote) bind(ctx context.Context) (func(), error) {
	deadline, _ := ctx.Deadline()
	if err := r.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetDeadline(time.Now())
	})
	return func() { stop() }, nil
}

func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

func (r *Remote) readPacket() (*protocol.NetPacket, error) {
	for {
		pkt, ok, err := r.reader.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return pkt, nil
		}
		n, err := r.conn.Read(r.rbuf[:r.reader.Free()])
		if n > 0 {
			if ferr := r.reader.Feed(r.rbuf[:n]); ferr != nil {
				return nil, ferr
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close closes the connection. It interrupts a blocked SendRequest or Receive.
func (r *Remote) Close() error {
	err := r.conn.Close()
	r.mu.Lock()
	r.broken = true
	r.mu.Unlock()
	return err
}
