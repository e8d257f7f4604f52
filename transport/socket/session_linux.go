//go:build linux

// File: transport/socket/session_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/internal/log"
)

const writeTimeoutMs = 1000

var errSessionClosed = errors.New("socket: session closed")

// session is one accepted connection. Dispatch runs on the handler's parked
// goroutine, so requests of one session are served in order.
type session struct {
	srv    *Server
	fd     int
	caller api.Caller
	reader *protocol.PacketReader
	rbuf   []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// wmu orders replies against pushes from other sessions' goroutines
	// and keeps the fd open for the duration of a write.
	wmu    sync.Mutex
	closed bool
}

func newSession(s *Server, fd int, caller api.Caller) *session {
	ctx, cancel := context.WithCancel(api.WithCaller(context.Background(), caller))
	return &session{
		srv:    s,
		fd:     fd,
		caller: caller,
		reader: protocol.NewPacketReader(s.capacity),
		rbuf:   make([]byte, s.capacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *session) Fd() int { return c.fd }

// Dispatch reads until the socket would block, serving every complete packet.
func (c *session) Dispatch(events api.EventMask) {
	for {
		free := c.reader.Free()
		if free == 0 {
			c.fail(fmt.Errorf("%w: stream buffer full", protocol.ErrPacketTooLarge))
			return
		}
		n, err := unix.Read(c.fd, c.rbuf[:free])
		if n > 0 {
			if ferr := c.reader.Feed(c.rbuf[:n]); ferr != nil {
				c.fail(ferr)
				return
			}
			if perr := c.serve(); perr != nil {
				c.fail(perr)
				return
			}
		}
		switch {
		case err == unix.EAGAIN:
			if events.Has(api.EventHangup) {
				c.close()
			}
			return
		case err == unix.EINTR:
			continue
		case err != nil:
			c.fail(err)
			return
		case n == 0:
			c.close()
			return
		}
	}
}

func (c *session) serve() error {
	for {
		pkt, ok, err := c.reader.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if pkt.ID != protocol.MsgRemoteRequest {
			return fmt.Errorf("unexpected packet %s", pkt.ID)
		}
		code, err := pkt.Payload.ReadUint32()
		if err != nil {
			return fmt.Errorf("request code: %w", err)
		}

		reply := buffer.New(c.srv.capacity - protocol.PacketHeaderSize - 4)
		status := c.srv.stub.OnRemoteRequest(c.ctx, code, pkt.Payload, reply)

		out := protocol.NewPacket(protocol.MsgRemoteReply, c.srv.capacity)
		_ = out.Payload.WriteInt32(int32(status))
		if status == api.CodeOK {
			_ = out.Payload.Write(reply.Unread())
		}
		if err := c.send(out); err != nil {
			return err
		}
	}
}

// send frames pkt and writes it whole.
func (c *session) send(pkt *protocol.NetPacket) error {
	frame := buffer.New(c.srv.capacity)
	if err := pkt.MakeData(frame); err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return errSessionClosed
	}
	return writeAll(c.fd, frame.Bytes())
}

func writeAll(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if n > 0 {
			p = p[n:]
		}
		switch {
		case err == unix.EAGAIN:
			fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
			n, perr := unix.Poll(fds, writeTimeoutMs)
			switch {
			case perr == unix.EINTR:
			case perr != nil:
				return perr
			case n == 0:
				return errors.New("write timed out")
			}
		case err == unix.EINTR:
		case err != nil:
			return err
		}
	}
	return nil
}

func (c *session) fail(err error) {
	c.srv.log.Warn().Err(err).Int(log.FieldFd, c.fd).Int32(log.FieldPID, c.caller.PID).Msg("closing session")
	c.close()
}

func (c *session) close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.srv.reg.RemoveEpollHandler(c)
		c.wmu.Lock()
		c.closed = true
		_ = unix.Close(c.fd)
		c.wmu.Unlock()
		c.srv.forget(c)
		if c.srv.onClose != nil {
			c.srv.onClose(c.caller)
		}
		c.srv.log.Debug().Int(log.FieldFd, c.fd).Msg("session closed")
	})
}
