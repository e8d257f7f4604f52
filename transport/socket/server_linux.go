//go:build linux

// File: transport/socket/server_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/internal/log"
)

// Options configures a Server.
type Options struct {
	BufferCapacity int // max framed packet size, defaults to buffer.DefaultCapacity
	Backlog        int
	Logger         *zerolog.Logger
	// OnDisconnect runs after a session closes.
	OnDisconnect func(api.Caller)
}

// Server accepts connections on a unix socket and feeds requests to a stub.
type Server struct {
	path     string
	fd       int
	stub     api.Stub
	reg      api.EpollRegistry
	capacity int
	onClose  func(api.Caller)
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[int]*session
	closed   bool
}

// Listen binds path, replacing a stale socket file, and registers the
// listener with reg.
func Listen(path string, stub api.Stub, reg api.EpollRegistry, opts Options) (*Server, error) {
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = buffer.DefaultCapacity
	}
	if opts.Backlog <= 0 {
		opts.Backlog = 128
	}
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, opts.Backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	s := &Server{
		path:     path,
		fd:       fd,
		stub:     stub,
		reg:      reg,
		capacity: opts.BufferCapacity,
		onClose:  opts.OnDisconnect,
		log:      log.WithComponent("socket"),
		sessions: make(map[int]*session),
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if err := reg.AddEpollHandler(s); err != nil {
		_ = unix.Close(fd)
		_ = os.Remove(path)
		return nil, err
	}
	s.log.Info().Str(log.FieldPath, path).Msg("listening")
	return s, nil
}

// Fd returns the listening descriptor.
func (s *Server) Fd() int { return s.fd }

// Dispatch accepts every pending connection.
func (s *Server) Dispatch(api.EventMask) {
	for {
		nfd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			s.admit(nfd)
		case unix.EAGAIN:
			return
		case unix.EINTR, unix.ECONNABORTED:
		default:
			s.log.Error().Err(err).Msg("accept failed")
			return
		}
	}
}

func (s *Server) admit(fd int) {
	caller, err := peerCaller(fd)
	if err != nil {
		s.log.Warn().Err(err).Int(log.FieldFd, fd).Msg("rejecting peer without credentials")
		_ = unix.Close(fd)
		return
	}
	sess := newSession(s, fd, caller)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = unix.Close(fd)
		return
	}
	s.sessions[fd] = sess
	s.mu.Unlock()

	if err := s.reg.AddEpollHandler(sess); err != nil {
		s.log.Error().Err(err).Int(log.FieldFd, fd).Msg("register session")
		s.forget(sess)
		_ = unix.Close(fd)
		return
	}
	s.log.Debug().
		Int(log.FieldFd, fd).
		Uint32(log.FieldUID, caller.UID).
		Int32(log.FieldPID, caller.PID).
		Msg("session opened")
}

func (s *Server) forget(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.fd)
	s.mu.Unlock()
}

func peerCaller(fd int) (api.Caller, error) {
	cred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return api.Caller{}, fmt.Errorf("SO_PEERCRED: %w", err)
	}
	// unix sockets carry no access token
	return api.Caller{UID: cred.Uid, PID: cred.Pid}, nil
}

// Push sends an unsolicited packet with body to every session of process
// pid and returns how many received it. A session whose write fails is
// closed. ErrNoSession is returned when pid has no open session.
func (s *Server) Push(pid int32, id protocol.MessageID, body buffer.Marshaler) (int, error) {
	pkt := protocol.NewPacket(id, s.capacity)
	if body != nil {
		if err := body.MarshalBuffer(pkt.Payload); err != nil {
			return 0, fmt.Errorf("encode %s: %w", id, err)
		}
	}
	targets := s.sessionsOf(pid)
	if len(targets) == 0 {
		return 0, fmt.Errorf("%w: pid %d", ErrNoSession, pid)
	}
	sent := 0
	var errs []error
	for _, sess := range targets {
		if err := sess.send(pkt); err != nil {
			errs = append(errs, err)
			sess.fail(fmt.Errorf("push %s: %w", id, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Connected reports whether pid has an open session.
func (s *Server) Connected(pid int32) bool {
	return len(s.sessionsOf(pid)) > 0
}

func (s *Server) sessionsOf(pid int32) []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*session
	for _, sess := range s.sessions {
		if sess.caller.PID == pid {
			out = append(out, sess)
		}
	}
	return out
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Close stops accepting, closes every session and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var errs []error
	if err := s.reg.RemoveEpollHandler(s); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, unix.Close(s.fd))
	for _, sess := range sessions {
		sess.close()
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
