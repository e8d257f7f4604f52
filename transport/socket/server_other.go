//go:build !linux

// File: transport/socket/server_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
	"github.com/momentics/hioload-ipc/core/protocol"
	"github.com/momentics/hioload-ipc/reactor"
)

// Options configures a Server.
type Options struct {
	BufferCapacity int
	Backlog        int
	Logger         *zerolog.Logger
	OnDisconnect   func(api.Caller)
}

// Server is unavailable off Linux.
type Server struct{}

// Listen returns reactor.ErrUnsupportedPlatform.
func Listen(string, api.Stub, api.EpollRegistry, Options) (*Server, error) {
	return nil, reactor.ErrUnsupportedPlatform
}

func (s *Server) Push(int32, protocol.MessageID, buffer.Marshaler) (int, error) {
	return 0, reactor.ErrUnsupportedPlatform
}

func (s *Server) Connected(int32) bool { return false }
func (s *Server) Sessions() int { return 0 }
func (s *Server) Path() string { return "" }
func (s *Server) Close() error { return nil }
