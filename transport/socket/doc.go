// File: transport/socket/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package socket carries intention calls over a unix stream socket framed
// as net packets.
//
//	request:  MsgRemoteRequest  { code u32, request bytes }
//	reply:    MsgRemoteReply    { status i32, reply bytes }
//	push:     MsgDragStateListener, MsgDragNotifyResult, ... { body }
//
// Pushes are sent by Server.Push to every session of one process and may
// arrive before the reply of a call in flight; Remote queues them for Receive.
//
// The server side is driven entirely by an api.EpollRegistry: the listening
// socket and every accepted session are one-shot epoll handlers. The peer's
// uid and pid come from SO_PEERCRED.
package socket
