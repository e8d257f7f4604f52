// File: core/protocol/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Net packet framing: {message id, payload length} header followed by the
// raw payload bytes.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/momentics/hioload-ipc/core/buffer"
)

// MessageID tags a net packet.
type MessageID int32

const (
	MsgInvalid MessageID = iota
	MsgRemoteRequest
	MsgRemoteReply
	MsgDragNotifyResult
	MsgDragStateListener
	MsgCoordinationMessage
)

func (m MessageID) String() string {
	switch m {
	case MsgRemoteRequest:
		return "remote_request"
	case MsgRemoteReply:
		return "remote_reply"
	case MsgDragNotifyResult:
		return "drag_notify_result"
	case MsgDragStateListener:
		return "drag_state_listener"
	case MsgCoordinationMessage:
		return "coordination_message"
	default:
		return fmt.Sprintf("MessageID(%d)", int32(m))
	}
}

// Unsolicited reports whether the server sends m without a matching request.
func (m MessageID) Unsolicited() bool {
	switch m {
	case MsgDragNotifyResult, MsgDragStateListener, MsgCoordinationMessage:
		return true
	}
	return false
}

var (
	// ErrPacketTooLarge is returned when a declared payload can never fit.
	ErrPacketTooLarge = errors.New("protocol: packet exceeds buffer capacity")

	// ErrMalformedHeader is returned for negative payload lengths.
	ErrMalformedHeader = errors.New("protocol: malformed packet header")
)

// NetPacket is one logical message on the socket transport.
type NetPacket struct {
	ID      MessageID
	Payload *buffer.MessageBuffer
}

// NewPacket creates an empty packet whose payload holds at most
// capacity-PacketHeaderSize bytes, so the framed packet fits a buffer of capacity.
func NewPacket(id MessageID, capacity int) *NetPacket {
	if capacity <= 0 {
		capacity = buffer.DefaultCapacity
	}
	return &NetPacket{ID: id, Payload: buffer.New(capacity - PacketHeaderSize)}
}

// Size is the payload length declared in the header at send time.
func (p *NetPacket) Size() int {
	return p.Payload.UnreadSize()
}

// MakeData frames p into out. Nothing is written unless the whole packet fits.
func (p *NetPacket) MakeData(out *buffer.MessageBuffer) error {
	if err := p.Payload.Err(); err != nil {
		return fmt.Errorf("packet payload: %w", err)
	}
	size := p.Size()
	if PacketHeaderSize+size > out.Available() {
		return fmt.Errorf("%w: need %d, have %d", buffer.ErrOverflow, PacketHeaderSize+size, out.Available())
	}
	var hdr [PacketHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(p.ID))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(size))
	if err := out.Write(hdr[:]); err != nil {
		return err
	}
	return out.Write(p.Payload.Unread())
}

// Unpack extracts the next complete packet from the unread region of stream.
// It reports false, without consuming anything, until
// UnreadSize >= PacketHeaderSize + declared length.
func Unpack(stream *buffer.MessageBuffer) (*NetPacket, bool, error) {
	if err := stream.Err(); err != nil {
		return nil, false, err
	}
	unread := stream.Unread()
	if len(unread) < PacketHeaderSize {
		return nil, false, nil
	}
	id := MessageID(int32(binary.LittleEndian.Uint32(unread[0:])))
	size := int32(binary.LittleEndian.Uint32(unread[4:]))
	if size < 0 {
		return nil, false, fmt.Errorf("%w: length %d", ErrMalformedHeader, size)
	}
	if int(size) > stream.Capacity()-PacketHeaderSize {
		return nil, false, fmt.Errorf("%w: declared %d, capacity %d", ErrPacketTooLarge, size, stream.Capacity())
	}
	if len(unread) < PacketHeaderSize+int(size) {
		return nil, false, nil
	}
	if err := stream.SeekRead(PacketHeaderSize); err != nil {
		return nil, false, err
	}
	raw, err := stream.Read(int(size))
	if err != nil {
		return nil, false, err
	}
	return &NetPacket{ID: id, Payload: buffer.From(raw, stream.Capacity()-PacketHeaderSize)}, true, nil
}

// PacketReader accumulates stream bytes and yields complete packets.
type PacketReader struct {
	stream *buffer.MessageBuffer
}

// NewPacketReader creates a reader whose stream buffer has the given capacity.
func NewPacketReader(capacity int) *PacketReader {
	return &PacketReader{stream: buffer.New(capacity)}
}

// Free returns how many bytes the next Feed can accept after compaction.
func (r *PacketReader) Free() int {
	return r.stream.Capacity() - r.stream.UnreadSize()
}

// Feed appends p to the stream. It fails without partial writes when p does not fit.
func (r *PacketReader) Feed(p []byte) error {
	r.stream.Compact()
	return r.stream.Write(p)
}

// Next returns the next complete packet, or false when more bytes are needed.
func (r *PacketReader) Next() (*NetPacket, bool, error) {
	return Unpack(r.stream)
}

// Buffered returns the number of bytes not yet consumed as packets.
func (r *PacketReader) Buffered() int {
	return r.stream.UnreadSize()
}
