// File: plugins/drag/data.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire types carried by drag requests.

package drag

import (
	"fmt"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
)

// ShadowInfo is the pixel map shown under the pointer and its offset.
type ShadowInfo struct {
	PixelMap []byte
	X, Y     int32
}

// DragData describes a drag as submitted by Start.
type DragData struct {
	Shadow               ShadowInfo
	Buffer               []byte // opaque payload handed to the drop target
	UDKey                string
	SourceType           int32
	DragNum              int32
	PointerID            int32
	DisplayX             int32
	DisplayY             int32
	DisplayID            int32
	HasCanceledAnimation bool
}

var (
	_ buffer.Marshaler   = (*DragData)(nil)
	_ buffer.Unmarshaler = (*DragData)(nil)
)

func (d *DragData) MarshalBuffer(b *buffer.MessageBuffer) error {
	_ = b.WriteBytes(d.Shadow.PixelMap)
	_ = b.WriteInt32(d.Shadow.X)
	_ = b.WriteInt32(d.Shadow.Y)
	_ = b.WriteBytes(d.Buffer)
	_ = b.WriteString(d.UDKey)
	_ = b.WriteInt32(d.SourceType)
	_ = b.WriteInt32(d.DragNum)
	_ = b.WriteInt32(d.PointerID)
	_ = b.WriteInt32(d.DisplayX)
	_ = b.WriteInt32(d.DisplayY)
	_ = b.WriteInt32(d.DisplayID)
	_ = b.WriteBool(d.HasCanceledAnimation)
	return b.Err()
}

func (d *DragData) UnmarshalBuffer(b *buffer.MessageBuffer) error {
	d.Shadow.PixelMap, _ = b.ReadBytes()
	d.Shadow.X, _ = b.ReadInt32()
	d.Shadow.Y, _ = b.ReadInt32()
	d.Buffer, _ = b.ReadBytes()
	d.UDKey, _ = b.ReadString()
	d.SourceType, _ = b.ReadInt32()
	d.DragNum, _ = b.ReadInt32()
	d.PointerID, _ = b.ReadInt32()
	d.DisplayX, _ = b.ReadInt32()
	d.DisplayY, _ = b.ReadInt32()
	d.DisplayID, _ = b.ReadInt32()
	d.HasCanceledAnimation, _ = b.ReadBool()
	return b.Err()
}

// Validate rejects drags that cannot be shown.
func (d *DragData) Validate() error {
	switch {
	case len(d.Shadow.PixelMap) == 0:
		return fmt.Errorf("%w: empty shadow pixel map", api.ErrInvalidParam)
	case d.DragNum <= 0:
		return fmt.Errorf("%w: drag count %d", api.ErrInvalidParam, d.DragNum)
	case d.DisplayX < 0 || d.DisplayY < 0:
		return fmt.Errorf("%w: display position (%d,%d)", api.ErrInvalidParam, d.DisplayX, d.DisplayY)
	}
	return nil
}

// Result is how a drag ended.
type Result int32

const (
	ResultSuccess Result = iota
	ResultFail
	ResultCancel
)

// StopParam is the body of a Stop request.
type StopParam struct {
	Result             Result
	HasCustomAnimation bool
}

func (s StopParam) MarshalBuffer(b *buffer.MessageBuffer) error {
	_ = b.WriteInt32(int32(s.Result))
	_ = b.WriteBool(s.HasCustomAnimation)
	return b.Err()
}

func (s *StopParam) UnmarshalBuffer(b *buffer.MessageBuffer) error {
	r, _ := b.ReadInt32()
	s.HasCustomAnimation, _ = b.ReadBool()
	if err := b.Err(); err != nil {
		return err
	}
	if r < int32(ResultSuccess) || r > int32(ResultCancel) {
		return fmt.Errorf("%w: drag result %d", api.ErrInvalidParam, r)
	}
	s.Result = Result(r)
	return nil
}

// StateEvent is pushed to a listener on every state transition.
type StateEvent struct {
	Handle uint32
	State  State
}

func (e StateEvent) MarshalBuffer(b *buffer.MessageBuffer) error {
	_ = b.WriteUint32(e.Handle)
	_ = b.WriteInt32(int32(e.State))
	return b.Err()
}

func (e *StateEvent) UnmarshalBuffer(b *buffer.MessageBuffer) error {
	e.Handle, _ = b.ReadUint32()
	st, _ := b.ReadInt32()
	if err := b.Err(); err != nil {
		return err
	}
	e.State = State(st)
	return nil
}

// ResultEvent is pushed to the drag owner when the drag stops.
type ResultEvent struct {
	Result Result
}

func (e ResultEvent) MarshalBuffer(b *buffer.MessageBuffer) error {
	return b.WriteInt32(int32(e.Result))
}

func (e *ResultEvent) UnmarshalBuffer(b *buffer.MessageBuffer) error {
	r, err := b.ReadInt32()
	if err != nil {
		return err
	}
	e.Result = Result(r)
	return nil
}
