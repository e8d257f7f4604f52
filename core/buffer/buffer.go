// File: core/buffer/buffer.go
// Package buffer implements the fixed-capacity message buffer used for IPC
// payloads and socket packets.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MessageBuffer keeps independent read and write cursors over a byte region
// of fixed capacity. The first failed read or write latches a sticky error;
// every later operation is a no-op returning that error until Reset or
// ClearError is called. Integers are little-endian, strings and byte slices
// are prefixed with a u32 length.

package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DefaultCapacity is the maximum size of a single buffer unless configured.
const DefaultCapacity = 256

var (
	// ErrOverflow is returned when a write does not fit into the remaining capacity.
	ErrOverflow = errors.New("buffer: write exceeds capacity")

	// ErrUnderflow is returned when a read asks for more than the unread bytes.
	ErrUnderflow = errors.New("buffer: not enough unread bytes")

	// ErrInvalidLength is returned for negative or oversized length prefixes.
	ErrInvalidLength = errors.New("buffer: invalid length")
)

// MessageBuffer is a byte cursor with read and write positions.
// Invariant: 0 <= rpos <= wpos <= len(data).
// A MessageBuffer is not safe for concurrent use.
type MessageBuffer struct {
	data []byte
	rpos int
	wpos int
	err  error
}

// New allocates a buffer of the given capacity; capacity <= 0 selects DefaultCapacity.
func New(capacity int) *MessageBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageBuffer{data: make([]byte, capacity)}
}

// From returns a buffer whose unread region is a copy of p. The capacity is
// max(len(p), capacity).
func From(p []byte, capacity int) *MessageBuffer {
	if capacity < len(p) {
		capacity = len(p)
	}
	b := New(capacity)
	b.wpos = copy(b.data, p)
	return b
}

// Capacity returns the fixed maximum size.
func (b *MessageBuffer) Capacity() int { return len(b.data) }

// Size returns the number of bytes written so far.
func (b *MessageBuffer) Size() int { return b.wpos }

// ReadPos returns the read cursor.
func (b *MessageBuffer) ReadPos() int { return b.rpos }

// WritePos returns the write cursor.
func (b *MessageBuffer) WritePos() int { return b.wpos }

// UnreadSize returns the number of written bytes not yet read.
func (b *MessageBuffer) UnreadSize() int { return b.wpos - b.rpos }

// Available returns the remaining write capacity.
func (b *MessageBuffer) Available() int { return len(b.data) - b.wpos }

// Bytes returns a view of everything written.
func (b *MessageBuffer) Bytes() []byte { return b.data[:b.wpos] }

// Unread returns a view of the unread region.
func (b *MessageBuffer) Unread() []byte { return b.data[b.rpos:b.wpos] }

// Err returns the sticky error, if any.
func (b *MessageBuffer) Err() error { return b.err }

// ClearError drops the sticky error but keeps both cursors.
func (b *MessageBuffer) ClearError() { b.err = nil }

// Reset rewinds both cursors and clears the sticky error.
func (b *MessageBuffer) Reset() {
	b.rpos, b.wpos, b.err = 0, 0, nil
}

// Compact moves the unread region to the front of the buffer.
func (b *MessageBuffer) Compact() {
	if b.rpos == 0 {
		return
	}
	n := copy(b.data, b.data[b.rpos:b.wpos])
	b.rpos, b.wpos = 0, n
}

// SeekRead advances the read cursor by n bytes.
func (b *MessageBuffer) SeekRead(n int) error {
	if b.err != nil {
		return b.err
	}
	if n < 0 || n > b.UnreadSize() {
		return b.fail(fmt.Errorf("%w: seek %d of %d", ErrUnderflow, n, b.UnreadSize()))
	}
	b.rpos += n
	return nil
}

func (b *MessageBuffer) fail(err error) error {
	b.err = err
	return err
}

// Write appends p verbatim. A write that does not fit fails without writing anything.
func (b *MessageBuffer) Write(p []byte) error {
	if b.err != nil {
		return b.err
	}
	if len(p) > b.Available() {
		return b.fail(fmt.Errorf("%w: need %d, have %d", ErrOverflow, len(p), b.Available()))
	}
	b.wpos += copy(b.data[b.wpos:], p)
	return nil
}

// Read consumes and returns a copy of the next n bytes.
func (b *MessageBuffer) Read(n int) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if n < 0 {
		return nil, b.fail(fmt.Errorf("%w: %d", ErrInvalidLength, n))
	}
	if n > b.UnreadSize() {
		return nil, b.fail(fmt.Errorf("%w: need %d, have %d", ErrUnderflow, n, b.UnreadSize()))
	}
	out := make([]byte, n)
	copy(out, b.data[b.rpos:b.rpos+n])
	b.rpos += n
	return out, nil
}

func (b *MessageBuffer) reserve(n int) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if n > b.Available() {
		return nil, b.fail(fmt.Errorf("%w: need %d, have %d", ErrOverflow, n, b.Available()))
	}
	p := b.data[b.wpos : b.wpos+n]
	b.wpos += n
	return p, nil
}

func (b *MessageBuffer) take(n int) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if n > b.UnreadSize() {
		return nil, b.fail(fmt.Errorf("%w: need %d, have %d", ErrUnderflow, n, b.UnreadSize()))
	}
	p := b.data[b.rpos : b.rpos+n]
	b.rpos += n
	return p, nil
}

func (b *MessageBuffer) WriteUint8(v uint8) error {
	p, err := b.reserve(1)
	if err != nil {
		return err
	}
	p[0] = v
	return nil
}

func (b *MessageBuffer) WriteBool(v bool) error {
	if v {
		return b.WriteUint8(1)
	}
	return b.WriteUint8(0)
}

func (b *MessageBuffer) WriteUint16(v uint16) error {
	p, err := b.reserve(2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(p, v)
	return nil
}

func (b *MessageBuffer) WriteUint32(v uint32) error {
	p, err := b.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p, v)
	return nil
}

func (b *MessageBuffer) WriteUint64(v uint64) error {
	p, err := b.reserve(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(p, v)
	return nil
}

func (b *MessageBuffer) WriteInt32(v int32) error { return b.WriteUint32(uint32(v)) }

func (b *MessageBuffer) WriteInt64(v int64) error { return b.WriteUint64(uint64(v)) }

func (b *MessageBuffer) WriteFloat64(v float64) error { return b.WriteUint64(math.Float64bits(v)) }

// WriteBytes writes a u32 length prefix followed by p. Prefix and body are
// written together or not at all.
func (b *MessageBuffer) WriteBytes(p []byte) error {
	if b.err != nil {
		return b.err
	}
	if 4+len(p) > b.Available() {
		return b.fail(fmt.Errorf("%w: need %d, have %d", ErrOverflow, 4+len(p), b.Available()))
	}
	binary.LittleEndian.PutUint32(b.data[b.wpos:], uint32(len(p)))
	b.wpos += 4
	b.wpos += copy(b.data[b.wpos:], p)
	return nil
}

// WriteString writes s with a u32 length prefix.
func (b *MessageBuffer) WriteString(s string) error {
	return b.WriteBytes([]byte(s))
}

func (b *MessageBuffer) ReadUint8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *MessageBuffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	return v != 0, err
}

func (b *MessageBuffer) ReadUint16() (uint16, error) {
	p, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (b *MessageBuffer) ReadUint32() (uint32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (b *MessageBuffer) ReadUint64() (uint64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (b *MessageBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *MessageBuffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *MessageBuffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBytes reads a u32 length prefix and that many bytes. The read cursor
// does not move if the body is incomplete.
func (b *MessageBuffer) ReadBytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.UnreadSize() < 4 {
		return nil, b.fail(fmt.Errorf("%w: length prefix", ErrUnderflow))
	}
	n := int(binary.LittleEndian.Uint32(b.data[b.rpos:]))
	if n > b.UnreadSize()-4 {
		return nil, b.fail(fmt.Errorf("%w: declared %d, have %d", ErrUnderflow, n, b.UnreadSize()-4))
	}
	b.rpos += 4
	out := make([]byte, n)
	copy(out, b.data[b.rpos:b.rpos+n])
	b.rpos += n
	return out, nil
}

func (b *MessageBuffer) ReadString() (string, error) {
	p, err := b.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(p), nil
}
