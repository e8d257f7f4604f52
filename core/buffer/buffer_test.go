package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuffer_TypedRoundTrip(t *testing.T) {
	b := New(0)
	require.Equal(t, DefaultCapacity, b.Capacity())

	require.NoError(t, b.WriteUint8(7))
	require.NoError(t, b.WriteBool(true))
	require.NoError(t, b.WriteUint16(0xBEEF))
	require.NoError(t, b.WriteInt32(-42))
	require.NoError(t, b.WriteUint64(1<<40))
	require.NoError(t, b.WriteFloat64(2.5))
	require.NoError(t, b.WriteString("drag"))
	require.NoError(t, b.WriteBytes([]byte{1, 2, 3}))

	u8, err := b.ReadUint8()
	require.NoError(t, err)
	assert.EqualValues(t, 7, u8)
	ok, err := b.ReadBool()
	require.NoError(t, err)
	assert.True(t, ok)
	u16, err := b.ReadUint16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xBEEF, u16)
	i32, err := b.ReadInt32()
	require.NoError(t, err)
	assert.EqualValues(t, -42, i32)
	u64, err := b.ReadUint64()
	require.NoError(t, err)
	assert.EqualValues(t, uint64(1<<40), u64)
	f, err := b.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
	s, err := b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "drag", s)
	raw, err := b.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Zero(t, b.UnreadSize())
	assert.NoError(t, b.Err())
}

func TestMessageBuffer_LittleEndianLayout(t *testing.T) {
	b := New(8)
	require.NoError(t, b.WriteUint32(0x01020304))
	assert.Equal(t, []byte{4, 3, 2, 1}, b.Bytes())
}

func TestMessageBuffer_OverflowIsStickyAndWritesNothing(t *testing.T) {
	b := New(6)
	require.NoError(t, b.WriteUint32(1))

	err := b.WriteUint32(2)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 4, b.Size(), "failed write must not be partial")

	// Fits, but the buffer is latched.
	err = b.WriteUint8(1)
	require.ErrorIs(t, err, ErrOverflow)
	_, err = b.ReadUint32()
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 0, b.ReadPos())

	b.ClearError()
	require.NoError(t, b.WriteUint8(1))
	assert.Equal(t, 5, b.Size())
}

func TestMessageBuffer_UnderflowIsSticky(t *testing.T) {
	b := New(16)
	require.NoError(t, b.WriteUint16(1))

	_, err := b.ReadUint32()
	require.ErrorIs(t, err, ErrUnderflow)
	_, err = b.ReadUint8()
	require.ErrorIs(t, err, ErrUnderflow)

	b.Reset()
	assert.NoError(t, b.Err())
	assert.Zero(t, b.Size())
	assert.Zero(t, b.ReadPos())
}

func TestMessageBuffer_LengthPrefixedBodyIncomplete(t *testing.T) {
	b := New(16)
	require.NoError(t, b.WriteUint32(10))
	require.NoError(t, b.Write([]byte{1, 2}))

	_, err := b.ReadBytes()
	require.ErrorIs(t, err, ErrUnderflow)
	assert.Equal(t, 0, b.ReadPos(), "cursor must not move on incomplete body")
}

func TestMessageBuffer_WriteBytesAtomic(t *testing.T) {
	b := New(8)
	err := b.WriteBytes([]byte{1, 2, 3, 4, 5})
	require.ErrorIs(t, err, ErrOverflow)
	assert.Zero(t, b.Size())
}

func TestMessageBuffer_CompactAndSeek(t *testing.T) {
	b := New(8)
	require.NoError(t, b.Write([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, b.SeekRead(4))
	b.Compact()
	assert.Equal(t, 0, b.ReadPos())
	assert.Equal(t, []byte{5, 6}, b.Unread())
	assert.Equal(t, 6, b.Available())

	require.ErrorIs(t, b.SeekRead(3), ErrUnderflow)
}

func TestFrom(t *testing.T) {
	b := From([]byte("abc"), 2)
	assert.Equal(t, 3, b.Capacity())
	out, err := b.Read(3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}

func TestPool_ReturnsResetBuffers(t *testing.T) {
	p := NewPool(32)
	b := p.Get()
	require.NoError(t, b.WriteUint32(9))
	_, _ = b.Read(100)
	p.Put(b)

	again := p.Get()
	assert.Equal(t, 32, again.Capacity())
	assert.Zero(t, again.Size())
	assert.NoError(t, again.Err())

	// foreign capacity is ignored
	p.Put(New(8))
}

func TestPrimitiveMarshalers(t *testing.T) {
	b := New(64)
	require.NoError(t, Int32(-3).MarshalBuffer(b))
	require.NoError(t, Uint32(9).MarshalBuffer(b))
	require.NoError(t, Bool(true).MarshalBuffer(b))
	require.NoError(t, String("x").MarshalBuffer(b))
	require.NoError(t, Empty{}.MarshalBuffer(b))

	var (
		i Int32
		u Uint32
		v Bool
		s String
		e Empty
	)
	require.NoError(t, i.UnmarshalBuffer(b))
	require.NoError(t, u.UnmarshalBuffer(b))
	require.NoError(t, v.UnmarshalBuffer(b))
	require.NoError(t, s.UnmarshalBuffer(b))
	require.NoError(t, e.UnmarshalBuffer(b))
	assert.EqualValues(t, -3, i)
	assert.EqualValues(t, 9, u)
	assert.True(t, bool(v))
	assert.EqualValues(t, "x", s)
}
