// File: core/buffer/marshal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// Marshaler is implemented by values that serialize themselves into a buffer.
type Marshaler interface {
	MarshalBuffer(b *MessageBuffer) error
}

// Unmarshaler is implemented by values that deserialize themselves from a buffer.
type Unmarshaler interface {
	UnmarshalBuffer(b *MessageBuffer) error
}

// Empty marshals to nothing.
type Empty struct{}

func (Empty) MarshalBuffer(*MessageBuffer) error    { return nil }
func (*Empty) UnmarshalBuffer(*MessageBuffer) error { return nil }

// Int32 is a single little-endian int32.
type Int32 int32

func (v Int32) MarshalBuffer(b *MessageBuffer) error { return b.WriteInt32(int32(v)) }

func (v *Int32) UnmarshalBuffer(b *MessageBuffer) error {
	x, err := b.ReadInt32()
	if err != nil {
		return err
	}
	*v = Int32(x)
	return nil
}

// Uint32 is a single little-endian uint32.
type Uint32 uint32

func (v Uint32) MarshalBuffer(b *MessageBuffer) error { return b.WriteUint32(uint32(v)) }

func (v *Uint32) UnmarshalBuffer(b *MessageBuffer) error {
	x, err := b.ReadUint32()
	if err != nil {
		return err
	}
	*v = Uint32(x)
	return nil
}

// Bool is a single byte, 0 or 1.
type Bool bool

func (v Bool) MarshalBuffer(b *MessageBuffer) error { return b.WriteBool(bool(v)) }

func (v *Bool) UnmarshalBuffer(b *MessageBuffer) error {
	x, err := b.ReadBool()
	if err != nil {
		return err
	}
	*v = Bool(x)
	return nil
}

// String is a length-prefixed string.
type String string

func (v String) MarshalBuffer(b *MessageBuffer) error { return b.WriteString(string(v)) }

func (v *String) UnmarshalBuffer(b *MessageBuffer) error {
	x, err := b.ReadString()
	if err != nil {
		return err
	}
	*v = String(x)
	return nil
}
